package eval

import (
	"math"
	"testing"

	"caption-forge/internal/dataset"
)

func TestCorpusIdenticalScoresOne(t *testing.T) {
	refs := dataset.ReferenceMap{
		1: {"a dog runs across the grass"},
		2: {"a cat sits on the mat"},
	}
	preds := PredictionMap{
		1: {"a dog runs across the grass"},
		2: {"a cat sits on the mat"},
	}
	score, scored := Corpus(refs, preds)
	if scored != 2 {
		t.Fatalf("expected 2 images scored, got %d", scored)
	}
	if math.Abs(score-1.0) > 1e-12 {
		t.Fatalf("identical captions must score 1.0, got %f", score)
	}
}

func TestCorpusExcludesUnmatchedKeys(t *testing.T) {
	refs := dataset.ReferenceMap{
		1: {"a dog"},
		2: {"a cat"},
	}
	preds := PredictionMap{
		1: {"a dog"},
		3: {"a bird"}, // no references, must be excluded silently
	}
	score, scored := Corpus(refs, preds)
	if scored != 1 {
		t.Fatalf("expected image 1 only, scored %d", scored)
	}
	if math.Abs(score-1.0) > 1e-12 {
		t.Fatalf("aggregate over image 1 must be 1.0, got %f", score)
	}
}

func TestSentenceEmptyCandidate(t *testing.T) {
	if got := Sentence("", []string{"a dog"}); got != 0 {
		t.Fatalf("empty candidate must score 0, got %f", got)
	}
	if got := Sentence("   ", []string{"a dog"}); got != 0 {
		t.Fatalf("whitespace candidate must score 0, got %f", got)
	}
	if got := Sentence("a dog", nil); got != 0 {
		t.Fatalf("no references must score 0, got %f", got)
	}
}

func TestCorpusEmptyPredictions(t *testing.T) {
	refs := dataset.ReferenceMap{1: {"a dog"}}
	score, scored := Corpus(refs, PredictionMap{1: {""}})
	if scored != 1 || score != 0 {
		t.Fatalf("empty prediction must score 0 without panicking, got %f/%d", score, scored)
	}
	score, scored = Corpus(refs, PredictionMap{})
	if scored != 0 || score != 0 {
		t.Fatalf("no predictions must aggregate to 0, got %f/%d", score, scored)
	}
}

func TestSentencePartialMatch(t *testing.T) {
	got := Sentence("a dog runs", []string{"a dog sleeps on the couch"})
	if got <= 0 || got >= 1 {
		t.Fatalf("partial match must land strictly between 0 and 1, got %f", got)
	}
}

func TestSentencePicksBestReference(t *testing.T) {
	refs := []string{"a bird flies", "a dog runs fast"}
	single := Sentence("a dog runs fast", refs[1:])
	multi := Sentence("a dog runs fast", refs)
	if math.Abs(multi-single) > 1e-12 {
		t.Fatalf("adding a worse reference must not lower the score: %f vs %f", multi, single)
	}
	if math.Abs(multi-1.0) > 1e-12 {
		t.Fatalf("exact match against one reference must score 1.0, got %f", multi)
	}
}

func TestSentenceCaseInsensitive(t *testing.T) {
	if got := Sentence("A Dog Runs", []string{"a dog runs"}); math.Abs(got-1.0) > 1e-12 {
		t.Fatalf("scoring must lower-case before comparing, got %f", got)
	}
}
