package eval

import (
	"math"
	"strings"

	"caption-forge/internal/dataset"
)

const maxOrder = 4

// Corpus scores predictions against references and returns the mean
// sentence BLEU over images present in BOTH maps. Images with predictions
// but no references are excluded, not an error. The second return is the
// number of images scored.
func Corpus(refs dataset.ReferenceMap, preds PredictionMap) (float64, int) {
	sum := 0.0
	scored := 0
	for id, candidates := range preds {
		references, ok := refs[id]
		if !ok || len(candidates) == 0 {
			continue
		}
		sum += Sentence(candidates[0], references)
		scored++
	}
	if scored == 0 {
		return 0, 0
	}
	return sum / float64(scored), scored
}

// Sentence computes smoothed BLEU-4 of one candidate against a reference
// set: uniform weights over orders 1..4, add-one smoothed modified n-gram
// precisions, and a brevity penalty against the closest reference length.
// An empty candidate scores 0.
func Sentence(candidate string, references []string) float64 {
	cand := tokens(candidate)
	if len(cand) == 0 || len(references) == 0 {
		return 0
	}

	refTokens := make([][]string, 0, len(references))
	for _, ref := range references {
		refTokens = append(refTokens, tokens(ref))
	}

	logSum := 0.0
	for order := 1; order <= maxOrder; order++ {
		matched, total := clippedMatches(cand, refTokens, order)
		precision := (float64(matched) + 1) / (float64(total) + 1)
		logSum += math.Log(precision)
	}

	return brevityPenalty(len(cand), refTokens) * math.Exp(logSum/maxOrder)
}

func tokens(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

func clippedMatches(cand []string, refs [][]string, order int) (matched, total int) {
	candCounts := ngramCounts(cand, order)
	for _, n := range candCounts {
		total += n
	}

	maxRef := make(map[string]int)
	for _, ref := range refs {
		for gram, n := range ngramCounts(ref, order) {
			if n > maxRef[gram] {
				maxRef[gram] = n
			}
		}
	}

	for gram, n := range candCounts {
		if limit := maxRef[gram]; n > limit {
			n = limit
		}
		matched += n
	}
	return matched, total
}

func ngramCounts(words []string, order int) map[string]int {
	counts := make(map[string]int)
	for i := 0; i+order <= len(words); i++ {
		counts[strings.Join(words[i:i+order], " ")]++
	}
	return counts
}

// brevityPenalty compares the candidate length against the reference whose
// length is closest; ties prefer the shorter reference.
func brevityPenalty(candLen int, refs [][]string) float64 {
	closest := len(refs[0])
	for _, ref := range refs[1:] {
		if delta(len(ref), candLen) < delta(closest, candLen) ||
			(delta(len(ref), candLen) == delta(closest, candLen) && len(ref) < closest) {
			closest = len(ref)
		}
	}
	if candLen >= closest {
		return 1
	}
	return math.Exp(1 - float64(closest)/float64(candLen))
}

func delta(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
