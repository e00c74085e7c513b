package trainer

import (
	"bytes"
	"context"
	"math"
	"math/rand"
	"os"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"caption-forge/internal/checkpoint"
	"caption-forge/internal/dataset"
	"caption-forge/internal/model"
)

const testFeatSize = 8

func testRunConfig(t *testing.T, logBuf *bytes.Buffer) RunConfig {
	t.Helper()
	rng := rand.New(rand.NewSource(1))
	features := make(map[int64][]float64)
	pairs := make([]dataset.Pair, 0, 6)
	for id := int64(1); id <= 6; id++ {
		feats := make([]float64, testFeatSize)
		for j := range feats {
			feats[j] = rng.Float64()
		}
		features[id] = feats
		caption := []int{1, 4 + int(id)%5, 5, 2}
		if id%2 == 0 {
			caption = []int{1, 4 + int(id)%5, 2}
		}
		pairs = append(pairs, dataset.Pair{ImageID: id, Caption: caption})
	}
	return RunConfig{
		Pairs:         pairs,
		Features:      features,
		Encoder:       model.NewEncoder(testFeatSize, 4, 2),
		Decoder:       model.NewDecoder(10, 4, 6, 3),
		NumEpochs:     1,
		StepsPerEpoch: 1,
		BatchSize:     2,
		LearningRate:  0.05,
		SaveEvery:     1,
		PrintEvery:    100,
		ModelDir:      t.TempDir(),
		Seed:          9,
		StatusLog:     logBuf,
	}
}

var statusLine = regexp.MustCompile(`^Epoch \[(\d+)/(\d+)\], Step \[(\d+)/(\d+)\], Loss: ([0-9.]+), Perplexity: ([0-9.]+)$`)

func TestRunSingleStepWritesOneLineAndCheckpoint(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := testRunConfig(t, buf)

	if err := Run(context.Background(), cfg); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected exactly 1 status line, got %d: %q", len(lines), buf.String())
	}
	if !statusLine.MatchString(lines[0]) {
		t.Fatalf("malformed status line: %q", lines[0])
	}

	for _, path := range []string{
		checkpoint.EncoderPath(cfg.ModelDir, 1),
		checkpoint.DecoderPath(cfg.ModelDir, 1),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("missing checkpoint %s: %v", path, err)
		}
	}

	entries, err := os.ReadDir(cfg.ModelDir)
	if err != nil {
		t.Fatalf("read model dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected exactly one checkpoint pair, found %d files", len(entries))
	}
}

func TestRunPerplexityMatchesLoss(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := testRunConfig(t, buf)
	cfg.NumEpochs = 2
	cfg.StepsPerEpoch = 5
	cfg.SaveEvery = 3 // no checkpoint for either epoch

	if err := Run(context.Background(), cfg); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 10 {
		t.Fatalf("expected 10 status lines, got %d", len(lines))
	}
	for _, line := range lines {
		m := statusLine.FindStringSubmatch(line)
		if m == nil {
			t.Fatalf("malformed status line: %q", line)
		}
		loss, err := strconv.ParseFloat(m[5], 64)
		if err != nil {
			t.Fatalf("parse loss: %v", err)
		}
		ppl, err := strconv.ParseFloat(m[6], 64)
		if err != nil {
			t.Fatalf("parse perplexity: %v", err)
		}
		// both values are rounded to 4 decimals in the line
		if math.Abs(ppl-math.Exp(loss)) > math.Exp(loss)*1e-3+1e-3 {
			t.Fatalf("perplexity %f does not match exp(loss)=%f in %q", ppl, math.Exp(loss), line)
		}
	}

	if entries, err := os.ReadDir(cfg.ModelDir); err != nil || len(entries) != 0 {
		t.Fatalf("expected no checkpoints (save_every=3), got %v err=%v", entries, err)
	}
}

func TestRunMissingFeaturesFails(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := testRunConfig(t, buf)
	cfg.Features = map[int64][]float64{}

	if err := Run(context.Background(), cfg); err == nil {
		t.Fatal("expected error when features are missing")
	}
}

func TestRunCanceledContext(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := testRunConfig(t, buf)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Run(ctx, cfg); err == nil {
		t.Fatal("expected error from canceled context")
	}
}
