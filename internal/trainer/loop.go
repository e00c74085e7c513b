package trainer

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"time"

	"github.com/pkg/errors"

	"caption-forge/internal/checkpoint"
	"caption-forge/internal/dataset"
	"caption-forge/internal/metrics"
	"caption-forge/internal/model"
)

// RunConfig captures the knobs and collaborators of one training run.
type RunConfig struct {
	Pairs    []dataset.Pair
	Features map[int64][]float64
	Encoder  *model.Encoder
	Decoder  *model.Decoder

	NumEpochs     int
	StepsPerEpoch int
	BatchSize     int
	LearningRate  float64
	SaveEvery     int
	PrintEvery    int
	ModelDir      string
	Seed          int64

	// StatusLog receives one line per step. Pass an unbuffered writer
	// (an *os.File) so lines survive an aborted run.
	StatusLog io.Writer
}

// Run executes the epoch x step training loop: each step draws a
// length-homogeneous batch, applies one SGD update, and appends a status
// line to StatusLog. Checkpoints are written after every SaveEvery-th
// epoch. The first error aborts the run.
func Run(ctx context.Context, cfg RunConfig) error {
	if cfg.NumEpochs <= 0 {
		return errors.New("trainer: num epochs must be > 0")
	}
	if cfg.StepsPerEpoch <= 0 {
		return errors.New("trainer: steps per epoch must be > 0")
	}
	if cfg.BatchSize <= 0 {
		return errors.New("trainer: batch size must be > 0")
	}
	if cfg.Encoder == nil || cfg.Decoder == nil {
		return errors.New("trainer: encoder and decoder are required")
	}
	if cfg.SaveEvery <= 0 {
		cfg.SaveEvery = 1
	}
	if cfg.PrintEvery <= 0 {
		cfg.PrintEvery = 10
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.001
	}
	if cfg.StatusLog == nil {
		cfg.StatusLog = io.Discard
	}

	sampler, err := dataset.NewLengthSampler(cfg.Pairs, cfg.Seed)
	if err != nil {
		return err
	}

	var window metrics.Window

	for epoch := 1; epoch <= cfg.NumEpochs; epoch++ {
		for step := 1; step <= cfg.StepsPerEpoch; step++ {
			if err := ctx.Err(); err != nil {
				return err
			}

			startData := time.Now()
			batch, err := buildBatch(cfg, sampler.NextBatch(cfg.BatchSize))
			if err != nil {
				return err
			}
			dataTime := time.Since(startData)

			startCompute := time.Now()
			loss, err := model.TrainStep(cfg.Encoder, cfg.Decoder, batch, cfg.LearningRate)
			if err != nil {
				return err
			}
			computeTime := time.Since(startCompute)

			perplexity := math.Exp(loss)
			if _, err := fmt.Fprintf(cfg.StatusLog, "Epoch [%d/%d], Step [%d/%d], Loss: %.4f, Perplexity: %.4f\n",
				epoch, cfg.NumEpochs, step, cfg.StepsPerEpoch, loss, perplexity); err != nil {
				return errors.Wrap(err, "trainer: write status line")
			}

			window.Record(cfg.BatchSize, dataTime, computeTime, loss)

			if step%cfg.PrintEvery == 0 {
				snap := window.Snapshot()
				log.Printf("Epoch [%d/%d], Step [%d/%d], Loss: %.4f, Perplexity: %.4f, captions_per_sec=%.1f",
					epoch, cfg.NumEpochs, step, cfg.StepsPerEpoch, loss, perplexity, snap.CaptionsPerSec)
			}
		}

		if epoch%cfg.SaveEvery == 0 {
			if err := checkpoint.Save(cfg.ModelDir, epoch, cfg.Encoder, cfg.Decoder); err != nil {
				return err
			}
			log.Printf("saved checkpoint pair for epoch %d under %s", epoch, cfg.ModelDir)
		}
	}

	return nil
}

func buildBatch(cfg RunConfig, indices []int) (model.Batch, error) {
	batch := model.Batch{
		Features: make([][]float64, 0, len(indices)),
		Captions: make([][]int, 0, len(indices)),
	}
	for _, idx := range indices {
		pair := cfg.Pairs[idx]
		features, ok := cfg.Features[pair.ImageID]
		if !ok {
			return model.Batch{}, errors.Errorf("trainer: no features for image %d", pair.ImageID)
		}
		batch.Features = append(batch.Features, features)
		batch.Captions = append(batch.Captions, pair.Caption)
	}
	return batch, nil
}
