package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"caption-forge/internal/checkpoint"
	"caption-forge/internal/config"
	"caption-forge/internal/dataset"
	"caption-forge/internal/model"
	"caption-forge/internal/trainer"
	"caption-forge/internal/vocab"
)

func main() {
	cfgPath := flag.String("config", "configs/train.conf", "Path to config file")
	dataRoot := flag.String("data-root", "", "Override training data root")
	modelDir := flag.String("model-dir", "", "Override checkpoint directory")
	logFile := flag.String("log-file", "", "Override training log file")
	batchSize := flag.Int("batch-size", 0, "Batch size")
	numEpochs := flag.Int("epochs", 0, "Number of epochs")
	steps := flag.Int("steps", 0, "Steps per epoch")
	seed := flag.Int64("seed", 0, "PRNG seed")

	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	cfg.ApplyOverrides(config.Overrides{
		DataRoot:      *dataRoot,
		ModelDir:      *modelDir,
		LogFile:       *logFile,
		BatchSize:     *batchSize,
		NumEpochs:     *numEpochs,
		StepsPerEpoch: *steps,
		Seed:          *seed,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	anns, err := dataset.LoadAnnotations(cfg.TrainAnnotations)
	if err != nil {
		log.Fatalf("load training annotations: %v", err)
	}
	log.Printf("annotations=%d file=%s", len(anns), cfg.TrainAnnotations)

	captions := make([]string, len(anns))
	for i, ann := range anns {
		captions[i] = ann.Caption
	}
	v := vocab.Build(captions, cfg.VocabThreshold)
	log.Printf("vocabulary size=%d threshold=%d", v.Size(), cfg.VocabThreshold)

	if err := os.MkdirAll(cfg.ModelDir, 0o755); err != nil {
		log.Fatalf("create model dir: %v", err)
	}
	if err := v.Save(checkpoint.VocabPath(cfg.ModelDir)); err != nil {
		log.Fatalf("save vocabulary: %v", err)
	}

	shards, err := dataset.DiscoverShards(cfg.DataRoot)
	if err != nil {
		log.Fatalf("discover shards under %s: %v", cfg.DataRoot, err)
	}
	if len(shards) == 0 {
		log.Fatalf("no shards discovered under %s", cfg.DataRoot)
	}
	log.Printf("root=%s shards=%d", cfg.DataRoot, len(shards))

	features, skipped, err := dataset.LoadFeatures(ctx, shards, cfg.NumWorkers)
	if err != nil {
		log.Fatalf("load image features: %v", err)
	}
	log.Printf("images=%d skipped=%d", len(features), skipped)

	pairs := buildPairs(anns, features, v, cfg.MaxCaptionLen)
	if len(pairs) == 0 {
		log.Fatalf("no usable (image, caption) pairs")
	}
	log.Printf("training pairs=%d", len(pairs))

	statusLog, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Fatalf("open log file: %v", err)
	}

	enc := model.NewEncoder(dataset.FeatureSize, cfg.EmbedSize, cfg.Seed)
	dec := model.NewDecoder(v.Size(), cfg.EmbedSize, cfg.HiddenSize, cfg.Seed+1)

	runCfg := trainer.RunConfig{
		Pairs:         pairs,
		Features:      features,
		Encoder:       enc,
		Decoder:       dec,
		NumEpochs:     cfg.NumEpochs,
		StepsPerEpoch: cfg.StepsPerEpoch,
		BatchSize:     cfg.BatchSize,
		LearningRate:  cfg.LearningRate,
		SaveEvery:     cfg.SaveEvery,
		PrintEvery:    cfg.PrintEvery,
		ModelDir:      cfg.ModelDir,
		Seed:          cfg.Seed,
		StatusLog:     statusLog,
	}

	if err := trainer.Run(ctx, runCfg); err != nil {
		log.Fatalf("training failed: %v", err)
	}
	if err := statusLog.Close(); err != nil {
		log.Fatalf("close log file: %v", err)
	}
}

// buildPairs encodes every annotation whose image decoded successfully,
// dropping captions longer than maxLen tokens once encoded.
func buildPairs(anns []dataset.Annotation, features map[int64][]float64, v *vocab.Vocabulary, maxLen int) []dataset.Pair {
	pairs := make([]dataset.Pair, 0, len(anns))
	for _, ann := range anns {
		if _, ok := features[ann.ImageID]; !ok {
			continue
		}
		encoded := v.Encode(ann.Caption)
		if len(encoded) > maxLen {
			continue
		}
		pairs = append(pairs, dataset.Pair{ImageID: ann.ImageID, Caption: encoded})
	}
	return pairs
}
