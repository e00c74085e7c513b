package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"caption-forge/internal/checkpoint"
	"caption-forge/internal/config"
	"caption-forge/internal/dataset"
	"caption-forge/internal/eval"
	"caption-forge/internal/vocab"
)

func main() {
	cfgPath := flag.String("config", "configs/train.conf", "Path to config file")
	epoch := flag.Int("epoch", 0, "Checkpoint epoch to evaluate")

	flag.Parse()

	if *epoch <= 0 {
		log.Fatalf("-epoch must be > 0")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.ValRoot == "" {
		log.Fatalf("val_root must be set for evaluation")
	}
	if cfg.ValAnnotations == "" {
		log.Fatalf("val_annotations must be set for evaluation")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v, err := vocab.Load(checkpoint.VocabPath(cfg.ModelDir))
	if err != nil {
		log.Fatalf("load vocabulary: %v", err)
	}

	enc, err := checkpoint.LoadEncoder(cfg.ModelDir, *epoch)
	if err != nil {
		log.Fatalf("load encoder: %v", err)
	}
	dec, err := checkpoint.LoadDecoder(cfg.ModelDir, *epoch)
	if err != nil {
		log.Fatalf("load decoder: %v", err)
	}

	shards, err := dataset.DiscoverShards(cfg.ValRoot)
	if err != nil {
		log.Fatalf("discover shards under %s: %v", cfg.ValRoot, err)
	}
	if len(shards) == 0 {
		log.Fatalf("no shards discovered under %s", cfg.ValRoot)
	}

	features, skipped, err := dataset.LoadFeatures(ctx, shards, cfg.NumWorkers)
	if err != nil {
		log.Fatalf("load validation features: %v", err)
	}
	log.Printf("validation images=%d skipped=%d", len(features), skipped)

	preds, err := eval.Generate(enc, dec, v, features, cfg.MaxCaptionLen)
	if err != nil {
		log.Fatalf("generate captions: %v", err)
	}

	anns, err := dataset.LoadAnnotations(cfg.ValAnnotations)
	if err != nil {
		log.Fatalf("load validation annotations: %v", err)
	}
	refs := dataset.BuildReferenceMap(anns)

	score, scored := eval.Corpus(refs, preds)
	fmt.Printf("BLEU: %.4f over %d images (epoch %d)\n", score, scored, *epoch)
}
