package config

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Config captures the runtime knobs for a training or evaluation run.
type Config struct {
	DataRoot         string
	ValRoot          string
	TrainAnnotations string
	ValAnnotations   string
	ModelDir         string
	LogFile          string
	BatchSize        int
	NumEpochs        int
	StepsPerEpoch    int
	EmbedSize        int
	HiddenSize       int
	VocabThreshold   int
	MaxCaptionLen    int
	LearningRate     float64
	SaveEvery        int
	PrintEvery       int
	NumWorkers       int
	Seed             int64
}

// Overrides captures CLI supplied values.
type Overrides struct {
	DataRoot      string
	ModelDir      string
	LogFile       string
	BatchSize     int
	NumEpochs     int
	StepsPerEpoch int
	Seed          int64
}

// Load reads and validates a Config from a flat key:value file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}
	defer f.Close()

	cfg, err := parse(f)
	if err != nil {
		return nil, errors.Wrap(err, "parse config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.DataRoot != "" {
		c.DataRoot = o.DataRoot
	}
	if o.ModelDir != "" {
		c.ModelDir = o.ModelDir
	}
	if o.LogFile != "" {
		c.LogFile = o.LogFile
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.NumEpochs > 0 {
		c.NumEpochs = o.NumEpochs
	}
	if o.StepsPerEpoch > 0 {
		c.StepsPerEpoch = o.StepsPerEpoch
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
}

// Validate verifies the config is runnable, filling defaults where a knob
// was omitted.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.DataRoot == "" {
		return errors.New("data_root must be set")
	}
	if c.TrainAnnotations == "" {
		return errors.New("train_annotations must be set")
	}
	if c.ModelDir == "" {
		c.ModelDir = "models"
	}
	if c.LogFile == "" {
		c.LogFile = "training.log"
	}
	if c.BatchSize <= 0 {
		return errors.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.NumEpochs <= 0 {
		return errors.Errorf("num_epochs must be > 0 (got %d)", c.NumEpochs)
	}
	if c.StepsPerEpoch <= 0 {
		return errors.Errorf("steps_per_epoch must be > 0 (got %d)", c.StepsPerEpoch)
	}
	if c.EmbedSize <= 0 {
		c.EmbedSize = 256
	}
	if c.HiddenSize <= 0 {
		c.HiddenSize = 512
	}
	if c.VocabThreshold <= 0 {
		c.VocabThreshold = 4
	}
	if c.MaxCaptionLen <= 0 {
		c.MaxCaptionLen = 20
	}
	if c.LearningRate <= 0 {
		c.LearningRate = 0.001
	}
	if c.SaveEvery <= 0 {
		c.SaveEvery = 1
	}
	if c.PrintEvery <= 0 {
		c.PrintEvery = 10
	}
	if c.NumWorkers <= 0 {
		c.NumWorkers = 1
	}
	return nil
}

func parse(r io.Reader) (*Config, error) {
	cfg := &Config{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			return nil, errors.Errorf("line %d: missing ':'", lineNo)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, "\"'")
		if err := cfg.set(key, value); err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) set(key, value string) error {
	switch key {
	case "data_root":
		c.DataRoot = value
	case "val_root":
		c.ValRoot = value
	case "train_annotations":
		c.TrainAnnotations = value
	case "val_annotations":
		c.ValAnnotations = value
	case "model_dir":
		c.ModelDir = value
	case "log_file":
		c.LogFile = value
	case "batch_size":
		return setInt(&c.BatchSize, key, value)
	case "num_epochs":
		return setInt(&c.NumEpochs, key, value)
	case "steps_per_epoch":
		return setInt(&c.StepsPerEpoch, key, value)
	case "embed_size":
		return setInt(&c.EmbedSize, key, value)
	case "hidden_size":
		return setInt(&c.HiddenSize, key, value)
	case "vocab_threshold":
		return setInt(&c.VocabThreshold, key, value)
	case "max_caption_len":
		return setInt(&c.MaxCaptionLen, key, value)
	case "learning_rate":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errors.Wrap(err, key)
		}
		c.LearningRate = v
	case "save_every":
		return setInt(&c.SaveEvery, key, value)
	case "print_every":
		return setInt(&c.PrintEvery, key, value)
	case "num_workers":
		return setInt(&c.NumWorkers, key, value)
	case "seed":
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return errors.Wrap(err, key)
		}
		c.Seed = v
	default:
		return errors.Errorf("unknown key %s", key)
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return errors.Wrap(err, key)
	}
	*dst = v
	return nil
}
