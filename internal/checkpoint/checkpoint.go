// Package checkpoint persists encoder and decoder parameters, one file pair
// per epoch.
package checkpoint

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"caption-forge/internal/model"
)

// EncoderPath returns the checkpoint file name for the encoder at epoch.
func EncoderPath(dir string, epoch int) string {
	return filepath.Join(dir, fmt.Sprintf("encoder-%d.gob", epoch))
}

// DecoderPath returns the checkpoint file name for the decoder at epoch.
func DecoderPath(dir string, epoch int) string {
	return filepath.Join(dir, fmt.Sprintf("decoder-%d.gob", epoch))
}

// VocabPath returns the vocabulary file name under the model directory.
func VocabPath(dir string) string {
	return filepath.Join(dir, "vocab.gob")
}

// Save writes the encoder and decoder parameter state for epoch under dir,
// creating dir if needed. Files are written once and never rewritten.
func Save(dir string, epoch int, enc *model.Encoder, dec *model.Decoder) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create model dir")
	}
	if err := writeGob(EncoderPath(dir, epoch), enc.State()); err != nil {
		return errors.Wrapf(err, "save encoder epoch %d", epoch)
	}
	if err := writeGob(DecoderPath(dir, epoch), dec.State()); err != nil {
		return errors.Wrapf(err, "save decoder epoch %d", epoch)
	}
	return nil
}

// LoadEncoder restores the encoder saved for epoch.
func LoadEncoder(dir string, epoch int) (*model.Encoder, error) {
	var state model.EncoderState
	if err := readGob(EncoderPath(dir, epoch), &state); err != nil {
		return nil, errors.Wrapf(err, "load encoder epoch %d", epoch)
	}
	return model.EncoderFromState(state)
}

// LoadDecoder restores the decoder saved for epoch.
func LoadDecoder(dir string, epoch int) (*model.Decoder, error) {
	var state model.DecoderState
	if err := readGob(DecoderPath(dir, epoch), &state); err != nil {
		return nil, errors.Wrapf(err, "load decoder epoch %d", epoch)
	}
	return model.DecoderFromState(state)
}

func writeGob(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create")
	}
	if err := gob.NewEncoder(f).Encode(v); err != nil {
		f.Close()
		return errors.Wrap(err, "encode")
	}
	return errors.Wrap(f.Close(), "close")
}

func readGob(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	defer f.Close()
	return errors.Wrap(gob.NewDecoder(f).Decode(v), "decode")
}
