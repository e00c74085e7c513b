package checkpoint

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"caption-forge/internal/model"
)

func TestPathNaming(t *testing.T) {
	if got := DecoderPath("models", 3); got != filepath.Join("models", "decoder-3.gob") {
		t.Fatalf("decoder path: %s", got)
	}
	if got := EncoderPath("models", 12); got != filepath.Join("models", "encoder-12.gob") {
		t.Fatalf("encoder path: %s", got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	enc := model.NewEncoder(8, 4, 21)
	dec := model.NewDecoder(10, 4, 6, 22)

	if err := Save(dir, 3, enc, dec); err != nil {
		t.Fatalf("save: %v", err)
	}
	for _, path := range []string{EncoderPath(dir, 3), DecoderPath(dir, 3)} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("missing checkpoint file %s: %v", path, err)
		}
	}

	enc2, err := LoadEncoder(dir, 3)
	if err != nil {
		t.Fatalf("load encoder: %v", err)
	}
	dec2, err := LoadDecoder(dir, 3)
	if err != nil {
		t.Fatalf("load decoder: %v", err)
	}
	if !reflect.DeepEqual(enc.State(), enc2.State()) {
		t.Fatal("encoder parameters changed across save/load")
	}
	if !reflect.DeepEqual(dec.State(), dec2.State()) {
		t.Fatal("decoder parameters changed across save/load")
	}
}

func TestLoadMissingEpoch(t *testing.T) {
	if _, err := LoadDecoder(t.TempDir(), 7); err == nil {
		t.Fatal("expected error for missing checkpoint")
	}
}
