package vocab

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestBuildAppliesThreshold(t *testing.T) {
	captions := []string{
		"a dog runs",
		"a dog sleeps",
		"a cat sleeps",
	}
	v := Build(captions, 2)

	if v.ID("a") == Unk || v.ID("dog") == Unk || v.ID("sleeps") == Unk {
		t.Fatalf("frequent words missing from vocabulary")
	}
	if v.ID("runs") != Unk || v.ID("cat") != Unk {
		t.Fatalf("rare words should map to <unk>")
	}
	if v.Word(Pad) != PadToken || v.Word(Start) != StartToken || v.Word(End) != EndToken || v.Word(Unk) != UnkToken {
		t.Fatalf("special tokens not at reserved indices: %v", v.Words[:4])
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	v := Build([]string{"a dog runs fast"}, 1)
	ids := v.Encode("A dog runs fast.")
	if ids[0] != Start || ids[len(ids)-1] != End {
		t.Fatalf("encoded caption must be wrapped in start/end: %v", ids)
	}
	words := v.Decode(ids)
	want := []string{"a", "dog", "runs", "fast"}
	if !reflect.DeepEqual(words, want) {
		t.Fatalf("decode mismatch: got %v want %v", words, want)
	}
}

func TestTokenizeStripsPunctuation(t *testing.T) {
	got := Tokenize("A man, riding a horse!")
	want := []string{"a", "man", "riding", "a", "horse"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("tokenize mismatch: got %v want %v", got, want)
	}
}

func TestSaveLoad(t *testing.T) {
	v := Build([]string{"a dog runs", "a dog sleeps"}, 1)
	path := filepath.Join(t.TempDir(), "vocab.gob")
	if err := v.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Size() != v.Size() {
		t.Fatalf("size mismatch after reload: %d vs %d", loaded.Size(), v.Size())
	}
	if !reflect.DeepEqual(loaded.Words, v.Words) {
		t.Fatalf("word list mismatch after reload")
	}
	if loaded.ID("dog") != v.ID("dog") {
		t.Fatalf("id mismatch after reload")
	}
}
