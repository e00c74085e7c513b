// Package vocab builds and persists the caption word vocabulary.
package vocab

import (
	"encoding/gob"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// Reserved token indices.
const (
	Pad   = 0
	Start = 1
	End   = 2
	Unk   = 3
)

const (
	PadToken   = "<pad>"
	StartToken = "<start>"
	EndToken   = "<end>"
	UnkToken   = "<unk>"
)

// Vocabulary maps caption words to integer ids and back. Words seen fewer
// than the build threshold times are folded into <unk>.
type Vocabulary struct {
	Index map[string]int
	Words []string
}

// Build constructs a vocabulary from raw caption strings, keeping only words
// whose corpus frequency reaches threshold. Word order is deterministic:
// special tokens first, then kept words sorted lexically.
func Build(captions []string, threshold int) *Vocabulary {
	if threshold < 1 {
		threshold = 1
	}
	counts := make(map[string]int)
	for _, caption := range captions {
		for _, word := range Tokenize(caption) {
			counts[word]++
		}
	}

	kept := make([]string, 0, len(counts))
	for word, n := range counts {
		if n >= threshold {
			kept = append(kept, word)
		}
	}
	sort.Strings(kept)

	v := &Vocabulary{
		Index: make(map[string]int, len(kept)+4),
		Words: make([]string, 0, len(kept)+4),
	}
	for _, tok := range []string{PadToken, StartToken, EndToken, UnkToken} {
		v.add(tok)
	}
	for _, word := range kept {
		v.add(word)
	}
	return v
}

func (v *Vocabulary) add(word string) {
	if _, ok := v.Index[word]; ok {
		return
	}
	v.Index[word] = len(v.Words)
	v.Words = append(v.Words, word)
}

// Size returns the number of distinct token ids.
func (v *Vocabulary) Size() int {
	return len(v.Words)
}

// ID returns the id for word, or Unk when the word is out of vocabulary.
func (v *Vocabulary) ID(word string) int {
	if id, ok := v.Index[word]; ok {
		return id
	}
	return Unk
}

// Word returns the token for id; out-of-range ids map to <unk>.
func (v *Vocabulary) Word(id int) string {
	if id < 0 || id >= len(v.Words) {
		return UnkToken
	}
	return v.Words[id]
}

// Encode tokenizes a caption and wraps the ids in <start>/<end>.
func (v *Vocabulary) Encode(caption string) []int {
	words := Tokenize(caption)
	ids := make([]int, 0, len(words)+2)
	ids = append(ids, Start)
	for _, word := range words {
		ids = append(ids, v.ID(word))
	}
	ids = append(ids, End)
	return ids
}

// Decode maps ids back to words, dropping the special tokens.
func (v *Vocabulary) Decode(ids []int) []string {
	words := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == Pad || id == Start || id == End || id == Unk {
			continue
		}
		words = append(words, v.Word(id))
	}
	return words
}

// Tokenize lower-cases a caption and splits it into words, treating any
// non-letter, non-digit rune as a separator.
func Tokenize(caption string) []string {
	lowered := strings.ToLower(caption)
	return strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Save writes the vocabulary to path using gob encoding.
func (v *Vocabulary) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create vocab file")
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(v); err != nil {
		return errors.Wrap(err, "encode vocab")
	}
	return nil
}

// Load reads a vocabulary previously written by Save.
func Load(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open vocab file")
	}
	defer f.Close()
	v := &Vocabulary{}
	if err := gob.NewDecoder(f).Decode(v); err != nil {
		return nil, errors.Wrap(err, "decode vocab")
	}
	return v, nil
}
