// Package eval runs the validation inference pass and scores the generated
// captions against reference captions.
package eval

import (
	"strings"

	"caption-forge/internal/model"
	"caption-forge/internal/vocab"
)

// PredictionMap accumulates generated caption strings by image id.
type PredictionMap map[int64][]string

// Generate produces one greedy caption per validation image: encoder once,
// autoregressive decode to the end token or maxLen, special tokens
// stripped, words joined by single spaces.
func Generate(enc *model.Encoder, dec *model.Decoder, v *vocab.Vocabulary, features map[int64][]float64, maxLen int) (PredictionMap, error) {
	preds := make(PredictionMap, len(features))
	for id, feats := range features {
		encoded, err := enc.Forward(feats)
		if err != nil {
			return nil, err
		}
		ids, err := dec.Sample(encoded, maxLen, vocab.End)
		if err != nil {
			return nil, err
		}
		caption := strings.Join(v.Decode(ids), " ")
		preds[id] = append(preds[id], caption)
	}
	return preds, nil
}
