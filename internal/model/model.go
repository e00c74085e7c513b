// Package model implements the captioning network: a linear image encoder
// feeding an Elman recurrence decoder over the caption vocabulary.
package model

import "math"

// Batch is a minibatch of image feature vectors and encoded captions. All
// captions in a batch share one token length.
type Batch struct {
	Features [][]float64
	Captions [][]int
}

func softmax(logits []float64) []float64 {
	maxLogit := logits[0]
	for _, v := range logits {
		if v > maxLogit {
			maxLogit = v
		}
	}
	sum := 0.0
	out := make([]float64, len(logits))
	for i, v := range logits {
		exp := math.Exp(v - maxLogit)
		out[i] = exp
		sum += exp
	}
	inv := 1.0 / sum
	for i := range out {
		out[i] *= inv
	}
	return out
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
