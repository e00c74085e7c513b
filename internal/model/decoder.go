package model

import (
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Decoder generates caption token sequences. Each step embeds the previous
// token (or consumes the encoder output at the first step), advances a tanh
// recurrence, and projects the hidden state onto vocabulary logits.
type Decoder struct {
	embed *mat.Dense    // vocabSize x embedSize
	wx    *mat.Dense    // hiddenSize x embedSize
	wh    *mat.Dense    // hiddenSize x hiddenSize
	bh    *mat.VecDense // hiddenSize
	wo    *mat.Dense    // vocabSize x hiddenSize
	bo    *mat.VecDense // vocabSize

	vocabSize  int
	embedSize  int
	hiddenSize int
}

// NewDecoder constructs a decoder with small random initialization.
func NewDecoder(vocabSize, embedSize, hiddenSize int, seed int64) *Decoder {
	rng := rand.New(rand.NewSource(seed))
	return &Decoder{
		embed:      randomDense(vocabSize, embedSize, rng),
		wx:         randomDense(hiddenSize, embedSize, rng),
		wh:         randomDense(hiddenSize, hiddenSize, rng),
		bh:         mat.NewVecDense(hiddenSize, nil),
		wo:         randomDense(vocabSize, hiddenSize, rng),
		bo:         mat.NewVecDense(vocabSize, nil),
		vocabSize:  vocabSize,
		embedSize:  embedSize,
		hiddenSize: hiddenSize,
	}
}

// VocabSize reports the logit dimensionality.
func (d *Decoder) VocabSize() int { return d.vocabSize }

// EmbedSize reports the expected input vector length.
func (d *Decoder) EmbedSize() int { return d.embedSize }

// HiddenSize reports the recurrence width.
func (d *Decoder) HiddenSize() int { return d.hiddenSize }

// step advances the recurrence by one input. prev may be nil for the
// initial zero state.
func (d *Decoder) step(input mat.Vector, prev *mat.VecDense) *mat.VecDense {
	h := mat.NewVecDense(d.hiddenSize, nil)
	h.MulVec(d.wx, input)
	if prev != nil {
		rec := mat.NewVecDense(d.hiddenSize, nil)
		rec.MulVec(d.wh, prev)
		h.AddVec(h, rec)
	}
	h.AddVec(h, d.bh)
	tanhVec(h)
	return h
}

// logits projects a hidden state onto the vocabulary.
func (d *Decoder) logits(h *mat.VecDense) []float64 {
	out := mat.NewVecDense(d.vocabSize, nil)
	out.MulVec(d.wo, h)
	out.AddVec(out, d.bo)
	return out.RawVector().Data
}

// Sample greedily decodes a token sequence from an encoder output. Decoding
// stops after emitting endID or after maxLen tokens.
func (d *Decoder) Sample(encoded *mat.VecDense, maxLen, endID int) ([]int, error) {
	if encoded.Len() != d.embedSize {
		return nil, errors.Errorf("decoder: input size %d, want %d", encoded.Len(), d.embedSize)
	}
	if maxLen <= 0 {
		maxLen = 20
	}
	ids := make([]int, 0, maxLen)
	var h *mat.VecDense
	var input mat.Vector = encoded
	for t := 0; t < maxLen; t++ {
		h = d.step(input, h)
		id := argmax(d.logits(h))
		ids = append(ids, id)
		if id == endID {
			break
		}
		input = d.embed.RowView(id)
	}
	return ids, nil
}

// DecoderState is the serializable parameter snapshot of a Decoder.
type DecoderState struct {
	VocabSize  int
	EmbedSize  int
	HiddenSize int
	Embed      []float64
	Wx         []float64
	Wh         []float64
	Bh         []float64
	Wo         []float64
	Bo         []float64
}

// State snapshots the decoder parameters.
func (d *Decoder) State() DecoderState {
	return DecoderState{
		VocabSize:  d.vocabSize,
		EmbedSize:  d.embedSize,
		HiddenSize: d.hiddenSize,
		Embed:      append([]float64(nil), d.embed.RawMatrix().Data...),
		Wx:         append([]float64(nil), d.wx.RawMatrix().Data...),
		Wh:         append([]float64(nil), d.wh.RawMatrix().Data...),
		Bh:         append([]float64(nil), d.bh.RawVector().Data...),
		Wo:         append([]float64(nil), d.wo.RawMatrix().Data...),
		Bo:         append([]float64(nil), d.bo.RawVector().Data...),
	}
}

// DecoderFromState rebuilds a decoder from a snapshot.
func DecoderFromState(s DecoderState) (*Decoder, error) {
	if s.VocabSize <= 0 || s.EmbedSize <= 0 || s.HiddenSize <= 0 {
		return nil, errors.New("decoder state: bad dimensions")
	}
	ok := len(s.Embed) == s.VocabSize*s.EmbedSize &&
		len(s.Wx) == s.HiddenSize*s.EmbedSize &&
		len(s.Wh) == s.HiddenSize*s.HiddenSize &&
		len(s.Bh) == s.HiddenSize &&
		len(s.Wo) == s.VocabSize*s.HiddenSize &&
		len(s.Bo) == s.VocabSize
	if !ok {
		return nil, errors.New("decoder state: parameter length mismatch")
	}
	return &Decoder{
		embed:      mat.NewDense(s.VocabSize, s.EmbedSize, append([]float64(nil), s.Embed...)),
		wx:         mat.NewDense(s.HiddenSize, s.EmbedSize, append([]float64(nil), s.Wx...)),
		wh:         mat.NewDense(s.HiddenSize, s.HiddenSize, append([]float64(nil), s.Wh...)),
		bh:         mat.NewVecDense(s.HiddenSize, append([]float64(nil), s.Bh...)),
		wo:         mat.NewDense(s.VocabSize, s.HiddenSize, append([]float64(nil), s.Wo...)),
		bo:         mat.NewVecDense(s.VocabSize, append([]float64(nil), s.Bo...)),
		vocabSize:  s.VocabSize,
		embedSize:  s.EmbedSize,
		hiddenSize: s.HiddenSize,
	}, nil
}
