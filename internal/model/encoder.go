package model

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Encoder projects a raw image feature vector into the decoder's embedding
// space. Its output is fed to the decoder as the first recurrence input.
type Encoder struct {
	w *mat.Dense    // embedSize x inputSize
	b *mat.VecDense // embedSize

	inputSize int
	embedSize int
}

// NewEncoder constructs an encoder with small random initialization.
func NewEncoder(inputSize, embedSize int, seed int64) *Encoder {
	rng := rand.New(rand.NewSource(seed))
	return &Encoder{
		w:         randomDense(embedSize, inputSize, rng),
		b:         mat.NewVecDense(embedSize, nil),
		inputSize: inputSize,
		embedSize: embedSize,
	}
}

// Forward maps an image feature vector to an embedding-sized vector.
func (e *Encoder) Forward(features []float64) (*mat.VecDense, error) {
	if len(features) != e.inputSize {
		return nil, errors.Errorf("encoder: feature size %d, want %d", len(features), e.inputSize)
	}
	out := mat.NewVecDense(e.embedSize, nil)
	out.MulVec(e.w, mat.NewVecDense(e.inputSize, features))
	out.AddVec(out, e.b)
	tanhVec(out)
	return out, nil
}

// InputSize reports the expected feature vector length.
func (e *Encoder) InputSize() int { return e.inputSize }

// EmbedSize reports the output vector length.
func (e *Encoder) EmbedSize() int { return e.embedSize }

// EncoderState is the serializable parameter snapshot of an Encoder.
type EncoderState struct {
	InputSize int
	EmbedSize int
	W         []float64
	B         []float64
}

// State snapshots the encoder parameters.
func (e *Encoder) State() EncoderState {
	return EncoderState{
		InputSize: e.inputSize,
		EmbedSize: e.embedSize,
		W:         append([]float64(nil), e.w.RawMatrix().Data...),
		B:         append([]float64(nil), e.b.RawVector().Data...),
	}
}

// EncoderFromState rebuilds an encoder from a snapshot.
func EncoderFromState(s EncoderState) (*Encoder, error) {
	if s.InputSize <= 0 || s.EmbedSize <= 0 {
		return nil, errors.Errorf("encoder state: bad dimensions %dx%d", s.EmbedSize, s.InputSize)
	}
	if len(s.W) != s.EmbedSize*s.InputSize || len(s.B) != s.EmbedSize {
		return nil, errors.New("encoder state: parameter length mismatch")
	}
	return &Encoder{
		w:         mat.NewDense(s.EmbedSize, s.InputSize, append([]float64(nil), s.W...)),
		b:         mat.NewVecDense(s.EmbedSize, append([]float64(nil), s.B...)),
		inputSize: s.InputSize,
		embedSize: s.EmbedSize,
	}, nil
}

func randomDense(rows, cols int, rng *rand.Rand) *mat.Dense {
	data := make([]float64, rows*cols)
	scale := 1.0 / math.Sqrt(float64(cols))
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * scale
	}
	return mat.NewDense(rows, cols, data)
}

func tanhVec(v *mat.VecDense) {
	raw := v.RawVector()
	for i := 0; i < raw.N; i++ {
		raw.Data[i*raw.Inc] = math.Tanh(raw.Data[i*raw.Inc])
	}
}
