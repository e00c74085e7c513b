package model

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// grads accumulates parameter gradients for one minibatch.
type grads struct {
	encW  *mat.Dense
	encB  *mat.VecDense
	embed *mat.Dense
	wx    *mat.Dense
	wh    *mat.Dense
	bh    *mat.VecDense
	wo    *mat.Dense
	bo    *mat.VecDense
}

func newGrads(enc *Encoder, dec *Decoder) *grads {
	return &grads{
		encW:  mat.NewDense(enc.embedSize, enc.inputSize, nil),
		encB:  mat.NewVecDense(enc.embedSize, nil),
		embed: mat.NewDense(dec.vocabSize, dec.embedSize, nil),
		wx:    mat.NewDense(dec.hiddenSize, dec.embedSize, nil),
		wh:    mat.NewDense(dec.hiddenSize, dec.hiddenSize, nil),
		bh:    mat.NewVecDense(dec.hiddenSize, nil),
		wo:    mat.NewDense(dec.vocabSize, dec.hiddenSize, nil),
		bo:    mat.NewVecDense(dec.vocabSize, nil),
	}
}

// TrainStep runs one teacher-forced forward pass over the batch, computes
// the mean token cross-entropy over the flattened (N*L, V) logits, applies
// one SGD update to both networks and returns the loss.
func TrainStep(enc *Encoder, dec *Decoder, batch Batch, lr float64) (float64, error) {
	n := len(batch.Features)
	if n == 0 || len(batch.Captions) != n {
		return 0, errors.Errorf("train: batch has %d feature rows and %d captions", n, len(batch.Captions))
	}
	if enc.embedSize != dec.embedSize {
		return 0, errors.Errorf("train: encoder output %d does not match decoder input %d", enc.embedSize, dec.embedSize)
	}
	seqLen := len(batch.Captions[0])
	if seqLen == 0 {
		return 0, errors.New("train: empty caption in batch")
	}
	for i, caption := range batch.Captions {
		if len(caption) != seqLen {
			return 0, errors.Errorf("train: caption %d has length %d, batch length is %d", i, len(caption), seqLen)
		}
	}

	g := newGrads(enc, dec)
	scale := 1.0 / float64(n*seqLen)
	totalLoss := 0.0

	for i := 0; i < n; i++ {
		loss, err := backpropExample(enc, dec, g, batch.Features[i], batch.Captions[i], scale)
		if err != nil {
			return 0, err
		}
		totalLoss += loss
	}

	applyDense(enc.w, g.encW, lr)
	applyVec(enc.b, g.encB, lr)
	applyDense(dec.embed, g.embed, lr)
	applyDense(dec.wx, g.wx, lr)
	applyDense(dec.wh, g.wh, lr)
	applyVec(dec.bh, g.bh, lr)
	applyDense(dec.wo, g.wo, lr)
	applyVec(dec.bo, g.bo, lr)

	return totalLoss * scale, nil
}

// backpropExample runs forward and backward over a single caption. The
// decoder consumes the encoder output at position 0 and the embedding of
// token t-1 at position t; position t is scored against caption[t].
func backpropExample(enc *Encoder, dec *Decoder, g *grads, features []float64, caption []int, scale float64) (float64, error) {
	for _, id := range caption {
		if id < 0 || id >= dec.vocabSize {
			return 0, errors.Errorf("train: token id %d outside vocabulary of %d", id, dec.vocabSize)
		}
	}

	encoded, err := enc.Forward(features)
	if err != nil {
		return 0, err
	}

	seqLen := len(caption)
	inputs := make([]mat.Vector, seqLen)
	hidden := make([]*mat.VecDense, seqLen)
	dlogits := make([][]float64, seqLen)

	loss := 0.0
	var prev *mat.VecDense
	for t := 0; t < seqLen; t++ {
		if t == 0 {
			inputs[t] = encoded
		} else {
			inputs[t] = dec.embed.RowView(caption[t-1])
		}
		hidden[t] = dec.step(inputs[t], prev)
		prev = hidden[t]

		probs := softmax(dec.logits(hidden[t]))
		target := caption[t]
		loss += -math.Log(math.Max(probs[target], 1e-12))
		probs[target] -= 1
		dlogits[t] = probs
	}

	carry := mat.NewVecDense(dec.hiddenSize, nil)
	dh := mat.NewVecDense(dec.hiddenSize, nil)
	da := mat.NewVecDense(dec.hiddenSize, nil)
	du := mat.NewVecDense(dec.embedSize, nil)

	for t := seqLen - 1; t >= 0; t-- {
		dlp := mat.NewVecDense(dec.vocabSize, dlogits[t])
		dlp.ScaleVec(scale, dlp)

		g.wo.RankOne(g.wo, 1, dlp, hidden[t])
		g.bo.AddVec(g.bo, dlp)

		dh.MulVec(dec.wo.T(), dlp)
		dh.AddVec(dh, carry)

		// through the tanh
		for j := 0; j < dec.hiddenSize; j++ {
			h := hidden[t].AtVec(j)
			da.SetVec(j, dh.AtVec(j)*(1-h*h))
		}

		g.wx.RankOne(g.wx, 1, da, inputs[t])
		g.bh.AddVec(g.bh, da)
		if t > 0 {
			g.wh.RankOne(g.wh, 1, da, hidden[t-1])
		}

		du.MulVec(dec.wx.T(), da)
		if t > 0 {
			row := g.embed.RawRowView(caption[t-1])
			for j := range row {
				row[j] += du.AtVec(j)
			}
		} else {
			backpropEncoder(enc, g, features, encoded, du)
		}

		carry.MulVec(dec.wh.T(), da)
	}

	return loss, nil
}

func backpropEncoder(enc *Encoder, g *grads, features []float64, encoded, dEncoded *mat.VecDense) {
	dz := mat.NewVecDense(enc.embedSize, nil)
	for j := 0; j < enc.embedSize; j++ {
		f := encoded.AtVec(j)
		dz.SetVec(j, dEncoded.AtVec(j)*(1-f*f))
	}
	g.encW.RankOne(g.encW, 1, dz, mat.NewVecDense(enc.inputSize, features))
	g.encB.AddVec(g.encB, dz)
}

func applyDense(param, grad *mat.Dense, lr float64) {
	p := param.RawMatrix()
	g := grad.RawMatrix()
	for i := range p.Data {
		p.Data[i] -= lr * g.Data[i]
	}
}

func applyVec(param, grad *mat.VecDense, lr float64) {
	p := param.RawVector()
	g := grad.RawVector()
	for i := range p.Data {
		p.Data[i] -= lr * g.Data[i]
	}
}
