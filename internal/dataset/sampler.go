package dataset

import (
	"math/rand"
	"sort"

	"github.com/pkg/errors"
)

// Pair is one training example: an image id and its encoded caption.
type Pair struct {
	ImageID int64
	Caption []int
}

// LengthSampler draws length-homogeneous minibatches. Pair indices are
// bucketed by caption token length; each draw first picks a length with
// probability proportional to that length's pair count, then samples
// indices uniformly with replacement from the bucket.
type LengthSampler struct {
	lengths []int
	buckets map[int][]int
	weights []int
	total   int
	rng     *rand.Rand
}

// NewLengthSampler builds a sampler over pairs. Pairs with empty captions
// are rejected.
func NewLengthSampler(pairs []Pair, seed int64) (*LengthSampler, error) {
	if len(pairs) == 0 {
		return nil, errors.New("sampler: no training pairs")
	}
	buckets := make(map[int][]int)
	for i, pair := range pairs {
		if len(pair.Caption) == 0 {
			return nil, errors.Errorf("sampler: pair %d has an empty caption", i)
		}
		buckets[len(pair.Caption)] = append(buckets[len(pair.Caption)], i)
	}

	lengths := make([]int, 0, len(buckets))
	for length := range buckets {
		lengths = append(lengths, length)
	}
	sort.Ints(lengths)

	s := &LengthSampler{
		lengths: lengths,
		buckets: buckets,
		weights: make([]int, len(lengths)),
		rng:     rand.New(rand.NewSource(seed)),
	}
	for i, length := range lengths {
		s.weights[i] = len(buckets[length])
		s.total += s.weights[i]
	}
	return s, nil
}

// NextBatch returns batchSize pair indices whose captions all share one
// length. A fresh length is drawn on every call.
func (s *LengthSampler) NextBatch(batchSize int) []int {
	if batchSize <= 0 {
		batchSize = 1
	}
	bucket := s.buckets[s.drawLength()]
	indices := make([]int, batchSize)
	for i := range indices {
		indices[i] = bucket[s.rng.Intn(len(bucket))]
	}
	return indices
}

func (s *LengthSampler) drawLength() int {
	target := s.rng.Intn(s.total)
	running := 0
	for i, w := range s.weights {
		running += w
		if target < running {
			return s.lengths[i]
		}
	}
	return s.lengths[len(s.lengths)-1]
}

// Lengths reports the distinct caption lengths the sampler knows about.
func (s *LengthSampler) Lengths() []int {
	out := make([]int, len(s.lengths))
	copy(out, s.lengths)
	return out
}
