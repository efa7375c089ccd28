package signature

import (
	"context"

	"github.com/kozaktomas/signet/internal/imaging"
)

// ModelWeights is an opaque serialized weight artifact.
type ModelWeights []byte

// SimilarityModel scores pairs of normalized signatures. Lower scores mean
// more similar. Implementations hold mutable weights and must not be
// shared between rooms or concurrent calls.
type SimilarityModel interface {
	// TrainOnBatch runs one optimization step on the contrastive objective
	// and returns the batch loss.
	TrainOnBatch(ctx context.Context, batch Batch) (float64, error)
	// Predict returns one distance per (left[i], right[i]) pair.
	Predict(ctx context.Context, left, right []imaging.Tensor) ([]float64, error)
	// LoadWeights replaces the model weights in place.
	LoadWeights(ctx context.Context, weights ModelWeights) error
	// SaveWeights serializes the current weights.
	SaveWeights(ctx context.Context) (ModelWeights, error)
}

// ModelFactory creates a fresh, untrained model instance.
type ModelFactory func() (SimilarityModel, error)

// Pair is a training pair. Label is 1 for the same signer and 0 otherwise.
type Pair struct {
	Left        imaging.Tensor
	Right       imaging.Tensor
	LeftSigner  int64
	RightSigner int64
	Label       float64
}

// Batch is an ordered set of training pairs.
type Batch []Pair

// Lefts returns the first image of every pair.
func (b Batch) Lefts() []imaging.Tensor {
	out := make([]imaging.Tensor, len(b))
	for i := range b {
		out[i] = b[i].Left
	}
	return out
}

// Rights returns the second image of every pair.
func (b Batch) Rights() []imaging.Tensor {
	out := make([]imaging.Tensor, len(b))
	for i := range b {
		out[i] = b[i].Right
	}
	return out
}

// Labels returns the pair labels.
func (b Batch) Labels() []float64 {
	out := make([]float64, len(b))
	for i := range b {
		out[i] = b[i].Label
	}
	return out
}

// replicate returns n copies of the query tensor. The copies share the
// underlying data, which models must treat as read-only.
func replicate(query imaging.Tensor, n int) []imaging.Tensor {
	out := make([]imaging.Tensor, n)
	for i := range out {
		out[i] = query
	}
	return out
}
