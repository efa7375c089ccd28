package signature

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/kozaktomas/signet/internal/imaging"
)

// Identification is the outcome of one-vs-N recognition.
type Identification struct {
	SignerID      int64     `json:"signer_id"`
	Confidence    float64   `json:"confidence"`
	Candidates    []int64   `json:"candidates"`
	Scores        []float64 `json:"scores"`
	Probabilities []float64 `json:"probabilities"`
}

// RecognitionEngine identifies the signer of a query among all signers of a pool.
type RecognitionEngine struct {
	normalizer *imaging.Normalizer
	rng        *rand.Rand
	scale      float64
}

// NewRecognitionEngine creates an engine that multiplies raw distances by
// scale before converting them to probabilities.
func NewRecognitionEngine(normalizer *imaging.Normalizer, rng *rand.Rand, scale float64) *RecognitionEngine {
	return &RecognitionEngine{normalizer: normalizer, rng: rng, scale: scale}
}

// Identify draws one random reference per signer, scores the query against
// that support set in a single batch and returns the most probable signer.
// The support set is resampled on every call.
func (e *RecognitionEngine) Identify(ctx context.Context, model SimilarityModel, query imaging.Tensor, pool *Pool) (*Identification, error) {
	n := pool.Len()
	if n == 0 {
		return nil, ErrEmptyPool
	}

	candidates := pool.Signers()
	support := make([]imaging.Tensor, n)
	for i, signer := range candidates {
		images := pool.Images(signer)
		idx := e.rng.IntN(len(images))
		t, err := e.normalizer.Normalize(images[idx])
		if err != nil {
			return nil, fmt.Errorf("signer %d image %d: %w", signer, idx, err)
		}
		support[i] = t
	}

	scores, err := model.Predict(ctx, replicate(query, n), support)
	if err != nil {
		return nil, fmt.Errorf("scoring support set: %w", err)
	}
	if len(scores) != n {
		return nil, fmt.Errorf("expected %d scores, got %d: %w", n, len(scores), ErrModelOutput)
	}

	probs, err := SoftminProbabilities(scores, e.scale)
	if err != nil {
		return nil, err
	}

	best := 0
	for i := 1; i < n; i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}

	return &Identification{
		SignerID:      candidates[best],
		Confidence:    probs[best],
		Candidates:    candidates,
		Scores:        scores,
		Probabilities: probs,
	}, nil
}

// SoftminProbabilities returns softmax(-scale*scores). Lower distances get
// higher probability. The minimum is subtracted first so large distances
// cannot underflow every term to zero.
func SoftminProbabilities(scores []float64, scale float64) ([]float64, error) {
	if len(scores) == 0 {
		return nil, ErrEmptyPool
	}
	minScaled := math.Inf(1)
	for _, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("non-finite score %v: %w", s, ErrModelOutput)
		}
		minScaled = math.Min(minScaled, s*scale)
	}

	probs := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		probs[i] = math.Exp(-(s*scale - minScaled))
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs, nil
}
