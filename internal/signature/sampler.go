package signature

import (
	"fmt"
	"math/rand/v2"

	"github.com/kozaktomas/signet/internal/imaging"
)

// PairSampler draws balanced impostor/genuine training batches from a pool.
type PairSampler struct {
	normalizer *imaging.Normalizer
	rng        *rand.Rand
}

// NewPairSampler creates a sampler. The random source is owned by the
// sampler and must not be used concurrently elsewhere.
func NewPairSampler(normalizer *imaging.Normalizer, rng *rand.Rand) *PairSampler {
	return &PairSampler{normalizer: normalizer, rng: rng}
}

type imageKey struct {
	signer int64
	index  int
}

// Sample draws batchSize pairs. batchSize distinct signers are chosen without
// replacement; the first half of the batch pairs each with a different
// signer (label 0) and the second half with itself (label 1). Labels are
// not shuffled.
func (s *PairSampler) Sample(pool *Pool, batchSize int) (Batch, error) {
	nSigners := pool.Len()
	if batchSize <= 0 || batchSize%2 != 0 {
		return nil, fmt.Errorf("batch size %d must be even and positive: %w", batchSize, ErrInsufficientSigners)
	}
	if batchSize > nSigners {
		return nil, fmt.Errorf("batch size %d exceeds %d signers: %w", batchSize, nSigners, ErrInsufficientSigners)
	}

	categories := s.rng.Perm(nSigners)[:batchSize]
	cache := make(map[imageKey]imaging.Tensor)
	batch := make(Batch, batchSize)

	for i := range batchSize {
		category1 := categories[i]
		category2 := category1
		label := 1.0
		if i < batchSize/2 {
			// Any offset in [1, nSigners-1] lands on a different signer.
			category2 = (category1 + 1 + s.rng.IntN(nSigners-1)) % nSigners
			label = 0
		}

		signer1 := pool.Signer(category1)
		signer2 := pool.Signer(category2)

		left, err := s.draw(pool, signer1, cache)
		if err != nil {
			return nil, err
		}
		right, err := s.draw(pool, signer2, cache)
		if err != nil {
			return nil, err
		}

		batch[i] = Pair{
			Left:        left,
			Right:       right,
			LeftSigner:  signer1,
			RightSigner: signer2,
			Label:       label,
		}
	}
	return batch, nil
}

// draw picks one of the signer's images uniformly at random and normalizes it.
func (s *PairSampler) draw(pool *Pool, signer int64, cache map[imageKey]imaging.Tensor) (imaging.Tensor, error) {
	images := pool.Images(signer)
	idx := s.rng.IntN(len(images))
	key := imageKey{signer: signer, index: idx}
	if t, ok := cache[key]; ok {
		return t, nil
	}
	t, err := s.normalizer.Normalize(images[idx])
	if err != nil {
		return imaging.Tensor{}, fmt.Errorf("signer %d image %d: %w", signer, idx, err)
	}
	cache[key] = t
	return t, nil
}
