package signature

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// TrainProgress is reported after every training step.
type TrainProgress struct {
	Step  int     `json:"step"`
	Total int     `json:"total"`
	Loss  float64 `json:"loss"`
}

// TrainResult summarizes a finished training run.
type TrainResult struct {
	BatchSize  int
	Iterations int
	FinalLoss  float64
	MeanLoss   float64
	Weights    ModelWeights
}

// Trainer fine-tunes a similarity model on pairs drawn from a room's pool.
type Trainer struct {
	sampler            *PairSampler
	batchFraction      float64
	iterationsPerBatch int
}

// NewTrainer creates a trainer drawing batches of
// ceil(batchFraction * participants) pairs, iterationsPerBatch times the
// batch size.
func NewTrainer(sampler *PairSampler, batchFraction float64, iterationsPerBatch int) *Trainer {
	return &Trainer{
		sampler:            sampler,
		batchFraction:      batchFraction,
		iterationsPerBatch: iterationsPerBatch,
	}
}

// BatchSize returns ceil(fraction * participants) rounded down to an even
// number, since every batch is half impostor and half genuine pairs.
func BatchSize(participants int, fraction float64) int {
	size := int(math.Ceil(fraction * float64(participants)))
	return size - size%2
}

// Plan returns the batch size and iteration count for a room.
func (t *Trainer) Plan(participants int) (batchSize, iterations int) {
	batchSize = BatchSize(participants, t.batchFraction)
	return batchSize, t.iterationsPerBatch * batchSize
}

// Train runs the training loop on model and returns its serialized weights.
// The model is mutated in place; nothing is persisted here.
func (t *Trainer) Train(ctx context.Context, model SimilarityModel, pool *Pool, participants int, progress func(TrainProgress)) (*TrainResult, error) {
	if participants < 2 {
		return nil, fmt.Errorf("%d participants: %w", participants, ErrInsufficientEnrollment)
	}
	batchSize, iterations := t.Plan(participants)
	if batchSize > pool.Len() {
		return nil, fmt.Errorf("batch size %d but only %d signers have enrolled signatures: %w",
			batchSize, pool.Len(), errors.Join(ErrInsufficientEnrollment, ErrInsufficientSigners))
	}

	result := &TrainResult{BatchSize: batchSize, Iterations: iterations}
	var total float64
	for step := 1; step <= iterations; step++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("training interrupted at step %d: %w", step, err)
		}

		batch, err := t.sampler.Sample(pool, batchSize)
		if err != nil {
			return nil, fmt.Errorf("sampling batch %d: %w", step, err)
		}
		loss, err := model.TrainOnBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("training step %d: %w", step, err)
		}

		total += loss
		result.FinalLoss = loss
		if progress != nil {
			progress(TrainProgress{Step: step, Total: iterations, Loss: loss})
		}
	}
	result.MeanLoss = total / float64(iterations)

	weights, err := model.SaveWeights(ctx)
	if err != nil {
		return nil, fmt.Errorf("serializing weights: %w", err)
	}
	result.Weights = weights
	return result, nil
}
