package siamese

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/kozaktomas/signet/internal/imaging"
	"github.com/kozaktomas/signet/internal/signature"
)

// PoolSize is the side of the average-pooling window applied before projection.
const PoolSize = 5

// LinearOptions configures a Linear model.
type LinearOptions struct {
	Height       int
	Width        int
	EmbeddingDim int
	LearningRate float64
	Margin       float64
	Seed         int64
}

// Linear is a Siamese network whose twin branches share one linear
// projection of the average-pooled image. The distance of a pair is the
// Euclidean norm of the difference of the two embeddings.
type Linear struct {
	opts     LinearOptions
	rows     int
	cols     int
	features int
	w        []float64 // EmbeddingDim x features, row-major
}

// linearWeights is the gob-encoded weight artifact.
type linearWeights struct {
	EmbeddingDim int
	Features     int
	PoolSize     int
	W            []float64
}

// NewLinear creates a model with deterministic random weights derived from opts.Seed.
func NewLinear(opts LinearOptions) *Linear {
	rows := (opts.Height + PoolSize - 1) / PoolSize
	cols := (opts.Width + PoolSize - 1) / PoolSize
	m := &Linear{
		opts:     opts,
		rows:     rows,
		cols:     cols,
		features: rows * cols,
	}
	m.w = make([]float64, opts.EmbeddingDim*m.features)

	// Rows with variance 1/EmbeddingDim keep the initial distance close to
	// the norm of the pooled difference.
	rng := rand.New(rand.NewPCG(uint64(opts.Seed), uint64(opts.EmbeddingDim)))
	limit := math.Sqrt(3 / float64(opts.EmbeddingDim))
	for i := range m.w {
		m.w[i] = (rng.Float64()*2 - 1) * limit
	}
	return m
}

// pool averages non-overlapping PoolSize x PoolSize windows and scales the
// result by 1/sqrt(features), so the norm of a pooled difference is the RMS
// pixel difference. Edge windows average only the pixels they cover.
func (m *Linear) pool(t imaging.Tensor) ([]float64, error) {
	if t.Height != m.opts.Height || t.Width != m.opts.Width || len(t.Data) != t.Height*t.Width {
		return nil, fmt.Errorf("tensor %dx%d, model expects %dx%d: %w",
			t.Height, t.Width, m.opts.Height, m.opts.Width, ErrShapeMismatch)
	}
	out := make([]float64, m.features)
	counts := make([]int, m.features)
	for y := range t.Height {
		for x := range t.Width {
			i := (y/PoolSize)*m.cols + x/PoolSize
			out[i] += float64(t.Data[y*t.Width+x])
			counts[i]++
		}
	}
	scale := 1 / math.Sqrt(float64(m.features))
	for i := range out {
		out[i] = out[i] / float64(counts[i]) * scale
	}
	return out, nil
}

// project returns W*u.
func (m *Linear) project(u []float64) []float64 {
	v := make([]float64, m.opts.EmbeddingDim)
	for r := range v {
		row := m.w[r*m.features : (r+1)*m.features]
		var s float64
		for c, x := range u {
			s += row[c] * x
		}
		v[r] = s
	}
	return v
}

// diff pools both images and returns the difference of the pooled features.
func (m *Linear) diff(left, right imaging.Tensor) ([]float64, error) {
	a, err := m.pool(left)
	if err != nil {
		return nil, err
	}
	b, err := m.pool(right)
	if err != nil {
		return nil, err
	}
	for i := range a {
		a[i] -= b[i]
	}
	return a, nil
}

func norm(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}

// TrainOnBatch takes one gradient descent step on the contrastive loss and
// returns the loss measured before the update.
func (m *Linear) TrainOnBatch(ctx context.Context, batch signature.Batch) (float64, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	grad := make([]float64, len(m.w))
	labels := batch.Labels()
	distances := make([]float64, len(batch))

	for i, pair := range batch {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		u, err := m.diff(pair.Left, pair.Right)
		if err != nil {
			return 0, fmt.Errorf("pair %d: %w", i, err)
		}
		v := m.project(u)
		d := norm(v)
		distances[i] = d

		// dL/dW = coef * v * u^T
		var coef float64
		switch {
		case labels[i] == 1:
			coef = 2
		case d < m.opts.Margin && d > 0:
			coef = -2 * (m.opts.Margin - d) / d
		default:
			continue
		}
		for r, vr := range v {
			row := grad[r*m.features : (r+1)*m.features]
			for c, uc := range u {
				row[c] += coef * vr * uc
			}
		}
	}

	loss, err := ContrastiveLoss(labels, distances, m.opts.Margin)
	if err != nil {
		return 0, err
	}

	step := m.opts.LearningRate / float64(len(batch))
	for i := range m.w {
		m.w[i] -= step * grad[i]
	}
	return loss, nil
}

// Predict returns the embedding distance of every pair.
func (m *Linear) Predict(ctx context.Context, left, right []imaging.Tensor) ([]float64, error) {
	if len(left) != len(right) {
		return nil, fmt.Errorf("%d left and %d right tensors: %w", len(left), len(right), ErrShapeMismatch)
	}
	out := make([]float64, len(left))
	for i := range left {
		u, err := m.diff(left[i], right[i])
		if err != nil {
			return nil, fmt.Errorf("pair %d: %w", i, err)
		}
		out[i] = norm(m.project(u))
	}
	return out, nil
}

// LoadWeights replaces the projection with a previously saved one.
func (m *Linear) LoadWeights(ctx context.Context, weights signature.ModelWeights) error {
	var lw linearWeights
	if err := gob.NewDecoder(bytes.NewReader(weights)).Decode(&lw); err != nil {
		return fmt.Errorf("decoding weights: %w", err)
	}
	if lw.EmbeddingDim != m.opts.EmbeddingDim || lw.Features != m.features || lw.PoolSize != PoolSize ||
		len(lw.W) != lw.EmbeddingDim*lw.Features {
		return fmt.Errorf("weights %dx%d (pool %d), model %dx%d (pool %d): %w",
			lw.EmbeddingDim, lw.Features, lw.PoolSize, m.opts.EmbeddingDim, m.features, PoolSize, ErrShapeMismatch)
	}
	m.w = lw.W
	return nil
}

// SaveWeights serializes the projection.
func (m *Linear) SaveWeights(ctx context.Context) (signature.ModelWeights, error) {
	var buf bytes.Buffer
	lw := linearWeights{
		EmbeddingDim: m.opts.EmbeddingDim,
		Features:     m.features,
		PoolSize:     PoolSize,
		W:            m.w,
	}
	if err := gob.NewEncoder(&buf).Encode(lw); err != nil {
		return nil, fmt.Errorf("encoding weights: %w", err)
	}
	return buf.Bytes(), nil
}
