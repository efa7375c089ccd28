package siamese

import (
	"context"
	"errors"
	"testing"

	"github.com/kozaktomas/signet/internal/imaging"
	"github.com/kozaktomas/signet/internal/signature"
)

func testOptions() LinearOptions {
	return LinearOptions{
		Height:       155,
		Width:        220,
		EmbeddingDim: 16,
		LearningRate: 0.5,
		Margin:       1,
		Seed:         1,
	}
}

func solidTensor(value float32) imaging.Tensor {
	t := imaging.Tensor{Height: 155, Width: 220, Data: make([]float32, 155*220)}
	for i := range t.Data {
		t.Data[i] = value
	}
	return t
}

func TestLinear_Predict(t *testing.T) {
	ctx := context.Background()
	m := NewLinear(testOptions())

	scores, err := m.Predict(ctx,
		[]imaging.Tensor{solidTensor(0.5), solidTensor(0.5), solidTensor(0.5)},
		[]imaging.Tensor{solidTensor(0.5), solidTensor(0.6), solidTensor(1)},
	)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if len(scores) != 3 {
		t.Fatalf("expected 3 scores, got %d", len(scores))
	}
	if scores[0] != 0 {
		t.Errorf("expected zero distance for identical inputs, got %v", scores[0])
	}
	if !(scores[1] > 0 && scores[1] < scores[2]) {
		t.Errorf("expected distance to grow with pixel difference, got %v", scores)
	}
}

func TestLinear_PredictShapeMismatch(t *testing.T) {
	m := NewLinear(testOptions())
	small := imaging.Tensor{Height: 10, Width: 10, Data: make([]float32, 100)}

	if _, err := m.Predict(context.Background(), []imaging.Tensor{small}, []imaging.Tensor{small}); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch for wrong tensor shape, got %v", err)
	}
	if _, err := m.Predict(context.Background(), []imaging.Tensor{solidTensor(0)}, nil); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch for uneven batches, got %v", err)
	}
}

func TestLinear_SameSeedSameWeights(t *testing.T) {
	ctx := context.Background()
	left := []imaging.Tensor{solidTensor(0.1)}
	right := []imaging.Tensor{solidTensor(0.7)}

	a, err := NewLinear(testOptions()).Predict(ctx, left, right)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	b, err := NewLinear(testOptions()).Predict(ctx, left, right)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if a[0] != b[0] {
		t.Errorf("expected identical distances for identical seeds, got %v and %v", a[0], b[0])
	}
}

func trainSteps(t *testing.T, m *Linear, batch signature.Batch, steps int) (first, last float64) {
	t.Helper()
	for i := range steps {
		loss, err := m.TrainOnBatch(context.Background(), batch)
		if err != nil {
			t.Fatalf("TrainOnBatch failed: %v", err)
		}
		if i == 0 {
			first = loss
		}
		last = loss
	}
	return first, last
}

func TestLinear_TrainingPullsGenuinePairsTogether(t *testing.T) {
	m := NewLinear(testOptions())
	batch := signature.Batch{{Left: solidTensor(0.4), Right: solidTensor(0.5), Label: 1}}

	first, last := trainSteps(t, m, batch, 20)
	if first <= 0 {
		t.Fatalf("expected positive initial loss, got %v", first)
	}
	if last >= first {
		t.Errorf("expected loss to decrease, got %v -> %v", first, last)
	}
}

func TestLinear_TrainingPushesImpostorsApart(t *testing.T) {
	m := NewLinear(testOptions())
	batch := signature.Batch{{Left: solidTensor(0.4), Right: solidTensor(0.7), Label: 0}}

	first, last := trainSteps(t, m, batch, 20)
	if first <= 0 {
		t.Fatalf("expected positive initial loss, got %v", first)
	}
	if last >= first {
		t.Errorf("expected loss to decrease, got %v -> %v", first, last)
	}
}

func TestLinear_WeightsRestorePredictions(t *testing.T) {
	ctx := context.Background()
	trained := NewLinear(testOptions())
	batch := signature.Batch{{Left: solidTensor(0.2), Right: solidTensor(0.3), Label: 1}}
	trainSteps(t, trained, batch, 5)

	weights, err := trained.SaveWeights(ctx)
	if err != nil {
		t.Fatalf("SaveWeights failed: %v", err)
	}

	opts := testOptions()
	opts.Seed = 99
	fresh := NewLinear(opts)
	if err := fresh.LoadWeights(ctx, weights); err != nil {
		t.Fatalf("LoadWeights failed: %v", err)
	}

	left := []imaging.Tensor{solidTensor(0.2)}
	right := []imaging.Tensor{solidTensor(0.9)}
	want, _ := trained.Predict(ctx, left, right)
	got, err := fresh.Predict(ctx, left, right)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if got[0] != want[0] {
		t.Errorf("expected restored model to predict %v, got %v", want[0], got[0])
	}
}

func TestLinear_LoadWeightsRejectsOtherShapes(t *testing.T) {
	ctx := context.Background()
	opts := testOptions()
	opts.EmbeddingDim = 8
	weights, err := NewLinear(opts).SaveWeights(ctx)
	if err != nil {
		t.Fatalf("SaveWeights failed: %v", err)
	}

	if err := NewLinear(testOptions()).LoadWeights(ctx, weights); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
	if err := NewLinear(testOptions()).LoadWeights(ctx, []byte("garbage")); err == nil {
		t.Error("expected error for corrupt weights")
	}
}
