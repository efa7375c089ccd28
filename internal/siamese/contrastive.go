// Package siamese provides SimilarityModel implementations: a built-in
// linear Siamese network trained in-process and a client for an external
// model server.
package siamese

import (
	"errors"
	"fmt"
	"math"
)

// ErrShapeMismatch is returned when tensors or weights do not fit the model.
var ErrShapeMismatch = errors.New("shape mismatch")

// ContrastiveLoss returns mean(y*d^2 + (1-y)*max(margin-d, 0)^2) over a batch.
func ContrastiveLoss(labels, distances []float64, margin float64) (float64, error) {
	if len(labels) != len(distances) {
		return 0, fmt.Errorf("%d labels for %d distances: %w", len(labels), len(distances), ErrShapeMismatch)
	}
	if len(labels) == 0 {
		return 0, nil
	}
	var sum float64
	for i, y := range labels {
		d := distances[i]
		hinge := math.Max(margin-d, 0)
		sum += y*d*d + (1-y)*hinge*hinge
	}
	return sum / float64(len(labels)), nil
}
