package signature

import (
	"context"
	"fmt"

	"github.com/kozaktomas/signet/internal/imaging"
)

// Verification is the outcome of checking a query against every reference
// of a claimed signer.
type Verification struct {
	SignerID     int64     `json:"signer_id"`
	Genuine      bool      `json:"genuine"`
	Threshold    float64   `json:"threshold"`
	Scores       []float64 `json:"scores"`
	Votes        []int     `json:"votes"`
	GenuineVotes int       `json:"genuine_votes"`
	ForgedVotes  int       `json:"forged_votes"`
}

// Status returns the check status a verification result records.
func (v *Verification) Status() CheckStatus {
	if v.Genuine {
		return CheckStatusPassed
	}
	return CheckStatusFailed
}

// VerificationEngine decides genuine vs. forged by majority vote.
type VerificationEngine struct {
	normalizer *imaging.Normalizer
	threshold  float64
}

// NewVerificationEngine creates an engine with the given per-reference threshold.
func NewVerificationEngine(normalizer *imaging.Normalizer, threshold float64) *VerificationEngine {
	return &VerificationEngine{normalizer: normalizer, threshold: threshold}
}

// Threshold returns the per-reference decision threshold.
func (e *VerificationEngine) Threshold() float64 {
	return e.threshold
}

// Verify scores the query against all references of claimedSigner in pool.
func (e *VerificationEngine) Verify(ctx context.Context, model SimilarityModel, query imaging.Tensor, claimedSigner int64, pool *Pool) (*Verification, error) {
	images := pool.Images(claimedSigner)
	if len(images) == 0 {
		return nil, fmt.Errorf("signer %d: %w", claimedSigner, ErrNoReferenceImages)
	}

	refs := make([]imaging.Tensor, len(images))
	for i, img := range images {
		t, err := e.normalizer.Normalize(img)
		if err != nil {
			return nil, fmt.Errorf("signer %d image %d: %w", claimedSigner, i, err)
		}
		refs[i] = t
	}

	scores, err := model.Predict(ctx, replicate(query, len(refs)), refs)
	if err != nil {
		return nil, fmt.Errorf("scoring references: %w", err)
	}
	if len(scores) != len(refs) {
		return nil, fmt.Errorf("expected %d scores, got %d: %w", len(refs), len(scores), ErrModelOutput)
	}

	v := MajorityVote(scores, e.threshold)
	v.SignerID = claimedSigner
	return v, nil
}

// MajorityVote classifies each score (1 when score < threshold, else 0) and
// returns the majority class. A tied vote is forged.
func MajorityVote(scores []float64, threshold float64) *Verification {
	v := &Verification{
		Threshold: threshold,
		Scores:    scores,
		Votes:     make([]int, len(scores)),
	}
	for i, s := range scores {
		if s < threshold {
			v.Votes[i] = 1
			v.GenuineVotes++
		} else {
			v.ForgedVotes++
		}
	}
	v.Genuine = v.GenuineVotes > v.ForgedVotes
	return v
}
