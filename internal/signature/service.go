package signature

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/kozaktomas/signet/internal/constants"
	"github.com/kozaktomas/signet/internal/imaging"
)

// ReferenceSource fetches enrolled signatures. Both methods return an empty
// slice when nothing is enrolled.
type ReferenceSource interface {
	FetchByRoom(ctx context.Context, roomID int64) ([]Reference, error)
	FetchBySigner(ctx context.Context, signerID int64) ([][]byte, error)
}

// WeightStore persists model weights per room. Load returns the baseline
// weights, or nil for a freshly initialized model, when the room has never
// been trained. Current returns only the room's own artifact, nil if it has
// none; Restore puts such a snapshot back, removing the artifact for nil.
type WeightStore interface {
	Load(ctx context.Context, roomID int64) (ModelWeights, error)
	Save(ctx context.Context, roomID int64, weights ModelWeights) (string, error)
	Current(ctx context.Context, roomID int64) (ModelWeights, error)
	Restore(ctx context.Context, roomID int64, previous ModelWeights) error
}

// ParticipantCounter counts the accounts that joined a room.
type ParticipantCounter interface {
	CountParticipants(ctx context.Context, roomID int64) (int, error)
}

// StatusSink records verification outcomes and model training state.
type StatusSink interface {
	SetCheckStatus(ctx context.Context, roomID, signerID int64, status CheckStatus) error
	SetModelTrained(ctx context.Context, roomID int64, modelName string) error
}

// Policy holds the numeric decision and training parameters.
type Policy struct {
	Threshold          float64
	RecognitionScale   float64
	BatchFraction      float64
	IterationsPerBatch int
}

// DefaultPolicy returns the stock decision and training parameters.
func DefaultPolicy() Policy {
	return Policy{
		Threshold:          constants.DefaultThreshold,
		RecognitionScale:   constants.RecognitionScale,
		BatchFraction:      constants.BatchFraction,
		IterationsPerBatch: constants.IterationsPerBatch,
	}
}

// Dependencies are the external collaborators of a Service.
type Dependencies struct {
	References   ReferenceSource
	Weights      WeightStore
	Participants ParticipantCounter
	Status       StatusSink
	NewModel     ModelFactory
	// NewRand returns a random source for one call. Defaults to a PCG
	// generator seeded from the runtime's global source.
	NewRand func() *rand.Rand
}

// Service wires the matching pipeline to its stores. Every call builds a
// fresh model for exactly one room and discards it afterwards.
type Service struct {
	deps       Dependencies
	policy     Policy
	normalizer *imaging.Normalizer
	locks      *RoomLocks
}

// NewService creates a service.
func NewService(deps Dependencies, policy Policy) *Service {
	if deps.NewRand == nil {
		deps.NewRand = func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		}
	}
	return &Service{
		deps:       deps,
		policy:     policy,
		normalizer: imaging.Default(),
		locks:      NewRoomLocks(),
	}
}

// Policy returns the service's decision policy.
func (s *Service) Policy() Policy {
	return s.policy
}

// Normalizer returns the image normalizer shared by all calls.
func (s *Service) Normalizer() *imaging.Normalizer {
	return s.normalizer
}

// Locks exposes the per-room lock table so callers can reject a second
// training run instead of queueing it.
func (s *Service) Locks() *RoomLocks {
	return s.locks
}

// loadModel builds a fresh model and loads the room's current weights into it.
func (s *Service) loadModel(ctx context.Context, roomID int64) (SimilarityModel, error) {
	model, err := s.deps.NewModel()
	if err != nil {
		return nil, fmt.Errorf("creating model: %w", err)
	}
	weights, err := s.deps.Weights.Load(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("loading weights for room %d: %w", roomID, err)
	}
	if weights != nil {
		if err := model.LoadWeights(ctx, weights); err != nil {
			return nil, fmt.Errorf("applying weights for room %d: %w", roomID, err)
		}
	}
	return model, nil
}

// TrainRoom fine-tunes the room's model and persists the new weights. On
// any failure the previous weights and the room's train status are left
// untouched.
func (s *Service) TrainRoom(ctx context.Context, roomID int64, progress func(TrainProgress)) (*TrainResult, error) {
	unlock := s.locks.Lock(roomID)
	defer unlock()
	return s.trainLocked(ctx, roomID, progress)
}

// TryTrainRoom is TrainRoom, except it returns false immediately if the
// room is already being trained or queried.
func (s *Service) TryTrainRoom(ctx context.Context, roomID int64, progress func(TrainProgress)) (*TrainResult, bool, error) {
	unlock, ok := s.locks.TryLock(roomID)
	if !ok {
		return nil, false, nil
	}
	defer unlock()
	result, err := s.trainLocked(ctx, roomID, progress)
	return result, true, err
}

func (s *Service) trainLocked(ctx context.Context, roomID int64, progress func(TrainProgress)) (*TrainResult, error) {
	participants, err := s.deps.Participants.CountParticipants(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("counting participants of room %d: %w", roomID, err)
	}
	if participants < constants.MinParticipants {
		return nil, fmt.Errorf("room %d has %d participants: %w", roomID, participants, ErrInsufficientEnrollment)
	}

	refs, err := s.deps.References.FetchByRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("fetching signatures of room %d: %w", roomID, err)
	}
	pool := NewPool(refs)

	model, err := s.loadModel(ctx, roomID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	sampler := NewPairSampler(s.normalizer, s.deps.NewRand())
	trainer := NewTrainer(sampler, s.policy.BatchFraction, s.policy.IterationsPerBatch)
	result, err := trainer.Train(ctx, model, pool, participants, progress)
	if err != nil {
		return nil, fmt.Errorf("training room %d: %w", roomID, err)
	}

	if err := s.persist(context.WithoutCancel(ctx), roomID, result.Weights); err != nil {
		return nil, err
	}

	log.Printf("Trained room %d: %d steps of %d pairs, final loss %.4f in %s",
		roomID, result.Iterations, result.BatchSize, result.FinalLoss, time.Since(start).Round(time.Millisecond))
	return result, nil
}

// persist saves the weights and marks the room trained. If marking fails
// the room's previous artifact is put back, so either both writes land or
// neither does.
func (s *Service) persist(ctx context.Context, roomID int64, weights ModelWeights) error {
	previous, err := s.deps.Weights.Current(ctx, roomID)
	if err != nil {
		return fmt.Errorf("reading current weights for room %d: %w", roomID, err)
	}
	modelName, err := s.deps.Weights.Save(ctx, roomID, weights)
	if err != nil {
		return fmt.Errorf("saving weights for room %d: %w", roomID, err)
	}
	if err := s.deps.Status.SetModelTrained(ctx, roomID, modelName); err != nil {
		err = fmt.Errorf("marking room %d trained: %w", roomID, err)
		if rerr := s.deps.Weights.Restore(ctx, roomID, previous); rerr != nil {
			return errors.Join(err, fmt.Errorf("restoring previous weights for room %d: %w", roomID, rerr))
		}
		return err
	}
	return nil
}

// Identify recognizes which enrolled room member produced the query image.
func (s *Service) Identify(ctx context.Context, roomID int64, queryImage []byte) (*Identification, error) {
	query, err := s.normalizer.Normalize(queryImage)
	if err != nil {
		return nil, fmt.Errorf("query image: %w", err)
	}

	unlock := s.locks.RLock(roomID)
	defer unlock()

	refs, err := s.deps.References.FetchByRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("fetching signatures of room %d: %w", roomID, err)
	}
	pool := NewPool(refs)
	if pool.Len() == 0 {
		return nil, fmt.Errorf("room %d: %w", roomID, ErrEmptyPool)
	}

	model, err := s.loadModel(ctx, roomID)
	if err != nil {
		return nil, err
	}

	engine := NewRecognitionEngine(s.normalizer, s.deps.NewRand(), s.policy.RecognitionScale)
	return engine.Identify(ctx, model, query, pool)
}

// Verify decides whether the query image was signed by signerID and records
// the outcome as the signer's check status in the room. Failures before a
// decision is reached never touch the status.
func (s *Service) Verify(ctx context.Context, roomID, signerID int64, queryImage []byte) (*Verification, error) {
	query, err := s.normalizer.Normalize(queryImage)
	if err != nil {
		return nil, fmt.Errorf("query image: %w", err)
	}

	unlock := s.locks.RLock(roomID)
	defer unlock()

	images, err := s.deps.References.FetchBySigner(ctx, signerID)
	if err != nil {
		return nil, fmt.Errorf("fetching signatures of signer %d: %w", signerID, err)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("signer %d: %w", signerID, ErrNoReferenceImages)
	}

	model, err := s.loadModel(ctx, roomID)
	if err != nil {
		return nil, err
	}

	engine := NewVerificationEngine(s.normalizer, s.policy.Threshold)
	result, err := engine.Verify(ctx, model, query, signerID, NewSignerPool(signerID, images))
	if err != nil {
		return nil, err
	}

	if err := s.deps.Status.SetCheckStatus(ctx, roomID, signerID, result.Status()); err != nil {
		return result, fmt.Errorf("recording check status for signer %d: %w", signerID, err)
	}
	return result, nil
}
