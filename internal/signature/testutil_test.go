package signature

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/kozaktomas/signet/internal/imaging"
)

// grayPNG encodes a small solid gray image.
func grayPNG(t *testing.T, level uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 22, 15))
	for y := range 15 {
		for x := range 22 {
			img.SetGray(x, y, color.Gray{Y: level})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

// testRand returns a deterministic random source.
func testRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// meanDistanceModel scores a pair by the absolute difference of tensor means.
type meanDistanceModel struct {
	mu         sync.Mutex
	trainCalls int
	batches    []Batch
	loaded     ModelWeights
	trainErr   error
	predictErr error
}

func tensorMean(t imaging.Tensor) float64 {
	var sum float64
	for _, v := range t.Data {
		sum += float64(v)
	}
	return sum / float64(len(t.Data))
}

func (m *meanDistanceModel) TrainOnBatch(ctx context.Context, batch Batch) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.trainErr != nil {
		return 0, m.trainErr
	}
	m.trainCalls++
	m.batches = append(m.batches, batch)
	return 1 / float64(m.trainCalls), nil
}

func (m *meanDistanceModel) Predict(ctx context.Context, left, right []imaging.Tensor) ([]float64, error) {
	if m.predictErr != nil {
		return nil, m.predictErr
	}
	if len(left) != len(right) {
		return nil, errors.New("mismatched batch")
	}
	out := make([]float64, len(left))
	for i := range left {
		out[i] = math.Abs(tensorMean(left[i]) - tensorMean(right[i]))
	}
	return out, nil
}

func (m *meanDistanceModel) LoadWeights(ctx context.Context, weights ModelWeights) error {
	m.loaded = weights
	return nil
}

func (m *meanDistanceModel) SaveWeights(ctx context.Context) (ModelWeights, error) {
	return ModelWeights("trained-" + string(m.loaded)), nil
}

// scriptedModel returns a fixed score vector from Predict.
type scriptedModel struct {
	meanDistanceModel
	scores []float64
}

func (m *scriptedModel) Predict(ctx context.Context, left, right []imaging.Tensor) ([]float64, error) {
	return m.scores, nil
}

// memoryStores implements every external store in memory.
type memoryStores struct {
	mu           sync.Mutex
	refs         []Reference
	participants map[int64]int
	weights      map[int64]ModelWeights
	baseline     ModelWeights
	statuses     map[[2]int64]CheckStatus
	trained      map[int64]string
	saveErr      error
	trainedErr   error
	saves        int
}

func newMemoryStores() *memoryStores {
	return &memoryStores{
		participants: make(map[int64]int),
		weights:      make(map[int64]ModelWeights),
		statuses:     make(map[[2]int64]CheckStatus),
		trained:      make(map[int64]string),
	}
}

func (s *memoryStores) FetchByRoom(ctx context.Context, roomID int64) ([]Reference, error) {
	return s.refs, nil
}

func (s *memoryStores) FetchBySigner(ctx context.Context, signerID int64) ([][]byte, error) {
	out := [][]byte{}
	for _, r := range s.refs {
		if r.SignerID == signerID {
			out = append(out, r.Image)
		}
	}
	return out, nil
}

func (s *memoryStores) CountParticipants(ctx context.Context, roomID int64) (int, error) {
	return s.participants[roomID], nil
}

func (s *memoryStores) Load(ctx context.Context, roomID int64) (ModelWeights, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.weights[roomID]; ok {
		return w, nil
	}
	return s.baseline, nil
}

func (s *memoryStores) Save(ctx context.Context, roomID int64, weights ModelWeights) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return "", s.saveErr
	}
	s.saves++
	s.weights[roomID] = weights
	return "model_room_test", nil
}

func (s *memoryStores) Current(ctx context.Context, roomID int64) (ModelWeights, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.weights[roomID], nil
}

func (s *memoryStores) Restore(ctx context.Context, roomID int64, previous ModelWeights) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if previous == nil {
		delete(s.weights, roomID)
		return nil
	}
	s.weights[roomID] = previous
	return nil
}

func (s *memoryStores) SetCheckStatus(ctx context.Context, roomID, signerID int64, status CheckStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[[2]int64{roomID, signerID}] = status
	return nil
}

func (s *memoryStores) SetModelTrained(ctx context.Context, roomID int64, modelName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trainedErr != nil {
		return s.trainedErr
	}
	s.trained[roomID] = modelName
	return nil
}

// newTestService wires a service to in-memory stores and the given model.
func newTestService(stores *memoryStores, model SimilarityModel) *Service {
	seed := uint64(0)
	return NewService(Dependencies{
		References:   stores,
		Weights:      stores,
		Participants: stores,
		Status:       stores,
		NewModel:     func() (SimilarityModel, error) { return model, nil },
		NewRand: func() *rand.Rand {
			seed++
			return testRand(seed)
		},
	}, DefaultPolicy())
}
