package siamese

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kozaktomas/signet/internal/imaging"
	"github.com/kozaktomas/signet/internal/signature"
)

// fakeModelServer keeps one weight blob per session.
type fakeModelServer struct {
	mu       sync.Mutex
	weights  map[string][]byte
	sessions map[string]bool
}

func newFakeModelServer(t *testing.T) *httptest.Server {
	t.Helper()
	f := &fakeModelServer{weights: make(map[string][]byte), sessions: make(map[string]bool)}

	mux := http.NewServeMux()
	mux.HandleFunc("/train_on_batch", func(w http.ResponseWriter, r *http.Request) {
		f.track(r)
		var req trainRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(trainResponse{Loss: float64(len(req.Labels)) / 10})
	})
	mux.HandleFunc("/predict", func(w http.ResponseWriter, r *http.Request) {
		f.track(r)
		var req predictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out := make([]float64, len(req.Left))
		for i := range req.Left {
			out[i] = float64(req.Right[i].Data[0] - req.Left[i].Data[0])
		}
		json.NewEncoder(w).Encode(predictResponse{Distances: out})
	})
	mux.HandleFunc("/weights/load", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.weights[r.Header.Get(SessionHeader)] = body
		f.mu.Unlock()
	})
	mux.HandleFunc("/weights/save", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		w.Write(f.weights[r.Header.Get(SessionHeader)])
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model exploded", http.StatusInternalServerError)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeModelServer) track(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[r.Header.Get(SessionHeader)] = true
}

func tinyTensor(v float32) imaging.Tensor {
	return imaging.Tensor{Height: 1, Width: 1, Data: []float32{v}}
}

func TestRemote_TrainAndPredict(t *testing.T) {
	srv := newFakeModelServer(t)
	ctx := context.Background()
	r := NewRemote(srv.URL+"/", nil)

	loss, err := r.TrainOnBatch(ctx, signature.Batch{
		{Left: tinyTensor(0), Right: tinyTensor(1), Label: 0},
		{Left: tinyTensor(1), Right: tinyTensor(1), Label: 1},
	})
	if err != nil {
		t.Fatalf("TrainOnBatch failed: %v", err)
	}
	if loss != 0.2 {
		t.Errorf("expected loss 0.2, got %v", loss)
	}

	scores, err := r.Predict(ctx,
		[]imaging.Tensor{tinyTensor(0.25), tinyTensor(0.5)},
		[]imaging.Tensor{tinyTensor(0.75), tinyTensor(0.5)},
	)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if len(scores) != 2 || scores[0] != 0.5 || scores[1] != 0 {
		t.Errorf("unexpected scores %v", scores)
	}
}

func TestRemote_WeightsPerSession(t *testing.T) {
	srv := newFakeModelServer(t)
	ctx := context.Background()

	a := NewRemote(srv.URL, nil)
	b := NewRemote(srv.URL, nil)
	if a.Session() == b.Session() {
		t.Fatal("expected distinct sessions")
	}

	if err := a.LoadWeights(ctx, signature.ModelWeights("room-a")); err != nil {
		t.Fatalf("LoadWeights failed: %v", err)
	}
	got, err := a.SaveWeights(ctx)
	if err != nil {
		t.Fatalf("SaveWeights failed: %v", err)
	}
	if string(got) != "room-a" {
		t.Errorf("expected room-a weights, got %q", got)
	}

	if _, err := b.SaveWeights(ctx); err == nil {
		t.Error("expected error for a session without weights")
	}
}

func TestRemote_APIError(t *testing.T) {
	srv := newFakeModelServer(t)
	r := NewRemote(srv.URL, nil)

	_, err := r.do(context.Background(), http.MethodPost, "/broken", "", nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "status 500") || !strings.Contains(err.Error(), "model exploded") {
		t.Errorf("expected status and body in error, got %v", err)
	}
}
