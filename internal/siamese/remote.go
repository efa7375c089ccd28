package siamese

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/kozaktomas/signet/internal/imaging"
	"github.com/kozaktomas/signet/internal/signature"
)

const defaultModelURL = "http://localhost:8500"

// SessionHeader carries the id of the server-side model instance a
// Remote talks to.
const SessionHeader = "X-Signet-Session"

// Remote is a SimilarityModel backed by an external model server. Every
// Remote gets its own session so concurrent calls never share weights.
type Remote struct {
	baseURL string
	session string
	client  *http.Client
}

// NewRemote creates a client with a fresh session id.
func NewRemote(baseURL string, client *http.Client) *Remote {
	if baseURL == "" {
		baseURL = defaultModelURL
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Remote{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		session: uuid.New().String(),
		client:  client,
	}
}

// Session returns the server-side session id.
func (r *Remote) Session() string {
	return r.session
}

type wireTensor struct {
	Height int       `json:"height"`
	Width  int       `json:"width"`
	Data   []float32 `json:"data"`
}

func toWire(ts []imaging.Tensor) []wireTensor {
	out := make([]wireTensor, len(ts))
	for i, t := range ts {
		out[i] = wireTensor{Height: t.Height, Width: t.Width, Data: t.Data}
	}
	return out
}

type trainRequest struct {
	Left   []wireTensor `json:"left"`
	Right  []wireTensor `json:"right"`
	Labels []float64    `json:"labels"`
}

type trainResponse struct {
	Loss float64 `json:"loss"`
}

type predictRequest struct {
	Left  []wireTensor `json:"left"`
	Right []wireTensor `json:"right"`
}

type predictResponse struct {
	Distances []float64 `json:"distances"`
}

// do sends one request and returns the response body of a 200 reply.
func (r *Remote) do(ctx context.Context, method, endpoint, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set(SessionHeader, r.session)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(data))
	}
	return data, nil
}

func (r *Remote) postJSON(ctx context.Context, endpoint string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	data, err := r.do(ctx, http.MethodPost, endpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// TrainOnBatch runs one optimization step on the server.
func (r *Remote) TrainOnBatch(ctx context.Context, batch signature.Batch) (float64, error) {
	var resp trainResponse
	err := r.postJSON(ctx, "/train_on_batch", trainRequest{
		Left:   toWire(batch.Lefts()),
		Right:  toWire(batch.Rights()),
		Labels: batch.Labels(),
	}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Loss, nil
}

// Predict scores pairs on the server.
func (r *Remote) Predict(ctx context.Context, left, right []imaging.Tensor) ([]float64, error) {
	var resp predictResponse
	err := r.postJSON(ctx, "/predict", predictRequest{Left: toWire(left), Right: toWire(right)}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Distances, nil
}

// LoadWeights uploads a weight artifact into the session.
func (r *Remote) LoadWeights(ctx context.Context, weights signature.ModelWeights) error {
	_, err := r.do(ctx, http.MethodPost, "/weights/load", "application/octet-stream", bytes.NewReader(weights))
	return err
}

// SaveWeights downloads the session's current weights.
func (r *Remote) SaveWeights(ctx context.Context) (signature.ModelWeights, error) {
	data, err := r.do(ctx, http.MethodPost, "/weights/save", "", nil)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty weights returned: %w", signature.ErrModelOutput)
	}
	return data, nil
}
