package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/signet/internal/constants"
	"github.com/kozaktomas/signet/internal/database"
	"github.com/kozaktomas/signet/internal/database/mock"
	"github.com/kozaktomas/signet/internal/signature"
)

// newTestStore creates an in-memory store and registers it as the backend
func newTestStore(t *testing.T) *mock.MockStore {
	t.Helper()
	store := mock.NewMockStore()
	store.Register()
	return store
}

// seedRoom creates a room with one member per student id and returns the
// room id and the member account ids in join order
func seedRoom(t *testing.T, store *mock.MockStore, stdIDs ...string) (int64, []int64) {
	t.Helper()
	ctx := context.Background()
	roomID, err := store.CreateRoom(ctx, &database.Room{Name: "Exam A"})
	if err != nil {
		t.Fatalf("failed to create room: %v", err)
	}
	ids := make([]int64, 0, len(stdIDs))
	for _, stdID := range stdIDs {
		id, err := store.CreateAccount(ctx, &database.Account{
			Username:  "user" + stdID,
			StdID:     stdID,
			FirstName: "First" + stdID,
			LastName:  "Last" + stdID,
		})
		if err != nil {
			t.Fatalf("failed to create account: %v", err)
		}
		if err := store.JoinRoom(ctx, roomID, id); err != nil {
			t.Fatalf("failed to join room: %v", err)
		}
		ids = append(ids, id)
	}
	return roomID, ids
}

// grayPNG encodes a small solid gray PNG
func grayPNG(t *testing.T, level uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 22, 15))
	for i := range img.Pix {
		img.Pix[i] = level
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

// testFile is one part of a multipart upload
type testFile struct {
	name string
	data []byte
}

// multipartRequest builds a multipart request carrying files in the file[]
// field plus plain form fields
func multipartRequest(t *testing.T, method, path string, files []testFile, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(constants.UploadFormField, f.name)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write(f.data); err != nil {
			t.Fatalf("failed to write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// fakeService scripts the matching pipeline for handler tests
type fakeService struct {
	identification *signature.Identification
	verification   *signature.Verification
	trainResult    *signature.TrainResult
	err            error
	busy           bool
	block          chan struct{} // when set, training waits until closed or cancelled
	step           chan struct{} // when set, training finishes a step before seeing cancellation

	verifiedSigner int64
}

func (f *fakeService) Identify(ctx context.Context, roomID int64, queryImage []byte) (*signature.Identification, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.identification, nil
}

func (f *fakeService) Verify(ctx context.Context, roomID, signerID int64, queryImage []byte) (*signature.Verification, error) {
	f.verifiedSigner = signerID
	return f.verification, f.err
}

func (f *fakeService) TryTrainRoom(ctx context.Context, roomID int64, progress func(signature.TrainProgress)) (*signature.TrainResult, bool, error) {
	if f.busy {
		return nil, false, nil
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, true, ctx.Err()
		}
	}
	if f.step != nil {
		<-f.step
		if err := ctx.Err(); err != nil {
			return nil, true, err
		}
	}
	if f.err != nil {
		return nil, true, f.err
	}
	if progress != nil {
		for step := 1; step <= f.trainResult.Iterations; step++ {
			progress(signature.TrainProgress{Step: step, Total: f.trainResult.Iterations, Loss: f.trainResult.FinalLoss})
		}
	}
	return f.trainResult, true, nil
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
