package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/signet/internal/imaging"
	"github.com/kozaktomas/signet/internal/signature"
)

func TestRecognitionHandler_Recognize(t *testing.T) {
	store := newTestStore(t)
	_, ids := seedRoom(t, store, "6201", "6202")
	service := &fakeService{identification: &signature.Identification{
		SignerID:      ids[1],
		Confidence:    0.8,
		Candidates:    []int64{ids[0], ids[1]},
		Scores:        []float64{0.5, 0.1},
		Probabilities: []float64{0.2, 0.8},
	}}
	handler := NewRecognitionHandler(store, store, service)

	req := multipartRequest(t, "POST", "/api/v1/rooms/1/recognize", []testFile{{"q.png", grayPNG(t, 40)}}, nil)
	req = requestWithChiParams(req, map[string]string{"roomID": "1"})
	recorder := httptest.NewRecorder()

	handler.Recognize(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var result RecognitionResponse
	parseJSONResponse(t, recorder, &result)
	if result.AccountID != ids[1] || result.StdID != "6202" {
		t.Errorf("expected account %d with std_id 6202, got %d/%s", ids[1], result.AccountID, result.StdID)
	}
	if result.FirstName != "First6202" {
		t.Errorf("expected first name 'First6202', got '%s'", result.FirstName)
	}
	if len(result.Candidates) != 2 || result.Candidates[1].Probability != 0.8 {
		t.Errorf("unexpected candidates: %+v", result.Candidates)
	}
}

func TestRecognitionHandler_Errors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		files   []testFile
		want    int
		roomID  string
		message string
	}{
		{"empty pool", fmt.Errorf("room 1: %w", signature.ErrEmptyPool), nil, http.StatusNotFound, "1", ""},
		{"corrupt query", &imaging.DecodeError{Size: 3, Cause: fmt.Errorf("bad")}, nil, http.StatusBadRequest, "1", ""},
		{"unknown room", nil, nil, http.StatusNotFound, "5", "room not found"},
		{"two files", nil, []testFile{{"a.png", []byte("a")}, {"b.png", []byte("b")}}, http.StatusBadRequest, "1", "exactly one image is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			seedRoom(t, store, "6201")
			handler := NewRecognitionHandler(store, store, &fakeService{err: tt.err})

			files := tt.files
			if files == nil {
				files = []testFile{{"q.png", grayPNG(t, 40)}}
			}
			req := multipartRequest(t, "POST", "/", files, nil)
			req = requestWithChiParams(req, map[string]string{"roomID": tt.roomID})
			recorder := httptest.NewRecorder()

			handler.Recognize(recorder, req)

			assertStatusCode(t, recorder, tt.want)
			if tt.message != "" {
				assertJSONError(t, recorder, tt.message)
			}
		})
	}
}
