package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseUploads(t *testing.T) {
	tests := []struct {
		name    string
		files   []testFile
		want    int
		wantErr string
	}{
		{"single png", []testFile{{"a.png", []byte("x")}}, 1, ""},
		{"mixed case extensions", []testFile{{"a.JPG", []byte("x")}, {"b.Gif", []byte("y")}}, 2, ""},
		{"path is stripped", []testFile{{"../../etc/sig.jpeg", []byte("x")}}, 1, ""},
		{"no files", nil, 0, "no files provided"},
		{"pdf rejected", []testFile{{"scan.pdf", []byte("%PDF")}}, 0, "unsupported file type: scan.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := multipartRequest(t, "POST", "/", tt.files, nil)
			recorder := httptest.NewRecorder()

			uploads, ok := parseUploads(recorder, req)

			if tt.wantErr != "" {
				if ok {
					t.Fatal("expected failure")
				}
				assertStatusCode(t, recorder, http.StatusBadRequest)
				assertJSONError(t, recorder, tt.wantErr)
				return
			}
			if !ok {
				t.Fatalf("unexpected failure: %s", recorder.Body.String())
			}
			if len(uploads) != tt.want {
				t.Errorf("expected %d uploads, got %d", tt.want, len(uploads))
			}
			for _, u := range uploads {
				if u.Filename == "" || len(u.Data) == 0 {
					t.Errorf("unexpected upload %+v", u)
				}
			}
		})
	}
}

func TestParseUploads_NotMultipart(t *testing.T) {
	req := httptest.NewRequest("POST", "/", nil)
	recorder := httptest.NewRecorder()

	if _, ok := parseUploads(recorder, req); ok {
		t.Fatal("expected failure")
	}
	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "failed to parse multipart form")
}
