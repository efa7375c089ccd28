// Package handlers provides HTTP handlers for the web API.
// Handler methods are organized by resource:
//   - rooms.go: Room CRUD and membership (List, Create, Get, Delete, Members, Join, Leave)
//   - accounts.go: Account registration and signature enrollment
//   - train.go: Asynchronous room training jobs with SSE progress
//   - recognition.go: One-vs-N signer identification
//   - verification.go: Claimed-signer verification
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/signet/internal/database"
	"github.com/kozaktomas/signet/internal/signature"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusForError maps storage and pipeline errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, signature.ErrDecode):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrNotFound),
		errors.Is(err, signature.ErrEmptyPool):
		return http.StatusNotFound
	case errors.Is(err, database.ErrConflict),
		errors.Is(err, database.ErrAlreadyMember):
		return http.StatusConflict
	case errors.Is(err, signature.ErrInsufficientEnrollment),
		errors.Is(err, signature.ErrInsufficientSigners),
		errors.Is(err, signature.ErrNoReferenceImages):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondErr sends err with the status statusForError picks for it.
func respondErr(w http.ResponseWriter, err error) {
	respondError(w, statusForError(err), err.Error())
}

// idParam parses a positive integer chi URL parameter.
func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"backend": database.BackendName(),
	})
}
