package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/kozaktomas/signet/internal/database"
	"github.com/kozaktomas/signet/internal/signature"
)

// Identifier recognizes the signer of a query image within a room.
type Identifier interface {
	Identify(ctx context.Context, roomID int64, queryImage []byte) (*signature.Identification, error)
}

// RecognitionHandler handles one-vs-N signer identification
type RecognitionHandler struct {
	rooms      database.RoomStore
	accounts   database.AccountStore
	identifier Identifier
}

// NewRecognitionHandler creates a new recognition handler
func NewRecognitionHandler(rooms database.RoomStore, accounts database.AccountStore, identifier Identifier) *RecognitionHandler {
	return &RecognitionHandler{
		rooms:      rooms,
		accounts:   accounts,
		identifier: identifier,
	}
}

// CandidateResponse is one scored signer of a recognition
type CandidateResponse struct {
	AccountID   int64   `json:"account_id"`
	Score       float64 `json:"score"`
	Probability float64 `json:"probability"`
}

// RecognitionResponse represents the identified signer
type RecognitionResponse struct {
	RoomID     int64               `json:"room_id"`
	AccountID  int64               `json:"account_id"`
	StdID      string              `json:"std_id,omitempty"`
	FirstName  string              `json:"first_name,omitempty"`
	LastName   string              `json:"last_name,omitempty"`
	Confidence float64             `json:"confidence"`
	Candidates []CandidateResponse `json:"candidates"`
}

// Recognize identifies which room member signed the uploaded image
func (h *RecognitionHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	room, ok := loadRoom(w, r, h.rooms)
	if !ok {
		return
	}
	query, ok := parseSingleUpload(w, r)
	if !ok {
		return
	}

	result, err := h.identifier.Identify(r.Context(), room.ID, query)
	if err != nil {
		log.Printf("Recognition in room %d failed: %v", room.ID, err)
		respondErr(w, err)
		return
	}

	resp := RecognitionResponse{
		RoomID:     room.ID,
		AccountID:  result.SignerID,
		Confidence: result.Confidence,
		Candidates: make([]CandidateResponse, len(result.Candidates)),
	}
	for i, id := range result.Candidates {
		resp.Candidates[i] = CandidateResponse{
			AccountID:   id,
			Score:       result.Scores[i],
			Probability: result.Probabilities[i],
		}
	}

	account, err := h.accounts.GetAccount(r.Context(), result.SignerID)
	if err != nil {
		log.Printf("Failed to load account %d: %v", result.SignerID, err)
	} else if account != nil {
		resp.StdID = account.StdID
		resp.FirstName = account.FirstName
		resp.LastName = account.LastName
	}

	respondJSON(w, http.StatusOK, resp)
}
