package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/kozaktomas/signet/internal/database"
	"github.com/kozaktomas/signet/internal/signature"
)

// Verifier checks a query image against a claimed signer and records the outcome.
type Verifier interface {
	Verify(ctx context.Context, roomID, signerID int64, queryImage []byte) (*signature.Verification, error)
}

// VerificationHandler handles claimed-signer verification
type VerificationHandler struct {
	rooms    database.RoomStore
	accounts database.AccountStore
	verifier Verifier
}

// NewVerificationHandler creates a new verification handler
func NewVerificationHandler(rooms database.RoomStore, accounts database.AccountStore, verifier Verifier) *VerificationHandler {
	return &VerificationHandler{
		rooms:    rooms,
		accounts: accounts,
		verifier: verifier,
	}
}

// VerificationResponse represents a verification decision
type VerificationResponse struct {
	RoomID       int64     `json:"room_id"`
	AccountID    int64     `json:"account_id"`
	StdID        string    `json:"std_id"`
	Genuine      bool      `json:"genuine"`
	CheckStatus  string    `json:"check_status"`
	Threshold    float64   `json:"threshold"`
	Scores       []float64 `json:"scores"`
	GenuineVotes int       `json:"genuine_votes"`
	ForgedVotes  int       `json:"forged_votes"`
	Warning      string    `json:"warning,omitempty"`
}

// Verify checks whether the uploaded image was signed by the claimed member.
// The member is named by the std_id or account_id form field.
func (h *VerificationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	room, ok := loadRoom(w, r, h.rooms)
	if !ok {
		return
	}
	query, ok := parseSingleUpload(w, r)
	if !ok {
		return
	}

	account, ok := h.claimedAccount(w, r)
	if !ok {
		return
	}

	member, err := h.rooms.IsMember(r.Context(), room.ID, account.ID)
	if err != nil {
		respondErr(w, err)
		return
	}
	if !member {
		respondError(w, http.StatusNotFound, "account is not a member of the room")
		return
	}

	result, err := h.verifier.Verify(r.Context(), room.ID, account.ID, query)
	if result == nil {
		log.Printf("Verification of account %d in room %d failed: %v", account.ID, room.ID, err)
		respondErr(w, err)
		return
	}

	resp := VerificationResponse{
		RoomID:       room.ID,
		AccountID:    account.ID,
		StdID:        account.StdID,
		Genuine:      result.Genuine,
		CheckStatus:  string(result.Status()),
		Threshold:    result.Threshold,
		Scores:       result.Scores,
		GenuineVotes: result.GenuineVotes,
		ForgedVotes:  result.ForgedVotes,
	}
	if err != nil {
		// The decision stands even when recording it failed.
		log.Printf("Verification of account %d in room %d: %v", account.ID, room.ID, err)
		resp.Warning = "check status was not recorded"
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *VerificationHandler) claimedAccount(w http.ResponseWriter, r *http.Request) (*database.Account, bool) {
	var (
		account *database.Account
		err     error
	)
	if stdID := r.FormValue("std_id"); stdID != "" {
		account, err = h.accounts.GetAccountByStdID(r.Context(), stdID)
	} else if raw := r.FormValue("account_id"); raw != "" {
		id, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil || id <= 0 {
			respondError(w, http.StatusBadRequest, "invalid account_id")
			return nil, false
		}
		account, err = h.accounts.GetAccount(r.Context(), id)
	} else {
		respondError(w, http.StatusBadRequest, "std_id or account_id is required")
		return nil, false
	}

	if err != nil {
		respondErr(w, err)
		return nil, false
	}
	if account == nil {
		respondError(w, http.StatusNotFound, "account not found")
		return nil, false
	}
	return account, true
}
