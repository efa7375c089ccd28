package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/kozaktomas/signet/internal/database"
	"github.com/kozaktomas/signet/internal/imaging"
)

// AccountsHandler handles account registration and signature enrollment
type AccountsHandler struct {
	accounts   database.AccountStore
	signatures database.SignatureStore
	normalizer *imaging.Normalizer
}

// NewAccountsHandler creates a new accounts handler. Uploaded signatures
// are test-decoded with normalizer before they are stored.
func NewAccountsHandler(accounts database.AccountStore, signatures database.SignatureStore, normalizer *imaging.Normalizer) *AccountsHandler {
	return &AccountsHandler{
		accounts:   accounts,
		signatures: signatures,
		normalizer: normalizer,
	}
}

// AccountRequest represents an account creation request
type AccountRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	StdID     string `json:"std_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	StdID     string `json:"std_id,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// SignatureResponse describes a stored signature without its bytes
type SignatureResponse struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"account_id"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

func accountResponse(a *database.Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		StdID:     a.StdID,
		FirstName: a.FirstName,
		LastName:  a.LastName,
	}
}

// List returns all accounts
func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.ListAccounts(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	result := make([]AccountResponse, len(accounts))
	for i := range accounts {
		result[i] = accountResponse(&accounts[i])
	}
	respondJSON(w, http.StatusOK, result)
}

// Create registers an account
func (h *AccountsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Username == "" {
		respondError(w, http.StatusBadRequest, "username is required")
		return
	}

	account := &database.Account{
		Username:  req.Username,
		Email:     req.Email,
		StdID:     req.StdID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	id, err := h.accounts.CreateAccount(r.Context(), account)
	if err != nil {
		respondErr(w, err)
		return
	}
	account.ID = id
	account.StdID = database.NormalizeStdID(account.StdID)
	respondJSON(w, http.StatusCreated, accountResponse(account))
}

// Get returns a single account
func (h *AccountsHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, ok := h.loadAccount(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, accountResponse(account))
}

// ListSignatures returns the account's enrolled signatures
func (h *AccountsHandler) ListSignatures(w http.ResponseWriter, r *http.Request) {
	account, ok := h.loadAccount(w, r)
	if !ok {
		return
	}
	stored, err := h.signatures.ListSignatures(r.Context(), account.ID)
	if err != nil {
		respondErr(w, err)
		return
	}
	result := make([]SignatureResponse, len(stored))
	for i, s := range stored {
		result[i] = SignatureResponse{ID: s.ID, AccountID: s.AccountID, Size: len(s.Image), CreatedAt: s.CreatedAt}
	}
	respondJSON(w, http.StatusOK, result)
}

// UploadSignatures enrolls one or more reference images for the account.
// Every file is decoded first so nothing is stored when one is corrupt.
// Images identical to an already enrolled one, or to an earlier file of
// the same upload, are skipped.
func (h *AccountsHandler) UploadSignatures(w http.ResponseWriter, r *http.Request) {
	account, ok := h.loadAccount(w, r)
	if !ok {
		return
	}
	uploads, ok := parseUploads(w, r)
	if !ok {
		return
	}

	tensors := make([]imaging.Tensor, len(uploads))
	for i, u := range uploads {
		t, err := h.normalizer.Normalize(u.Data)
		if err != nil {
			respondError(w, http.StatusBadRequest, u.Filename+": "+err.Error())
			return
		}
		tensors[i] = t
	}

	enrolled, err := h.signatures.ListSignatures(r.Context(), account.ID)
	if err != nil {
		respondErr(w, err)
		return
	}
	seen := imaging.NewDuplicateSet()
	for _, s := range enrolled {
		if t, err := h.normalizer.Normalize(s.Image); err == nil {
			seen.Add(t)
		}
	}

	ids := make([]int64, 0, len(uploads))
	skipped := []string{}
	for i, u := range uploads {
		if !seen.Add(tensors[i]) {
			skipped = append(skipped, u.Filename)
			continue
		}
		id, err := h.signatures.AddSignature(r.Context(), account.ID, u.Data)
		if err != nil {
			respondErr(w, err)
			return
		}
		ids = append(ids, id)
	}
	if len(skipped) > 0 {
		log.Printf("Skipped %d duplicate signatures for account %d", len(skipped), account.ID)
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"account_id": account.ID,
		"uploaded":   len(ids),
		"ids":        ids,
		"skipped":    skipped,
	})
}

// DeleteSignature removes one enrolled signature
func (h *AccountsHandler) DeleteSignature(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "signatureID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid signature ID")
		return
	}
	if err := h.signatures.DeleteSignature(r.Context(), id); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *AccountsHandler) loadAccount(w http.ResponseWriter, r *http.Request) (*database.Account, bool) {
	id, ok := idParam(r, "accountID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid account ID")
		return nil, false
	}
	account, err := h.accounts.GetAccount(r.Context(), id)
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
