package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/kozaktomas/signet/internal/constants"
	"github.com/kozaktomas/signet/internal/database"
)

// ArtifactRemover deletes persisted model weights by model name.
type ArtifactRemover interface {
	Delete(modelName string) error
}

// RoomsHandler handles room and membership endpoints
type RoomsHandler struct {
	rooms     database.RoomStore
	accounts  database.AccountStore
	artifacts ArtifactRemover
}

// NewRoomsHandler creates a new rooms handler
func NewRoomsHandler(rooms database.RoomStore, accounts database.AccountStore, artifacts ArtifactRemover) *RoomsHandler {
	return &RoomsHandler{
		rooms:     rooms,
		accounts:  accounts,
		artifacts: artifacts,
	}
}

// RoomResponse represents a room in API responses
type RoomResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	OwnerID     int64  `json:"owner_id,omitempty"`
	ModelName   string `json:"model_name"`
	TrainStatus string `json:"train_status"`
}

// MemberResponse represents a room member in API responses
type MemberResponse struct {
	AccountID   int64  `json:"account_id"`
	StdID       string `json:"std_id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	CheckStatus string `json:"check_status"`
}

func roomResponse(room *database.Room) RoomResponse {
	return RoomResponse{
		ID:          room.ID,
		Name:        room.Name,
		Description: room.Description,
		OwnerID:     room.OwnerID,
		ModelName:   room.ModelName,
		TrainStatus: string(room.TrainStatus),
	}
}

// CreateRoomRequest represents a room creation request
type CreateRoomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	OwnerID     int64  `json:"owner_id"`
}

// JoinRoomRequest identifies the joining account by id or student id
type JoinRoomRequest struct {
	AccountID int64  `json:"account_id"`
	StdID     string `json:"std_id"`
}

// List returns all rooms
func (h *RoomsHandler) List(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.rooms.ListRooms(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	result := make([]RoomResponse, len(rooms))
	for i := range rooms {
		result[i] = roomResponse(&rooms[i])
	}
	respondJSON(w, http.StatusOK, result)
}

// Create creates a room with an untrained baseline model
func (h *RoomsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	room := &database.Room{Name: req.Name, Description: req.Description, OwnerID: req.OwnerID}
	id, err := h.rooms.CreateRoom(r.Context(), room)
	if err != nil {
		respondErr(w, err)
		return
	}
	created, err := h.rooms.GetRoom(r.Context(), id)
	if err != nil || created == nil {
		respondError(w, http.StatusInternalServerError, "failed to load created room")
		return
	}
	respondJSON(w, http.StatusCreated, roomResponse(created))
}

// Get returns a single room
func (h *RoomsHandler) Get(w http.ResponseWriter, r *http.Request) {
	room, ok := h.loadRoom(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, roomResponse(room))
}

// Delete removes a room and its trained weights. The shared baseline is kept.
func (h *RoomsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	roomID, ok := idParam(r, "roomID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid room ID")
		return
	}

	modelName, err := h.rooms.DeleteRoom(r.Context(), roomID)
	if err != nil {
		respondErr(w, err)
		return
	}
	if modelName != "" && modelName != constants.BaselineModelName {
		if err := h.artifacts.Delete(modelName); err != nil {
			log.Printf("Failed to delete weights %s of room %d: %v", sanitizeForLog(modelName), roomID, err)
		}
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// Members returns the room's members with their check status
func (h *RoomsHandler) Members(w http.ResponseWriter, r *http.Request) {
	room, ok := h.loadRoom(w, r)
	if !ok {
		return
	}
	members, err := h.rooms.ListMembers(r.Context(), room.ID)
	if err != nil {
		respondErr(w, err)
		return
	}
	result := make([]MemberResponse, len(members))
	for i, m := range members {
		result[i] = MemberResponse{
			AccountID:   m.AccountID,
			StdID:       m.StdID,
			FirstName:   m.FirstName,
			LastName:    m.LastName,
			CheckStatus: string(m.CheckStatus),
		}
	}
	respondJSON(w, http.StatusOK, result)
}

// ExportMembers writes the room's members report as CSV
func (h *RoomsHandler) ExportMembers(w http.ResponseWriter, r *http.Request) {
	room, ok := h.loadRoom(w, r)
	if !ok {
		return
	}
	members, err := h.rooms.ListMembers(r.Context(), room.ID)
	if err != nil {
		respondErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "room_"+strconv.FormatInt(room.ID, 10)+"_members.csv"))
	w.WriteHeader(http.StatusOK)
	if err := database.WriteMembersReport(w, members); err != nil {
		log.Printf("Failed to write members report of room %d: %v", room.ID, err)
	}
}

// Join adds an account to the room
func (h *RoomsHandler) Join(w http.ResponseWriter, r *http.Request) {
	room, ok := h.loadRoom(w, r)
	if !ok {
		return
	}

	var req JoinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.AccountID <= 0 && req.StdID == "" {
		respondError(w, http.StatusBadRequest, "account_id or std_id is required")
		return
	}

	account, err := h.resolveAccount(r, req)
	if err != nil {
		respondErr(w, err)
		return
	}
	if account == nil {
		respondError(w, http.StatusNotFound, "account not found")
		return
	}

	if err := h.rooms.JoinRoom(r.Context(), room.ID, account.ID); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"room_id":    room.ID,
		"account_id": account.ID,
	})
}

// Leave removes an account from the room
func (h *RoomsHandler) Leave(w http.ResponseWriter, r *http.Request) {
	roomID, ok := idParam(r, "roomID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid room ID")
		return
	}
	accountID, ok := idParam(r, "accountID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid account ID")
		return
	}
	if err := h.rooms.LeaveRoom(r.Context(), roomID, accountID); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"left": true})
}

func (h *RoomsHandler) resolveAccount(r *http.Request, req JoinRoomRequest) (*database.Account, error) {
	if req.AccountID > 0 {
		return h.accounts.GetAccount(r.Context(), req.AccountID)
	}
	return h.accounts.GetAccountByStdID(r.Context(), req.StdID)
}

// loadRoom resolves the {roomID} URL parameter. On failure it writes the
// error response and returns false.
func (h *RoomsHandler) loadRoom(w http.ResponseWriter, r *http.Request) (*database.Room, bool) {
	return loadRoom(w, r, h.rooms)
}

func loadRoom(w http.ResponseWriter, r *http.Request, rooms database.RoomStore) (*database.Room, bool) {
	roomID, ok := idParam(r, "roomID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid room ID")
		return nil, false
	}
	room, err := rooms.GetRoom(r.Context(), roomID)
	if err != nil {
		respondErr(w, err)
		return nil, false
	}
	if room == nil {
		respondError(w, http.StatusNotFound, "room not found")
		return nil, false
	}
	return room, true
}
