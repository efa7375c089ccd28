package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/signet/internal/constants"
	"github.com/kozaktomas/signet/internal/database"
	"github.com/kozaktomas/signet/internal/signature"
)

type recordingRemover struct {
	deleted []string
}

func (r *recordingRemover) Delete(modelName string) error {
	r.deleted = append(r.deleted, modelName)
	return nil
}

func TestRoomsHandler_Create(t *testing.T) {
	store := newTestStore(t)
	handler := NewRoomsHandler(store, store, &recordingRemover{})

	req := httptest.NewRequest("POST", "/api/v1/rooms", bytes.NewBufferString(`{"name": "Midterm", "description": "Hall B"}`))
	recorder := httptest.NewRecorder()

	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusCreated)
	var result RoomResponse
	parseJSONResponse(t, recorder, &result)
	if result.Name != "Midterm" {
		t.Errorf("expected name 'Midterm', got '%s'", result.Name)
	}
	if result.ModelName != constants.BaselineModelName {
		t.Errorf("expected baseline model, got '%s'", result.ModelName)
	}
	if result.TrainStatus != string(signature.TrainStatusUntrained) {
		t.Errorf("expected untrained, got '%s'", result.TrainStatus)
	}
}

func TestRoomsHandler_Create_Validation(t *testing.T) {
	store := newTestStore(t)
	handler := NewRoomsHandler(store, store, &recordingRemover{})

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"invalid json", `{`, errInvalidRequestBody},
		{"missing name", `{"description": "x"}`, "name is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			handler.Create(recorder, httptest.NewRequest("POST", "/api/v1/rooms", bytes.NewBufferString(tt.body)))
			assertStatusCode(t, recorder, http.StatusBadRequest)
			assertJSONError(t, recorder, tt.message)
		})
	}
}

func TestRoomsHandler_Get_NotFound(t *testing.T) {
	store := newTestStore(t)
	handler := NewRoomsHandler(store, store, &recordingRemover{})

	req := requestWithChiParams(httptest.NewRequest("GET", "/api/v1/rooms/99", nil), map[string]string{"roomID": "99"})
	recorder := httptest.NewRecorder()

	handler.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "room not found")
}

func TestRoomsHandler_Delete_RemovesTrainedWeights(t *testing.T) {
	store := newTestStore(t)
	remover := &recordingRemover{}
	handler := NewRoomsHandler(store, store, remover)

	roomID, _ := seedRoom(t, store, "6201")
	if err := store.SetModelTrained(context.Background(), roomID, "model_room_1"); err != nil {
		t.Fatalf("SetModelTrained failed: %v", err)
	}

	req := requestWithChiParams(httptest.NewRequest("DELETE", "/api/v1/rooms/1", nil), map[string]string{"roomID": "1"})
	recorder := httptest.NewRecorder()

	handler.Delete(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	if len(remover.deleted) != 1 || remover.deleted[0] != "model_room_1" {
		t.Errorf("expected model_room_1 removed, got %v", remover.deleted)
	}
}

func TestRoomsHandler_Delete_KeepsBaseline(t *testing.T) {
	store := newTestStore(t)
	remover := &recordingRemover{}
	handler := NewRoomsHandler(store, store, remover)
	seedRoom(t, store)

	req := requestWithChiParams(httptest.NewRequest("DELETE", "/api/v1/rooms/1", nil), map[string]string{"roomID": "1"})
	recorder := httptest.NewRecorder()

	handler.Delete(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	if len(remover.deleted) != 0 {
		t.Errorf("expected baseline untouched, got %v", remover.deleted)
	}
}

func TestRoomsHandler_Delete_NotFound(t *testing.T) {
	store := newTestStore(t)
	handler := NewRoomsHandler(store, store, &recordingRemover{})

	req := requestWithChiParams(httptest.NewRequest("DELETE", "/api/v1/rooms/7", nil), map[string]string{"roomID": "7"})
	recorder := httptest.NewRecorder()

	handler.Delete(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestRoomsHandler_Join(t *testing.T) {
	store := newTestStore(t)
	handler := NewRoomsHandler(store, store, &recordingRemover{})
	roomID, _ := seedRoom(t, store)
	accountID, err := store.CreateAccount(context.Background(), &database.Account{Username: "anna", StdID: "6201"})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	join := func(body string) *httptest.ResponseRecorder {
		req := requestWithChiParams(
			httptest.NewRequest("POST", "/api/v1/rooms/1/members", bytes.NewBufferString(body)),
			map[string]string{"roomID": "1"},
		)
		recorder := httptest.NewRecorder()
		handler.Join(recorder, req)
		return recorder
	}

	recorder := join(`{"std_id": "6201"}`)
	assertStatusCode(t, recorder, http.StatusCreated)

	member, err := store.IsMember(context.Background(), roomID, accountID)
	if err != nil || !member {
		t.Fatalf("expected account to be a member, got %v, %v", member, err)
	}

	recorder = join(`{"account_id": 2}`)
	assertStatusCode(t, recorder, http.StatusConflict)

	recorder = join(`{"std_id": "9999"}`)
	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "account not found")

	recorder = join(`{}`)
	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestRoomsHandler_Members(t *testing.T) {
	store := newTestStore(t)
	handler := NewRoomsHandler(store, store, &recordingRemover{})
	roomID, ids := seedRoom(t, store, "6201", "6202")
	if err := store.SetCheckStatus(context.Background(), roomID, ids[1], signature.CheckStatusFailed); err != nil {
		t.Fatalf("SetCheckStatus failed: %v", err)
	}

	req := requestWithChiParams(httptest.NewRequest("GET", "/api/v1/rooms/1/members", nil), map[string]string{"roomID": "1"})
	recorder := httptest.NewRecorder()

	handler.Members(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var result []MemberResponse
	parseJSONResponse(t, recorder, &result)
	if len(result) != 2 {
		t.Fatalf("expected 2 members, got %d", len(result))
	}
	if result[0].StdID != "6201" || result[0].CheckStatus != "pending" {
		t.Errorf("unexpected first member: %+v", result[0])
	}
	if result[1].StdID != "6202" || result[1].CheckStatus != "failed" {
		t.Errorf("unexpected second member: %+v", result[1])
	}
}

func TestRoomsHandler_ExportMembers(t *testing.T) {
	store := newTestStore(t)
	handler := NewRoomsHandler(store, store, &recordingRemover{})
	seedRoom(t, store, "6201")

	req := requestWithChiParams(httptest.NewRequest("GET", "/api/v1/rooms/1/members.csv", nil), map[string]string{"roomID": "1"})
	recorder := httptest.NewRecorder()

	handler.ExportMembers(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "text/csv; charset=utf-8")
	if !strings.Contains(recorder.Header().Get("Content-Disposition"), "room_1_members.csv") {
		t.Errorf("unexpected Content-Disposition: %s", recorder.Header().Get("Content-Disposition"))
	}
	want := "Std Id,First Name,Last Name,Status\n6201,First6201,Last6201,pending\n"
	if recorder.Body.String() != want {
		t.Errorf("unexpected CSV:\n%s", recorder.Body.String())
	}
}

func TestRoomsHandler_Leave(t *testing.T) {
	store := newTestStore(t)
	handler := NewRoomsHandler(store, store, &recordingRemover{})
	_, ids := seedRoom(t, store, "6201")

	leave := func() *httptest.ResponseRecorder {
		req := requestWithChiParams(httptest.NewRequest("DELETE", "/", nil), map[string]string{
			"roomID":    "1",
			"accountID": "2",
		})
		recorder := httptest.NewRecorder()
		handler.Leave(recorder, req)
		return recorder
	}

	if ids[0] != 2 {
		t.Fatalf("expected account id 2, got %d", ids[0])
	}
	assertStatusCode(t, leave(), http.StatusOK)
	assertStatusCode(t, leave(), http.StatusNotFound)
}
