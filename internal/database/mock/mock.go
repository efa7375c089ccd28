// Package mock provides in-memory implementations of the database
// interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kozaktomas/signet/internal/constants"
	"github.com/kozaktomas/signet/internal/database"
	"github.com/kozaktomas/signet/internal/signature"
)

// MockStore implements database.AccountStore, database.RoomStore and
// database.SignatureStore on maps.
type MockStore struct {
	mu         sync.RWMutex
	nextID     int64
	accounts   map[int64]*database.Account
	rooms      map[int64]*database.Room
	members    map[int64][]database.Member // by room, in join order
	signatures map[int64]*database.StoredSignature

	// Error injection
	CreateAccountError  error
	GetAccountError     error
	CreateRoomError     error
	GetRoomError        error
	DeleteRoomError     error
	JoinRoomError       error
	ListMembersError    error
	CountError          error
	SetCheckStatusError error
	SetTrainedError     error
	AddSignatureError   error
	FetchError          error
}

// NewMockStore creates an empty store
func NewMockStore() *MockStore {
	return &MockStore{
		accounts:   make(map[int64]*database.Account),
		rooms:      make(map[int64]*database.Room),
		members:    make(map[int64][]database.Member),
		signatures: make(map[int64]*database.StoredSignature),
	}
}

func (m *MockStore) id() int64 {
	m.nextID++
	return m.nextID
}

// CreateAccount inserts an account
func (m *MockStore) CreateAccount(ctx context.Context, account *database.Account) (int64, error) {
	if m.CreateAccountError != nil {
		return 0, m.CreateAccountError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	a := *account
	a.StdID = database.NormalizeStdID(a.StdID)
	for _, existing := range m.accounts {
		if existing.Username == a.Username || (a.StdID != "" && existing.StdID == a.StdID) {
			return 0, fmt.Errorf("account %q: %w", a.Username, database.ErrConflict)
		}
	}
	a.ID = m.id()
	m.accounts[a.ID] = &a
	return a.ID, nil
}

// GetAccount returns the account, nil if not found
func (m *MockStore) GetAccount(ctx context.Context, id int64) (*database.Account, error) {
	if m.GetAccountError != nil {
		return nil, m.GetAccountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

// GetAccountByStdID looks an account up by normalized student id
func (m *MockStore) GetAccountByStdID(ctx context.Context, stdID string) (*database.Account, error) {
	if m.GetAccountError != nil {
		return nil, m.GetAccountError
	}
	stdID = database.NormalizeStdID(stdID)
	if stdID == "" {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.accounts {
		if a.StdID == stdID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

// ListAccounts returns all accounts ordered by id
func (m *MockStore) ListAccounts(ctx context.Context) ([]database.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateRoom inserts a room with an untrained baseline model
func (m *MockStore) CreateRoom(ctx context.Context, room *database.Room) (int64, error) {
	if m.CreateRoomError != nil {
		return 0, m.CreateRoomError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *room
	r.ID = m.id()
	r.ModelName = constants.BaselineModelName
	r.TrainStatus = signature.TrainStatusUntrained
	m.rooms[r.ID] = &r
	return r.ID, nil
}

// GetRoom returns the room, nil if not found
func (m *MockStore) GetRoom(ctx context.Context, id int64) (*database.Room, error) {
	if m.GetRoomError != nil {
		return nil, m.GetRoomError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

// ListRooms returns all rooms ordered by id
func (m *MockStore) ListRooms(ctx context.Context) ([]database.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteRoom removes the room and its memberships
func (m *MockStore) DeleteRoom(ctx context.Context, id int64) (string, error) {
	if m.DeleteRoomError != nil {
		return "", m.DeleteRoomError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return "", fmt.Errorf("room %d: %w", id, database.ErrNotFound)
	}
	delete(m.rooms, id)
	delete(m.members, id)
	return r.ModelName, nil
}

// JoinRoom adds an account to a room with a pending check status
func (m *MockStore) JoinRoom(ctx context.Context, roomID, accountID int64) error {
	if m.JoinRoomError != nil {
		return m.JoinRoomError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[roomID]; !ok {
		return fmt.Errorf("room %d: %w", roomID, database.ErrNotFound)
	}
	a, ok := m.accounts[accountID]
	if !ok {
		return fmt.Errorf("account %d: %w", accountID, database.ErrNotFound)
	}
	for _, mem := range m.members[roomID] {
		if mem.AccountID == accountID {
			return database.ErrAlreadyMember
		}
	}
	m.members[roomID] = append(m.members[roomID], database.Member{
		JoinID:      m.id(),
		RoomID:      roomID,
		AccountID:   accountID,
		StdID:       a.StdID,
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		CheckStatus: signature.CheckStatusPending,
	})
	return nil
}

// LeaveRoom removes an account from a room
func (m *MockStore) LeaveRoom(ctx context.Context, roomID, accountID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	members := m.members[roomID]
	for i, mem := range members {
		if mem.AccountID == accountID {
			m.members[roomID] = append(members[:i:i], members[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("membership of account %d in room %d: %w", accountID, roomID, database.ErrNotFound)
}

// IsMember reports whether the account joined the room
func (m *MockStore) IsMember(ctx context.Context, roomID, accountID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mem := range m.members[roomID] {
		if mem.AccountID == accountID {
			return true, nil
		}
	}
	return false, nil
}

// ListMembers returns the room's members in join order
func (m *MockStore) ListMembers(ctx context.Context, roomID int64) ([]database.Member, error) {
	if m.ListMembersError != nil {
		return nil, m.ListMembersError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Member, len(m.members[roomID]))
	copy(out, m.members[roomID])
	return out, nil
}

// CountParticipants counts the room's members
func (m *MockStore) CountParticipants(ctx context.Context, roomID int64) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.members[roomID]), nil
}

// SetCheckStatus records a verification outcome for a member
func (m *MockStore) SetCheckStatus(ctx context.Context, roomID, signerID int64, status signature.CheckStatus) error {
	if m.SetCheckStatusError != nil {
		return m.SetCheckStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.members[roomID] {
		if m.members[roomID][i].AccountID == signerID {
			m.members[roomID][i].CheckStatus = status
			return nil
		}
	}
	return fmt.Errorf("membership of account %d in room %d: %w", signerID, roomID, database.ErrNotFound)
}

// SetModelTrained marks the room's model trained
func (m *MockStore) SetModelTrained(ctx context.Context, roomID int64, modelName string) error {
	if m.SetTrainedError != nil {
		return m.SetTrainedError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return fmt.Errorf("room %d: %w", roomID, database.ErrNotFound)
	}
	r.ModelName = modelName
	r.TrainStatus = signature.TrainStatusTrained
	return nil
}

// AddSignature stores an image for an account
func (m *MockStore) AddSignature(ctx context.Context, accountID int64, image []byte) (int64, error) {
	if m.AddSignatureError != nil {
		return 0, m.AddSignatureError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[accountID]; !ok {
		return 0, fmt.Errorf("account %d: %w", accountID, database.ErrNotFound)
	}
	s := &database.StoredSignature{ID: m.id(), AccountID: accountID, Image: image}
	m.signatures[s.ID] = s
	return s.ID, nil
}

// DeleteSignature removes one image
func (m *MockStore) DeleteSignature(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.signatures[id]; !ok {
		return fmt.Errorf("signature %d: %w", id, database.ErrNotFound)
	}
	delete(m.signatures, id)
	return nil
}

// ListSignatures returns an account's images ordered by id
func (m *MockStore) ListSignatures(ctx context.Context, accountID int64) ([]database.StoredSignature, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.signaturesOf(accountID), nil
}

func (m *MockStore) signaturesOf(accountID int64) []database.StoredSignature {
	var out []database.StoredSignature
	for _, s := range m.signatures {
		if s.AccountID == accountID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FetchByRoom returns the signatures of every member of the room
func (m *MockStore) FetchByRoom(ctx context.Context, roomID int64) ([]signature.Reference, error) {
	if m.FetchError != nil {
		return nil, m.FetchError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	refs := []signature.Reference{}
	for _, mem := range m.members[roomID] {
		for _, s := range m.signaturesOf(mem.AccountID) {
			refs = append(refs, signature.Reference{SignerID: s.AccountID, Image: s.Image})
		}
	}
	return refs, nil
}

// FetchBySigner returns every image enrolled by one account
func (m *MockStore) FetchBySigner(ctx context.Context, signerID int64) ([][]byte, error) {
	if m.FetchError != nil {
		return nil, m.FetchError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	images := [][]byte{}
	for _, s := range m.signaturesOf(signerID) {
		images = append(images, s.Image)
	}
	return images, nil
}

// Register registers the store as the active database backend
func (m *MockStore) Register() {
	database.RegisterBackend("mock",
		func() database.AccountStore { return m },
		func() database.RoomStore { return m },
		func() database.SignatureStore { return m },
	)
}

var (
	_ database.AccountStore   = (*MockStore)(nil)
	_ database.RoomStore      = (*MockStore)(nil)
	_ database.SignatureStore = (*MockStore)(nil)
)
