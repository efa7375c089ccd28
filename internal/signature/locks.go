package signature

import "sync"

// RoomLocks serializes training against inference per room. Training holds
// the write lock, recognition and verification hold the read lock, so
// inference never observes a half-written weight artifact.
type RoomLocks struct {
	mu    sync.Mutex
	rooms map[int64]*sync.RWMutex
}

// NewRoomLocks creates an empty lock table.
func NewRoomLocks() *RoomLocks {
	return &RoomLocks{rooms: make(map[int64]*sync.RWMutex)}
}

func (l *RoomLocks) get(roomID int64) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.rooms[roomID]
	if !ok {
		m = &sync.RWMutex{}
		l.rooms[roomID] = m
	}
	return m
}

// Lock takes the room's exclusive lock and returns its release function.
func (l *RoomLocks) Lock(roomID int64) func() {
	m := l.get(roomID)
	m.Lock()
	return m.Unlock
}

// TryLock takes the exclusive lock only if it is free.
func (l *RoomLocks) TryLock(roomID int64) (func(), bool) {
	m := l.get(roomID)
	if !m.TryLock() {
		return nil, false
	}
	return m.Unlock, true
}

// RLock takes the room's shared lock and returns its release function.
func (l *RoomLocks) RLock(roomID int64) func() {
	m := l.get(roomID)
	m.RLock()
	return m.RUnlock
}
