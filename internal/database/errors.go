package database

import "errors"

var (
	// ErrNotFound is returned when a referenced account, room or signature does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique field (username, std_id) is already taken.
	ErrConflict = errors.New("already exists")
	// ErrAlreadyMember is returned when an account joins a room twice.
	ErrAlreadyMember = errors.New("account already joined the room")
)
