package database

import (
	"context"

	"github.com/kozaktomas/signet/internal/signature"
)

// AccountStore provides access to accounts
type AccountStore interface {
	// CreateAccount inserts an account and returns its id. StdID is normalized first.
	CreateAccount(ctx context.Context, account *Account) (int64, error)
	// GetAccount returns the account, nil if not found
	GetAccount(ctx context.Context, id int64) (*Account, error)
	// GetAccountByStdID looks an account up by normalized student id, nil if not found
	GetAccountByStdID(ctx context.Context, stdID string) (*Account, error)
	// ListAccounts returns all accounts ordered by id
	ListAccounts(ctx context.Context) ([]Account, error)
}

// RoomStore provides access to rooms, memberships and room models
type RoomStore interface {
	signature.ParticipantCounter
	signature.StatusSink

	// CreateRoom inserts a room together with its untrained baseline model row
	CreateRoom(ctx context.Context, room *Room) (int64, error)
	// GetRoom returns the room with its model state, nil if not found
	GetRoom(ctx context.Context, id int64) (*Room, error)
	// ListRooms returns all rooms ordered by id
	ListRooms(ctx context.Context) ([]Room, error)
	// DeleteRoom removes the room, its memberships and model row.
	// Returns the model name so the caller can drop the weight artifact.
	DeleteRoom(ctx context.Context, id int64) (string, error)

	// JoinRoom adds an account to a room with a pending check status
	JoinRoom(ctx context.Context, roomID, accountID int64) error
	// LeaveRoom removes an account from a room
	LeaveRoom(ctx context.Context, roomID, accountID int64) error
	// IsMember reports whether the account joined the room
	IsMember(ctx context.Context, roomID, accountID int64) (bool, error)
	// ListMembers returns the room's members in join order
	ListMembers(ctx context.Context, roomID int64) ([]Member, error)
}

// SignatureStore provides access to enrolled reference images
type SignatureStore interface {
	signature.ReferenceSource

	// AddSignature stores an image for an account and returns its id
	AddSignature(ctx context.Context, accountID int64, image []byte) (int64, error)
	// DeleteSignature removes one image
	DeleteSignature(ctx context.Context, id int64) error
	// ListSignatures returns an account's images ordered by id
	ListSignatures(ctx context.Context, accountID int64) ([]StoredSignature, error)
}
