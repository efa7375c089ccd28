package database

import (
	"time"

	"github.com/kozaktomas/signet/internal/signature"
)

// Account is a registered user who may enroll signatures.
type Account struct {
	ID        int64
	Username  string
	Email     string
	StdID     string // student id, normalized with NormalizeStdID
	FirstName string
	LastName  string
}

// Room groups accounts whose signatures are matched against each other.
// Every room has exactly one model row.
type Room struct {
	ID          int64
	Name        string
	Description string
	OwnerID     int64 // 0 when the owner account was removed
	ModelName   string
	TrainStatus signature.TrainStatus
}

// Member is an account's participation in a room.
type Member struct {
	JoinID      int64
	RoomID      int64
	AccountID   int64
	StdID       string
	FirstName   string
	LastName    string
	CheckStatus signature.CheckStatus
}

// StoredSignature is one enrolled reference image.
type StoredSignature struct {
	ID        int64
	AccountID int64
	Image     []byte
	CreatedAt time.Time
}
