package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/signet/internal/constants"
	"github.com/kozaktomas/signet/internal/database"
	"github.com/kozaktomas/signet/internal/signature"
)

// RoomRepository provides PostgreSQL-backed storage for rooms,
// memberships and room models
type RoomRepository struct {
	pool *Pool
}

// NewRoomRepository creates a new PostgreSQL room repository
func NewRoomRepository(pool *Pool) *RoomRepository {
	return &RoomRepository{pool: pool}
}

const roomSelect = `
	SELECT r.room_id, r.room_name, r.description, COALESCE(r.account_id, 0),
	       COALESCE(m.model_name, '` + constants.BaselineModelName + `'),
	       COALESCE(m.train_status, '` + string(signature.TrainStatusUntrained) + `')
	FROM rooms r
	LEFT JOIN models m ON m.room_id = r.room_id
`

func scanRoom(row interface{ Scan(...any) error }) (*database.Room, error) {
	var room database.Room
	var status string
	if err := row.Scan(&room.ID, &room.Name, &room.Description, &room.OwnerID, &room.ModelName, &status); err != nil {
		return nil, err
	}
	room.TrainStatus = signature.TrainStatus(status)
	return &room, nil
}

// CreateRoom inserts a room together with its untrained baseline model row
func (r *RoomRepository) CreateRoom(ctx context.Context, room *database.Room) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	owner := sql.NullInt64{Int64: room.OwnerID, Valid: room.OwnerID != 0}
	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO rooms (room_name, description, account_id) VALUES ($1, $2, $3) RETURNING room_id`,
		room.Name, room.Description, owner,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create room: %w", mapError(err))
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO models (room_id, model_name, train_status) VALUES ($1, $2, $3)`,
		id, constants.BaselineModelName, string(signature.TrainStatusUntrained),
	)
	if err != nil {
		return 0, fmt.Errorf("create room model: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit room: %w", err)
	}
	return id, nil
}

// GetRoom returns the room with its model state, nil if not found
func (r *RoomRepository) GetRoom(ctx context.Context, id int64) (*database.Room, error) {
	room, err := scanRoom(r.pool.QueryRow(ctx, roomSelect+` WHERE r.room_id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	return room, nil
}

// ListRooms returns all rooms ordered by id
func (r *RoomRepository) ListRooms(ctx context.Context) ([]database.Room, error) {
	rows, err := r.pool.Query(ctx, roomSelect+` ORDER BY r.room_id`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []database.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, *room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	return rooms, nil
}

// DeleteRoom removes the room; memberships and the model row cascade
func (r *RoomRepository) DeleteRoom(ctx context.Context, id int64) (string, error) {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var modelName string
	err = tx.QueryRowContext(ctx, `SELECT model_name FROM models WHERE room_id = $1`, id).Scan(&modelName)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("get room model: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE room_id = $1`, id)
	if err != nil {
		return "", fmt.Errorf("delete room: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return "", fmt.Errorf("getting rows affected: %w", err)
	} else if n == 0 {
		return "", fmt.Errorf("room %d: %w", id, database.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit room deletion: %w", err)
	}
	return modelName, nil
}

// JoinRoom adds an account to a room with a pending check status
func (r *RoomRepository) JoinRoom(ctx context.Context, roomID, accountID int64) error {
	result, err := r.pool.Exec(ctx, `
		INSERT INTO join_rooms (check_status, account_id, room_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (room_id, account_id) DO NOTHING
	`, string(signature.CheckStatusPending), accountID, roomID)
	if err != nil {
		return fmt.Errorf("join room: %w", mapError(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return database.ErrAlreadyMember
	}
	return nil
}

// LeaveRoom removes an account from a room
func (r *RoomRepository) LeaveRoom(ctx context.Context, roomID, accountID int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM join_rooms WHERE room_id = $1 AND account_id = $2`, roomID, accountID)
	if err != nil {
		return fmt.Errorf("leave room: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("membership of account %d in room %d: %w", accountID, roomID, database.ErrNotFound)
	}
	return nil
}

// IsMember reports whether the account joined the room
func (r *RoomRepository) IsMember(ctx context.Context, roomID, accountID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM join_rooms WHERE room_id = $1 AND account_id = $2)`,
		roomID, accountID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}

// ListMembers returns the room's members in join order
func (r *RoomRepository) ListMembers(ctx context.Context, roomID int64) ([]database.Member, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT j.join_room_id, j.room_id, a.id, a.std_id, a.fname, a.lname, j.check_status
		FROM join_rooms j
		JOIN accounts a ON a.id = j.account_id
		WHERE j.room_id = $1
		ORDER BY j.join_room_id
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []database.Member
	for rows.Next() {
		var m database.Member
		var status string
		if err := rows.Scan(&m.JoinID, &m.RoomID, &m.AccountID, &m.StdID, &m.FirstName, &m.LastName, &status); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.CheckStatus = signature.CheckStatus(status)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}

// CountParticipants counts the accounts that joined the room
func (r *RoomRepository) CountParticipants(ctx context.Context, roomID int64) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM join_rooms WHERE room_id = $1`, roomID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count participants: %w", err)
	}
	return count, nil
}

// SetCheckStatus records a verification outcome for a member
func (r *RoomRepository) SetCheckStatus(ctx context.Context, roomID, signerID int64, status signature.CheckStatus) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE join_rooms SET check_status = $1 WHERE room_id = $2 AND account_id = $3`,
		string(status), roomID, signerID,
	)
	if err != nil {
		return fmt.Errorf("set check status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("membership of account %d in room %d: %w", signerID, roomID, database.ErrNotFound)
	}
	return nil
}

// SetModelTrained points the room at its fine-tuned model artifact
func (r *RoomRepository) SetModelTrained(ctx context.Context, roomID int64, modelName string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO models (room_id, model_name, train_status, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (room_id) DO UPDATE SET
			model_name = EXCLUDED.model_name,
			train_status = EXCLUDED.train_status,
			updated_at = NOW()
	`, roomID, modelName, string(signature.TrainStatusTrained))
	if err != nil {
		return fmt.Errorf("set model trained: %w", mapError(err))
	}
	return nil
}
