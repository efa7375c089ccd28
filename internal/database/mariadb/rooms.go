package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/signet/internal/constants"
	"github.com/kozaktomas/signet/internal/database"
	"github.com/kozaktomas/signet/internal/signature"
)

// RoomRepository provides MariaDB-backed storage for rooms, memberships
// and room models
type RoomRepository struct {
	pool *Pool
}

// NewRoomRepository creates a new MariaDB room repository
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
	tx, err := r.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	owner := sql.NullInt64{Int64: room.OwnerID, Valid: room.OwnerID != 0}
	result, err := tx.ExecContext(ctx,
		`INSERT INTO rooms (room_name, description, account_id) VALUES (?, ?, ?)`,
		room.Name, room.Description, owner,
	)
	if err != nil {
		return 0, fmt.Errorf("create room: %w", mapError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting insert id: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO models (model_name, train_status, room_id) VALUES (?, ?, ?)`,
		constants.BaselineModelName, string(signature.TrainStatusUntrained), id,
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
	room, err := scanRoom(r.pool.db.QueryRowContext(ctx, roomSelect+` WHERE r.room_id = ?`, id))
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
	rows, err := r.pool.db.QueryContext(ctx, roomSelect+` ORDER BY r.room_id`)
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
	tx, err := r.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var modelName string
	err = tx.QueryRowContext(ctx, `SELECT model_name FROM models WHERE room_id = ?`, id).Scan(&modelName)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("get room model: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE room_id = ?`, id)
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
	_, err := r.pool.db.ExecContext(ctx,
		`INSERT INTO join_rooms (check_status, account_id, room_id) VALUES (?, ?, ?)`,
		legacyPending, accountID, roomID,
	)
	err = mapError(err)
	if errors.Is(err, database.ErrConflict) {
		return database.ErrAlreadyMember
	}
	if err != nil {
		return fmt.Errorf("join room: %w", err)
	}
	return nil
}

// LeaveRoom removes an account from a room
func (r *RoomRepository) LeaveRoom(ctx context.Context, roomID, accountID int64) error {
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM join_rooms WHERE room_id = ? AND account_id = ?`, roomID, accountID)
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
	err := r.pool.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM join_rooms WHERE room_id = ? AND account_id = ?)`,
		roomID, accountID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}

// ListMembers returns the room's members in join order
func (r *RoomRepository) ListMembers(ctx context.Context, roomID int64) ([]database.Member, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT j.join_room_id, j.room_id, a.id, COALESCE(a.std_id, ''), a.fname, a.lname, j.check_status
		FROM join_rooms j
		JOIN accounts a ON a.id = j.account_id
		WHERE j.room_id = ?
		ORDER BY j.join_room_id
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []database.Member
	for rows.Next() {
		var m database.Member
		var label string
		if err := rows.Scan(&m.JoinID, &m.RoomID, &m.AccountID, &m.StdID, &m.FirstName, &m.LastName, &label); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		status, err := fromLegacyStatus(label)
		if err != nil {
			return nil, fmt.Errorf("member %d: %w", m.AccountID, err)
		}
		m.CheckStatus = status
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
	if err := r.pool.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM join_rooms WHERE room_id = ?`, roomID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count participants: %w", err)
	}
	return count, nil
}

// SetCheckStatus records a verification outcome for a member
func (r *RoomRepository) SetCheckStatus(ctx context.Context, roomID, signerID int64, status signature.CheckStatus) error {
	label, err := toLegacyStatus(status)
	if err != nil {
		return err
	}
	// MySQL reports zero affected rows when the value is unchanged, so
	// membership is checked separately.
	member, err := r.IsMember(ctx, roomID, signerID)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("membership of account %d in room %d: %w", signerID, roomID, database.ErrNotFound)
	}
	_, err = r.pool.db.ExecContext(ctx,
		`UPDATE join_rooms SET check_status = ? WHERE room_id = ? AND account_id = ?`,
		label, roomID, signerID,
	)
	if err != nil {
		return fmt.Errorf("set check status: %w", err)
	}
	return nil
}

// SetModelTrained points the room at its fine-tuned model artifact
func (r *RoomRepository) SetModelTrained(ctx context.Context, roomID int64, modelName string) error {
	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO models (model_name, train_status, room_id) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE model_name = VALUES(model_name), train_status = VALUES(train_status)
	`, modelName, string(signature.TrainStatusTrained), roomID)
	if err != nil {
		return fmt.Errorf("set model trained: %w", mapError(err))
	}
	return nil
}
