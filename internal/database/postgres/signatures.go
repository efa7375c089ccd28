package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/signet/internal/database"
	"github.com/kozaktomas/signet/internal/signature"
)

// SignatureRepository provides PostgreSQL-backed storage for enrolled signature images
type SignatureRepository struct {
	pool *Pool
}

// NewSignatureRepository creates a new PostgreSQL signature repository
func NewSignatureRepository(pool *Pool) *SignatureRepository {
	return &SignatureRepository{pool: pool}
}

// AddSignature stores an image for an account and returns its id
func (r *SignatureRepository) AddSignature(ctx context.Context, accountID int64, image []byte) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO signatures (signature_image, account_id) VALUES ($1, $2) RETURNING signature_id`,
		image, accountID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("add signature: %w", mapError(err))
	}
	return id, nil
}

// DeleteSignature removes one image
func (r *SignatureRepository) DeleteSignature(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM signatures WHERE signature_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete signature: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("signature %d: %w", id, database.ErrNotFound)
	}
	return nil
}

// ListSignatures returns an account's images ordered by id
func (r *SignatureRepository) ListSignatures(ctx context.Context, accountID int64) ([]database.StoredSignature, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT signature_id, account_id, signature_image, created_at
		FROM signatures
		WHERE account_id = $1
		ORDER BY signature_id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list signatures: %w", err)
	}
	defer rows.Close()

	var sigs []database.StoredSignature
	for rows.Next() {
		var s database.StoredSignature
		if err := rows.Scan(&s.ID, &s.AccountID, &s.Image, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan signature: %w", err)
		}
		sigs = append(sigs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signatures: %w", err)
	}
	return sigs, nil
}

// FetchByRoom returns the signatures of every member of the room
func (r *SignatureRepository) FetchByRoom(ctx context.Context, roomID int64) ([]signature.Reference, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.account_id, s.signature_image
		FROM signatures s
		JOIN join_rooms j ON j.account_id = s.account_id
		WHERE j.room_id = $1
		ORDER BY j.join_room_id, s.signature_id
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("fetch room signatures: %w", err)
	}
	defer rows.Close()

	refs := []signature.Reference{}
	for rows.Next() {
		var ref signature.Reference
		if err := rows.Scan(&ref.SignerID, &ref.Image); err != nil {
			return nil, fmt.Errorf("scan signature: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signatures: %w", err)
	}
	return refs, nil
}

// FetchBySigner returns every image enrolled by one account
func (r *SignatureRepository) FetchBySigner(ctx context.Context, signerID int64) ([][]byte, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT signature_image FROM signatures WHERE account_id = $1 ORDER BY signature_id`, signerID)
	if err != nil {
		return nil, fmt.Errorf("fetch signer signatures: %w", err)
	}
	defer rows.Close()

	images := [][]byte{}
	for rows.Next() {
		var img []byte
		if err := rows.Scan(&img); err != nil {
			return nil, fmt.Errorf("scan signature: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signatures: %w", err)
	}
	return images, nil
}
