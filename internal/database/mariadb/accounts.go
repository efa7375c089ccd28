package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/signet/internal/database"
)

// AccountRepository provides MariaDB-backed account storage
type AccountRepository struct {
	pool *Pool
}

// NewAccountRepository creates a new MariaDB account repository
func NewAccountRepository(pool *Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

const accountColumns = `id, username, email, COALESCE(std_id, ''), fname, lname`

func scanAccount(row interface{ Scan(...any) error }) (*database.Account, error) {
	var a database.Account
	if err := row.Scan(&a.ID, &a.Username, &a.Email, &a.StdID, &a.FirstName, &a.LastName); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAccount inserts an account and returns its id. An empty student id is stored as NULL.
func (r *AccountRepository) CreateAccount(ctx context.Context, account *database.Account) (int64, error) {
	stdID := database.NormalizeStdID(account.StdID)
	result, err := r.pool.db.ExecContext(ctx,
		`INSERT INTO accounts (username, email, std_id, fname, lname) VALUES (?, ?, ?, ?, ?)`,
		account.Username, account.Email, sql.NullString{String: stdID, Valid: stdID != ""},
		account.FirstName, account.LastName,
	)
	if err != nil {
		return 0, fmt.Errorf("create account: %w", mapError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting insert id: %w", err)
	}
	return id, nil
}

// GetAccount returns the account, nil if not found
func (r *AccountRepository) GetAccount(ctx context.Context, id int64) (*database.Account, error) {
	a, err := scanAccount(r.pool.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// GetAccountByStdID looks an account up by student id, nil if not found
func (r *AccountRepository) GetAccountByStdID(ctx context.Context, stdID string) (*database.Account, error) {
	stdID = database.NormalizeStdID(stdID)
	if stdID == "" {
		return nil, nil
	}
	a, err := scanAccount(r.pool.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE std_id = ?`, stdID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account by std_id: %w", err)
	}
	return a, nil
}

// ListAccounts returns all accounts ordered by id
func (r *AccountRepository) ListAccounts(ctx context.Context) ([]database.Account, error) {
	rows, err := r.pool.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []database.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}
