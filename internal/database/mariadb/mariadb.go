// Package mariadb implements the signet repositories on the MySQL/MariaDB
// schema of the legacy attendance application.
package mariadb

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/kozaktomas/signet/internal/database"
)

//go:embed schema.sql
var schemaSQL string

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new MariaDB connection pool.
func NewPool(dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid MariaDB DSN: %w", err)
	}
	cfg.ParseTime = true

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}
	db := sql.OpenDB(connector)

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// EnsureSchema creates the legacy tables when they are missing. Existing
// tables are left as they are.
func (p *Pool) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Register registers repositories over pool as the active database backend.
func Register(pool *Pool) {
	accounts := NewAccountRepository(pool)
	rooms := NewRoomRepository(pool)
	signatures := NewSignatureRepository(pool)
	database.RegisterBackend("mariadb",
		func() database.AccountStore { return accounts },
		func() database.RoomStore { return rooms },
		func() database.SignatureStore { return signatures },
	)
}

// MySQL server error numbers mapped to database sentinels.
const (
	errDuplicateEntry   = 1062
	errNoReferencedRow  = 1216
	errNoReferencedRow2 = 1452
)

// mapError converts constraint violations into database sentinel errors.
func mapError(err error) error {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return err
	}
	switch myErr.Number {
	case errDuplicateEntry:
		return fmt.Errorf("%s: %w", myErr.Message, database.ErrConflict)
	case errNoReferencedRow, errNoReferencedRow2:
		return fmt.Errorf("%s: %w", myErr.Message, database.ErrNotFound)
	}
	return err
}
