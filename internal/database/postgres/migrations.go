package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"path"
	"slices"
)

// Schema files run once each, in name order. The file name is the version
// recorded in schema_migrations.
//
//go:embed migrations/*.sql
var schemaFiles embed.FS

const createVersionTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version VARCHAR(255) PRIMARY KEY,
		applied_at TIMESTAMPTZ DEFAULT NOW()
	)`

// Migrate brings the room schema up to date. A file that fails leaves the
// database at the previous version.
func (p *Pool) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, createVersionTable); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}
	done, err := p.MigrationsApplied(ctx)
	if err != nil {
		return err
	}

	files, err := fs.Glob(schemaFiles, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("listing schema files: %w", err)
	}
	slices.Sort(files)
	for _, file := range files {
		version := path.Base(file)
		if slices.Contains(done, version) {
			continue
		}
		if err := p.apply(ctx, file, version); err != nil {
			return fmt.Errorf("migration %s: %w", version, err)
		}
		log.Printf("Schema migrated to %s", version)
	}
	return nil
}

func (p *Pool) apply(ctx context.Context, file, version string) error {
	script, err := schemaFiles.ReadFile(file)
	if err != nil {
		return err
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(script)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
		return fmt.Errorf("recording version: %w", err)
	}
	return tx.Commit()
}

// MigrationsApplied lists the recorded schema versions in order.
func (p *Pool) MigrationsApplied(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("reading schema versions: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}
