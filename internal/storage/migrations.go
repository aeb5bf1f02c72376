package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	Apply   func(tx *sql.Tx) error
}

// MigrationRunner applies pending migrations to a SQLite database.
type MigrationRunner struct {
	db          *sql.DB
	journalMode string
	migrations  []migration
}

// NewMigrationRunner creates a MigrationRunner with all registered migrations.
func NewMigrationRunner(db *sql.DB) *MigrationRunner {
	return &MigrationRunner{
		db:          db,
		journalMode: "wal",
		migrations: []migration{
			{Version: 1, Name: "archive_schema", Apply: migrateV001},
		},
	}
}

// WithJournalMode overrides the SQLite journal mode set before migrating.
// An empty mode leaves the default (wal).
func (r *MigrationRunner) WithJournalMode(mode string) *MigrationRunner {
	if mode = strings.TrimSpace(mode); mode != "" {
		r.journalMode = mode
	}
	return r
}

// Run applies all pending migrations in order. It sets the journal mode and
// enables foreign keys, creates the schema_migrations tracking table, then
// applies each migration that hasn't been recorded yet.
func (r *MigrationRunner) Run() error {
	return r.RunContext(context.Background())
}

// RunContext is Run with a context.
func (r *MigrationRunner) RunContext(ctx context.Context) error {
	switch strings.ToLower(r.journalMode) {
	case "wal", "delete", "truncate", "persist", "memory", "off":
	default:
		return fmt.Errorf("unsupported journal mode %q", r.journalMode)
	}
	if _, err := r.db.ExecContext(ctx, "PRAGMA journal_mode = "+strings.ToUpper(r.journalMode)); err != nil {
		return fmt.Errorf("set journal mode: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range r.migrations {
		applied, err := r.isApplied(ctx, m.Version)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if applied {
			continue
		}

		if err := r.apply(ctx, m); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}
	}

	return nil
}

// Version returns the highest applied migration, or 0 on a fresh database.
func (r *MigrationRunner) Version(ctx context.Context) (int, error) {
	var v sql.NullInt64
	err := r.db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&v)
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return 0, nil
		}
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(v.Int64), nil
}

// isApplied checks whether a migration version has already been recorded.
func (r *MigrationRunner) isApplied(ctx context.Context, version int) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// apply executes a migration inside a transaction and records it.
func (r *MigrationRunner) apply(ctx context.Context, m migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := m.Apply(tx); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		m.Version, m.Name,
	); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}

	return tx.Commit()
}
