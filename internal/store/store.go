// Package store opens the SQLite database that keeps the export history and
// tracks, per owning module, which schema version has been applied.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// DefaultBusyTimeout is how long a writer waits on a locked database.
const DefaultBusyTimeout = 5 * time.Second

// ErrMigrationOrder is returned when migration versions are not strictly
// ascending positive integers.
var ErrMigrationOrder = errors.New("migrations out of order")

// Options configures Open.
type Options struct {
	// Path is a file path or ":memory:".
	Path string
	// BusyTimeout defaults to DefaultBusyTimeout.
	BusyTimeout time.Duration
}

// Migration is one schema step. Up runs inside the transaction that also
// records the new version.
type Migration struct {
	Version     int
	Description string
	Up          func(ctx context.Context, tx *sql.Tx) error
}

// SQLiteStore is the export history database.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex // one Migrate at a time
}

// Open opens or creates the database and makes sure the schema_versions
// table exists. History rows are small and written once per export, so a
// single connection is enough.
func Open(ctx context.Context, opts Options) (*SQLiteStore, error) {
	if opts.Path == "" {
		return nil, errors.New("store: path is required")
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = DefaultBusyTimeout
	}

	db, err := sql.Open("sqlite", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", opts.Path, err)
	}
	db.SetMaxOpenConns(1)

	stmts := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", opts.BusyTimeout.Milliseconds()),
		"PRAGMA synchronous=NORMAL",
		`CREATE TABLE IF NOT EXISTS schema_versions (
			owner       TEXT    NOT NULL,
			version     INTEGER NOT NULL,
			description TEXT    NOT NULL,
			applied_at  TEXT    NOT NULL,
			PRIMARY KEY (owner, version)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: init %q: %w", opts.Path, err)
		}
	}
	return &SQLiteStore{db: db, path: opts.Path}, nil
}

// DB returns the handle repositories query through.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Path returns the database location.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Tx runs fn in a transaction, committing on nil and rolling back otherwise.
func (s *SQLiteStore) Tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("store: rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Version returns the highest schema version applied for owner, or 0.
func (s *SQLiteStore) Version(ctx context.Context, owner string) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM schema_versions WHERE owner = ?", owner,
	).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("store: schema version of %s: %w", owner, err)
	}
	return v, nil
}

// Migrate applies the migrations of owner above its current version, each
// in its own transaction. A failed step leaves the earlier ones applied.
func (s *SQLiteStore) Migrate(ctx context.Context, owner string, migrations []Migration) error {
	prev := 0
	for _, m := range migrations {
		if m.Version <= prev {
			return fmt.Errorf("%w: %s version %d after %d", ErrMigrationOrder, owner, m.Version, prev)
		}
		prev = m.Version
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Version(ctx, owner)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		err := s.Tx(ctx, func(tx *sql.Tx) error {
			if err := m.Up(ctx, tx); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO schema_versions (owner, version, description, applied_at) VALUES (?, ?, ?, ?)",
				owner, m.Version, m.Description, time.Now().UTC().Format(time.RFC3339),
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("store: migrate %s to %d (%s): %w", owner, m.Version, m.Description, err)
		}
	}
	return nil
}
