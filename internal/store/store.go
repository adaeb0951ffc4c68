package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial tables
// 1 - Hash lookup index, hashes backfilled for entries written before it
const currentSchemaVersion = 1

// Store provides durable storage for sync logs.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement (entries cascade with their log)
//
// Safe to call repeatedly on the same path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite has a single writer; pragmas are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the hash lookup index and computes hashes for entries
// that have none.
func migrateToV1(db *sql.DB) error {
	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_sync_event_hashes_hash
		ON sync_event_hashes(hash)
	`); err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT e.base_address, e.revision, e.event
		FROM sync_log_entries e
		WHERE NOT EXISTS (
			SELECT 1 FROM sync_event_hashes h
			WHERE h.base_address = e.base_address AND h.revision = e.revision
		)
		ORDER BY e.base_address COLLATE BINARY ASC, e.revision ASC
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}

	type pending struct {
		base, event string
		revision    int64
	}
	var backfill []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.base, &p.revision, &p.event); err != nil {
			rows.Close()
			return fmt.Errorf("migrate to v1: %w", err)
		}
		backfill = append(backfill, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}

	for _, p := range backfill {
		ev, err := unmarshalEvent(p.event)
		if err != nil {
			return fmt.Errorf("migrate to v1: entry %s@%d: %w", p.base, p.revision, err)
		}
		if err := insertHashes(ctx, tx, p.base, ev); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}

	return tx.Commit()
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
