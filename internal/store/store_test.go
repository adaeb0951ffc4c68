package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"sync_logs", "sync_log_entries", "sync_event_hashes"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after repeated opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name, want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"user_version", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.verifyPragma(tt.name, tt.want); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestSchema_Columns(t *testing.T) {
	s := createTestStore(t)

	tests := map[string][]string{
		"sync_logs":         {"base_address", "synchronized_revision"},
		"sync_log_entries":  {"base_address", "revision", "command", "event"},
		"sync_event_hashes": {"base_address", "revision", "position", "hash"},
	}
	for table, expected := range tests {
		columns := getTableColumns(t, s.db, table)
		for _, col := range expected {
			if !slices.Contains(columns, col) {
				t.Errorf("%s table missing column %q", table, col)
			}
		}
	}
}

func TestSchema_HashIndex(t *testing.T) {
	s := createTestStore(t)

	indexes := getTableIndexes(t, s.db, "sync_event_hashes")
	if !slices.Contains(indexes, "idx_sync_event_hashes_hash") {
		t.Error("sync_event_hashes table missing index idx_sync_event_hashes_hash")
	}
}

func TestConstraint_SynchronizedRevisionLowerBound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`INSERT INTO sync_logs (base_address, synchronized_revision) VALUES ('repo', -2)`)
	if err == nil {
		t.Error("expected CHECK constraint violation for synchronized_revision -2")
	}
}

func TestConstraint_EntriesNeedLog(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`
		INSERT INTO sync_log_entries (base_address, revision, command, event)
		VALUES ('missing', 1, NULL, '{}')
	`)
	if err == nil {
		t.Error("expected foreign key violation for entry without log")
	}
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

// createTestStore opens a fresh database in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
