package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/treesync/internal/ir"
	"github.com/roach88/treesync/internal/logquery"
	"github.com/roach88/treesync/internal/synclog"
)

var (
	// ErrLogNotFound is returned when no log is stored for a base address.
	ErrLogNotFound = errors.New("sync log not found")

	// ErrLogExists is returned by CreateLog for an already stored base.
	ErrLogExists = errors.New("sync log already exists")
)

// LogInfo summarizes a stored log.
type LogInfo struct {
	BaseAddress          ir.Address `json:"base_address"`
	SynchronizedRevision int64      `json:"synchronized_revision"`
	CurrentRevision      int64      `json:"current_revision"`
	Entries              int        `json:"entries"`
	Pending              int        `json:"pending"`
}

// LocatedEntry is an entry together with the log it belongs to.
type LocatedEntry struct {
	BaseAddress ir.Address
	Entry       synclog.Entry
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CreateLog stores an empty log anchored at synchronized.
func (s *Store) CreateLog(ctx context.Context, base ir.Address, synchronized int64) error {
	if base.Level() == ir.LevelInvalid {
		return fmt.Errorf("create log: invalid base address %q", base)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_logs (base_address, synchronized_revision)
		VALUES (?, ?)
		ON CONFLICT(base_address) DO NOTHING
	`, base.String(), synchronized)
	if err != nil {
		return fmt.Errorf("create log: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("create log %s: %w", base, ErrLogExists)
	}
	return nil
}

// SaveLog replaces the stored state of log.BaseAddress() with log's
// snapshot, creating it if needed. Runs in one transaction.
func (s *Store) SaveLog(ctx context.Context, log *synclog.Log) error {
	base := log.BaseAddress().String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save log: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sync_logs (base_address, synchronized_revision)
		VALUES (?, ?)
		ON CONFLICT(base_address) DO UPDATE SET synchronized_revision = excluded.synchronized_revision
	`, base, log.SynchronizedRevision()); err != nil {
		return fmt.Errorf("save log: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sync_log_entries WHERE base_address = ?`, base); err != nil {
		return fmt.Errorf("save log: %w", err)
	}
	for entry := range log.Entries() {
		if err := insertEntry(ctx, tx, base, entry); err != nil {
			return fmt.Errorf("save log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save log: %w", err)
	}
	return nil
}

// LoadLog reads the log stored for base and restores it, re-checking its
// invariants. Returns ErrLogNotFound if there is none.
func (s *Store) LoadLog(ctx context.Context, base ir.Address) (*synclog.Log, error) {
	var synchronized int64
	err := s.db.QueryRowContext(ctx, `
		SELECT synchronized_revision FROM sync_logs WHERE base_address = ?
	`, base.String()).Scan(&synchronized)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load log %s: %w", base, ErrLogNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load log: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT revision, command, event
		FROM sync_log_entries
		WHERE base_address = ?
		ORDER BY revision ASC
	`, base.String())
	if err != nil {
		return nil, fmt.Errorf("load log: %w", err)
	}
	defer rows.Close()

	snap := synclog.Snapshot{
		BaseAddress:          base,
		SynchronizedRevision: synchronized,
		Entries:              make(map[int64]synclog.Entry),
	}
	for rows.Next() {
		rev, entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("load log: %w", err)
		}
		snap.Entries[rev] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load log: iterate entries: %w", err)
	}

	log, err := synclog.Restore(snap)
	if err != nil {
		return nil, fmt.Errorf("load log %s: %w", base, err)
	}
	return log, nil
}

// AppendEntry stores one entry under base. The revision must be free.
func (s *Store) AppendEntry(ctx context.Context, base ir.Address, entry synclog.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	defer tx.Rollback()

	if err := insertEntry(ctx, tx, base.String(), entry); err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	return nil
}

// SetSynchronizedRevision updates the stored marker of base.
func (s *Store) SetSynchronizedRevision(ctx context.Context, base ir.Address, rev int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_logs SET synchronized_revision = ? WHERE base_address = ?
	`, rev, base.String())
	if err != nil {
		return fmt.Errorf("set synchronized revision: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set synchronized revision %s: %w", base, ErrLogNotFound)
	}
	return nil
}

// DeleteEntriesAbove removes the entries of base with revision > rev and
// returns how many were removed.
func (s *Store) DeleteEntriesAbove(ctx context.Context, base ir.Address, rev int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sync_log_entries WHERE base_address = ? AND revision > ?
	`, base.String(), rev)
	if err != nil {
		return 0, fmt.Errorf("delete entries above %d: %w", rev, err)
	}
	return res.RowsAffected()
}

// DeleteEntries removes the given revisions of base and returns how many
// existed.
func (s *Store) DeleteEntries(ctx context.Context, base ir.Address, revs []int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("delete entries: %w", err)
	}
	defer tx.Rollback()

	var total int64
	for _, rev := range revs {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM sync_log_entries WHERE base_address = ? AND revision = ?
		`, base.String(), rev)
		if err != nil {
			return 0, fmt.Errorf("delete entry %d: %w", rev, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("delete entries: %w", err)
	}
	return total, nil
}

// DeleteLog removes base and all of its entries.
func (s *Store) DeleteLog(ctx context.Context, base ir.Address) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sync_logs WHERE base_address = ?`, base.String())
	if err != nil {
		return fmt.Errorf("delete log: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete log %s: %w", base, ErrLogNotFound)
	}
	return nil
}

// ListLogs returns a summary of every stored log ordered by base address.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListLogs(ctx context.Context) ([]LogInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.base_address,
		       l.synchronized_revision,
		       COALESCE(MAX(e.revision), l.synchronized_revision),
		       COUNT(e.revision),
		       COUNT(CASE WHEN e.revision > l.synchronized_revision AND e.command IS NOT NULL THEN 1 END)
		FROM sync_logs l
		LEFT JOIN sync_log_entries e ON e.base_address = l.base_address
		GROUP BY l.base_address, l.synchronized_revision
		ORDER BY l.base_address COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	infos := []LogInfo{}
	for rows.Next() {
		var info LogInfo
		var base string
		if err := rows.Scan(&base, &info.SynchronizedRevision, &info.CurrentRevision, &info.Entries, &info.Pending); err != nil {
			return nil, fmt.Errorf("list logs: %w", err)
		}
		if info.BaseAddress, err = ir.ParseAddress(base); err != nil {
			return nil, fmt.Errorf("list logs: %w", err)
		}
		info.CurrentRevision = max(info.CurrentRevision, info.SynchronizedRevision)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	return infos, nil
}

// FindByHash returns the entries holding an atomic event with the given
// structural hash, ordered by base address then revision.
func (s *Store) FindByHash(ctx context.Context, hash string) ([]LocatedEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT e.base_address, e.revision, e.command, e.event
		FROM sync_event_hashes h
		JOIN sync_log_entries e ON e.base_address = h.base_address AND e.revision = h.revision
		WHERE h.hash = ?
		ORDER BY e.base_address COLLATE BINARY ASC, e.revision ASC
	`, hash)
	if err != nil {
		return nil, fmt.Errorf("find by hash: %w", err)
	}
	defer rows.Close()

	found, err := scanLocated(rows)
	if err != nil {
		return nil, fmt.Errorf("find by hash: %w", err)
	}
	return found, nil
}

// QueryEntries returns the stored entries selected by q, in log order.
func (s *Store) QueryEntries(ctx context.Context, q logquery.Query) ([]LocatedEntry, error) {
	stmt, params, err := logquery.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, stmt, params...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	found, err := scanLocated(rows)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	return found, nil
}

// scanLocated reads (base_address, revision, command, event) rows.
func scanLocated(rows *sql.Rows) ([]LocatedEntry, error) {
	found := []LocatedEntry{}
	for rows.Next() {
		var base string
		var rev int64
		var cmd sql.NullString
		var event string
		if err := rows.Scan(&base, &rev, &cmd, &event); err != nil {
			return nil, err
		}
		entry, err := decodeEntry(cmd, event)
		if err != nil {
			return nil, fmt.Errorf("entry %s@%d: %w", base, rev, err)
		}
		addr, err := ir.ParseAddress(base)
		if err != nil {
			return nil, err
		}
		found = append(found, LocatedEntry{BaseAddress: addr, Entry: entry})
	}
	return found, rows.Err()
}

func insertEntry(ctx context.Context, tx execer, base string, entry synclog.Entry) error {
	cmdJSON, err := marshalCommand(entry.Command)
	if err != nil {
		return err
	}
	eventJSON, err := marshalEvent(entry.Event)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sync_log_entries (base_address, revision, command, event)
		VALUES (?, ?, ?, ?)
	`, base, entry.Revision(), cmdJSON, eventJSON); err != nil {
		return fmt.Errorf("insert entry %d: %w", entry.Revision(), err)
	}
	return insertHashes(ctx, tx, base, entry.Event)
}

func insertHashes(ctx context.Context, tx execer, base string, ev ir.Event) error {
	for i, atom := range ev.Atomic() {
		hash, err := ir.StructuralHash(atom)
		if err != nil {
			return fmt.Errorf("hash entry %d: %w", ev.Revision, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sync_event_hashes (base_address, revision, position, hash)
			VALUES (?, ?, ?, ?)
		`, base, ev.Revision, i, hash); err != nil {
			return fmt.Errorf("insert hash %d/%d: %w", ev.Revision, i, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (int64, synclog.Entry, error) {
	var rev int64
	var cmd sql.NullString
	var event string
	if err := row.Scan(&rev, &cmd, &event); err != nil {
		return 0, synclog.Entry{}, fmt.Errorf("scan entry: %w", err)
	}
	entry, err := decodeEntry(cmd, event)
	if err != nil {
		return 0, synclog.Entry{}, fmt.Errorf("entry %d: %w", rev, err)
	}
	return rev, entry, nil
}

func decodeEntry(cmd sql.NullString, event string) (synclog.Entry, error) {
	ev, err := unmarshalEvent(event)
	if err != nil {
		return synclog.Entry{}, err
	}
	command, err := unmarshalCommand(cmd)
	if err != nil {
		return synclog.Entry{}, err
	}
	return synclog.Entry{Command: command, Event: ev}, nil
}
