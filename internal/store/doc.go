// Package store provides SQLite-backed durable storage for sync logs.
//
// Each log is stored in its persisted three-field shape:
//   - sync_logs: base address and synchronized revision
//   - sync_log_entries: one row per revision, command (NULL for playback)
//     and event as canonical JSON
//   - sync_event_hashes: structural hash of every atomic event, for lookup
//
// # Conventions
//
// Ordering uses revision numbers, never timestamps. Every multi-row query
// carries an explicit ORDER BY so results are identical across runs.
//
// Commands and events are written as RFC 8785 canonical JSON, so equal
// entries produce byte-identical rows.
//
// LoadLog rebuilds the log through synclog.Restore: invariants are
// re-checked on every load, and a corrupted row surfaces as an error
// instead of a malformed log.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Entries and hashes cascade with their log
package store
