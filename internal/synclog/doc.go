// Package synclog implements the synchronization log: an append-only,
// revision-indexed record of every change applied to a subtree, paired with
// the local command that caused it.
//
// # Revision Window
//
// Entries at or below the synchronized revision are confirmed history.
// Entries above it are unconfirmed local state awaiting reconciliation.
// Windowed reads never return confirmed history: the low-water mark is
// synchronized+1, the revision recorded by the first unconfirmed change.
//
// # Invariants
//
//   - Keys strictly increase with no gaps on append: a new entry's event
//     revision must equal CurrentRevision()+1
//   - SynchronizedRevision() <= CurrentRevision()
//   - Every logged event's changed entity lies within the base address
//   - Transaction sub-events are never logged on their own
//
// Holes (missing slots) can still appear through ClearLocalChanges or by
// restoring legacy snapshots. Reads skip them.
//
// Thread-safety: a Log has a single logical owner. It is not safe for
// concurrent mutation.
package synclog
