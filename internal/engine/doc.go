// Package engine drives synchronization rounds for a Root.
//
// A round brings the local log in line with the server's history:
//
//  1. Fetch the server events since the synchronized revision (Transport).
//  2. Reconcile them against the pending local changes.
//  3. Roll back every unconfirmed entry, newest first, and truncate the log
//     to the synchronized revision.
//  4. Replay the server events in order and log them. Events that confirm
//     a local change keep its command; the rest are playback.
//  5. Advance the synchronized revision, persist, and tell listeners which
//     local changes were confirmed and which were rejected.
//
// Local changes the server did not confirm are dropped from the log and
// reported as rejected. Retrying them is up to the caller.
//
// The engine holds the Root lock for the duration of a round and refuses
// to start while the Root is locked or a transaction is open. Nothing is
// retried internally. A failure after rollback is undone: replayed server
// events are rolled back, the local entries are replayed again and the log
// is reset to its state before the round, so pending local changes survive
// for the next round. If the Replayer itself fails while undoing, the tree
// must be reloaded; the persisted log is only written after a successful
// round.
package engine
