// Package reconcile aligns a client's unconfirmed local history with a
// batch of server-confirmed events.
//
// Matching is structural, not by identity: revision numbers, actors and
// force flags necessarily differ between a speculative local event and its
// confirmed server counterpart. Two atomic events match when they have the
// same kind, changed entity and target, and, for attribute value changes
// only, the same new value.
//
// The reconciler is pure: it only reads the log. Callers act on the
// Result (replay remote events, discard or re-issue rejected commands,
// advance the synchronized revision).
//
// # Tie-break
//
// When several unmatched local candidates are structurally identical, the
// one logged first wins (increasing revision, then sub-event order inside a
// transaction). This is deterministic but otherwise arbitrary: no stronger
// notion of the "right" match exists beyond structural equality.
package reconcile
