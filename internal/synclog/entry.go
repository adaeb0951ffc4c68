package synclog

import "github.com/roach88/treesync/internal/ir"

// Entry pairs a change event with the local command that produced it.
// Command is nil for playback entries (e.g. replayed server history).
type Entry struct {
	Command *ir.Command
	Event   ir.Event
}

// NewEntry creates an entry, rejecting an absent event.
func NewEntry(cmd *ir.Command, ev ir.Event) (Entry, error) {
	if ev.IsZero() {
		return Entry{}, newError(ErrCodeInvalidEntry, 0, "entry event is missing")
	}
	return Entry{Command: cmd, Event: ev}, nil
}

// Revision returns the revision the entry is logged under.
func (e Entry) Revision() int64 {
	return e.Event.Revision
}

// IsLocal reports whether the entry was produced by a local command.
func (e Entry) IsLocal() bool {
	return e.Command != nil
}
