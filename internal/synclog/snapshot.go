package synclog

import (
	"maps"

	"github.com/roach88/treesync/internal/ir"
)

// Snapshot is the persisted shape of a log: base address, synchronized
// revision and the entries keyed by revision.
type Snapshot struct {
	BaseAddress          ir.Address
	SynchronizedRevision int64
	Entries              map[int64]Entry
}

// Snapshot returns a copy of the log's persisted state.
func (l *Log) Snapshot() Snapshot {
	return Snapshot{
		BaseAddress:          l.base,
		SynchronizedRevision: l.synchronized,
		Entries:              maps.Clone(l.entries),
	}
}

// Restore rebuilds a log from a snapshot, re-checking the invariants that
// do not depend on append order. Holes between keys are accepted.
func Restore(s Snapshot) (*Log, error) {
	l, err := New(s.BaseAddress, s.SynchronizedRevision)
	if err != nil {
		return nil, err
	}
	for rev, entry := range s.Entries {
		ev := entry.Event
		switch {
		case ev.IsZero():
			return nil, newError(ErrCodeInvalidEntry, rev, "entry %d has no event", rev)
		case ev.Revision != rev:
			return nil, newError(ErrCodeInvalidEntry, rev, "entry keyed %d carries event revision %d", rev, ev.Revision)
		case ev.InTransaction:
			return nil, newError(ErrCodeInvalidEntry, rev, "entry %d is a transaction member", rev)
		case !l.base.Contains(ev.Changed):
			return nil, newError(ErrCodeInvalidEntry, rev, "entry %d changes %s outside log base %s", rev, ev.Changed, l.base)
		}
		l.entries[rev] = entry
	}
	l.recomputeCurrent()
	return l, nil
}

// Reset replaces the log's state with s in place, so holders of the log
// see the restored entries. The snapshot is checked as by Restore; on
// error the log is left untouched.
func (l *Log) Reset(s Snapshot) error {
	restored, err := Restore(s)
	if err != nil {
		return err
	}
	*l = *restored
	return nil
}
