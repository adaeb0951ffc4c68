package synclog

import (
	"iter"
	"maps"
	"math"
	"slices"

	"github.com/roach88/treesync/internal/ir"
)

// RevisionNotExisting is the revision of an entity that has not been
// created yet. It is the lowest synchronized revision a log accepts.
const RevisionNotExisting int64 = -1

// Log is an ordered, revision-indexed store of entries plus a synchronized
// revision marker.
type Log struct {
	base         ir.Address
	synchronized int64
	current      int64
	entries      map[int64]Entry
}

// New creates an empty log for the subtree at base, anchored at the given
// synchronized revision (typically the revision at checkout time).
func New(base ir.Address, synchronized int64) (*Log, error) {
	if base.Level() == ir.LevelInvalid {
		return nil, newError(ErrCodeInvalidEntry, 0, "invalid base address %q", base)
	}
	if synchronized < RevisionNotExisting {
		return nil, newError(ErrCodeInvalidRange, synchronized, "synchronized revision %d below %d", synchronized, RevisionNotExisting)
	}
	return &Log{
		base:         base,
		synchronized: synchronized,
		current:      synchronized,
		entries:      make(map[int64]Entry),
	}, nil
}

// BaseAddress returns the address of the subtree the log covers.
func (l *Log) BaseAddress() ir.Address {
	return l.base
}

// SynchronizedRevision returns the highest revision confirmed by the server.
func (l *Log) SynchronizedRevision() int64 {
	return l.synchronized
}

// CurrentRevision returns the revision of the last logged entry, or the
// synchronized revision if the log holds nothing newer.
func (l *Log) CurrentRevision() int64 {
	return l.current
}

// Len returns the number of stored entries, confirmed history included.
func (l *Log) Len() int {
	return len(l.entries)
}

// Append adds entry at key entry.Event.Revision.
//
// Fails with ErrCodeInvalidEntry if the event is absent or malformed, lies
// outside the base address, is a transaction member, or does not carry
// revision CurrentRevision()+1.
func (l *Log) Append(entry Entry) error {
	ev := entry.Event
	if ev.IsZero() {
		return newError(ErrCodeInvalidEntry, 0, "entry event is missing")
	}
	if ev.InTransaction {
		return newError(ErrCodeInvalidEntry, ev.Revision, "transaction member events are not logged on their own")
	}
	if !l.base.Contains(ev.Changed) {
		return newError(ErrCodeInvalidEntry, ev.Revision, "changed entity %s is outside log base %s", ev.Changed, l.base)
	}
	if ev.Revision != l.current+1 {
		return newError(ErrCodeInvalidEntry, ev.Revision, "event revision %d, expected %d", ev.Revision, l.current+1)
	}
	if err := ev.Validate(); err != nil {
		return newError(ErrCodeInvalidEntry, ev.Revision, "malformed event: %v", err)
	}

	l.entries[ev.Revision] = entry
	l.current = ev.Revision
	return nil
}

// EntriesBetween returns the entries with revisions in
// [max(begin, synchronized+1), min(end, current+1)) in increasing order.
//
// Fails with ErrCodeInvalidRange if either bound is negative or
// begin > end. The returned sequence is lazy and restartable: each
// iteration reads the log as it is at that time, skipping holes.
func (l *Log) EntriesBetween(begin, end int64) (iter.Seq[Entry], error) {
	if begin < 0 || end < 0 {
		return nil, newError(ErrCodeInvalidRange, begin, "negative revision bound [%d, %d)", begin, end)
	}
	if begin > end {
		return nil, newError(ErrCodeInvalidRange, begin, "inverted revision range [%d, %d)", begin, end)
	}

	firstUnconfirmed := l.synchronized + 1
	begin = max(begin, firstUnconfirmed)
	if l.current < math.MaxInt64 {
		end = min(end, l.current+1)
	}
	if begin >= end || end <= firstUnconfirmed {
		return empty, nil
	}
	return l.window(begin, end), nil
}

// EntriesSince is EntriesBetween(rev, MaxInt64).
func (l *Log) EntriesSince(rev int64) (iter.Seq[Entry], error) {
	return l.EntriesBetween(rev, math.MaxInt64)
}

// EntriesUntil is EntriesBetween(0, rev).
func (l *Log) EntriesUntil(rev int64) (iter.Seq[Entry], error) {
	return l.EntriesBetween(0, rev)
}

// EntryAt returns the entry logged at rev.
//
// Fails with ErrCodeOutOfRange unless synchronized < rev <= current.
// A slot inside that window with no entry is reported as found=false
// rather than an error: legacy playback data may contain holes.
func (l *Log) EntryAt(rev int64) (entry Entry, found bool, err error) {
	if rev < 0 || rev <= l.synchronized || rev > l.current {
		return Entry{}, false, newError(ErrCodeOutOfRange, rev,
			"revision %d outside unconfirmed window (%d, %d]", rev, l.synchronized, l.current)
	}
	entry, found = l.entries[rev]
	return entry, found, nil
}

// LocalChanges returns the unconfirmed entries that carry a local command.
func (l *Log) LocalChanges() iter.Seq[Entry] {
	window := l.window(l.synchronized+1, l.current+1)
	return func(yield func(Entry) bool) {
		for entry := range window {
			if entry.IsLocal() && !yield(entry) {
				return
			}
		}
	}
}

// CountLocalChanges returns the number of entries LocalChanges yields.
func (l *Log) CountLocalChanges() int {
	n := 0
	for range l.LocalChanges() {
		n++
	}
	return n
}

// ClearLocalChanges removes every unconfirmed entry that carries a local
// command and returns how many were removed. Playback entries stay.
func (l *Log) ClearLocalChanges() int {
	var revs []int64
	for entry := range l.LocalChanges() {
		revs = append(revs, entry.Revision())
	}
	for _, rev := range revs {
		delete(l.entries, rev)
	}
	if len(revs) > 0 {
		l.recomputeCurrent()
	}
	return len(revs)
}

// TruncateToRevision removes every entry above rev.
// Returns false, leaving the log untouched, if rev > CurrentRevision() or
// rev < SynchronizedRevision().
//
// CurrentRevision afterwards is the last remaining key, which is below rev
// when rev itself is a hole.
func (l *Log) TruncateToRevision(rev int64) bool {
	if rev > l.current || rev < l.synchronized {
		return false
	}
	for r := range l.entries {
		if r > rev {
			delete(l.entries, r)
		}
	}
	l.recomputeCurrent()
	return true
}

// SetSynchronizedRevision re-anchors the log. Only allowed while the log
// is empty; otherwise fails with ErrCodeIllegalState.
func (l *Log) SetSynchronizedRevision(rev int64) error {
	if len(l.entries) > 0 {
		return newError(ErrCodeIllegalState, rev, "cannot re-anchor a log holding %d entries", len(l.entries))
	}
	if rev < RevisionNotExisting {
		return newError(ErrCodeInvalidRange, rev, "synchronized revision %d below %d", rev, RevisionNotExisting)
	}
	l.synchronized = rev
	l.current = rev
	return nil
}

// MarkSynchronized advances the synchronized marker after the entries up
// to rev have been confirmed by the server. Returns false if rev is below
// the current marker or above CurrentRevision().
func (l *Log) MarkSynchronized(rev int64) bool {
	if rev < l.synchronized || rev > l.current {
		return false
	}
	l.synchronized = rev
	return true
}

// Entries returns every stored entry, confirmed history included, in
// increasing revision order.
func (l *Log) Entries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, rev := range slices.Sorted(maps.Keys(l.entries)) {
			entry, ok := l.entries[rev]
			if !ok {
				continue
			}
			if !yield(entry) {
				return
			}
		}
	}
}

func (l *Log) window(begin, end int64) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for rev := begin; rev < end; rev++ {
			entry, ok := l.entries[rev]
			if !ok {
				continue
			}
			if !yield(entry) {
				return
			}
		}
	}
}

func (l *Log) recomputeCurrent() {
	current := l.synchronized
	for rev := range l.entries {
		current = max(current, rev)
	}
	l.current = current
}

func empty(func(Entry) bool) {}
