package reconcile

import (
	"github.com/roach88/treesync/internal/ir"
	"github.com/roach88/treesync/internal/synclog"
)

// Pair links a server atomic event to the local entry it confirms.
// RemoteIndex is the position in the server batch of the event Remote was
// unpacked from.
type Pair struct {
	Remote      ir.Event
	RemoteIndex int
	Local       synclog.Entry
}

// Result partitions one reconciliation round.
//
// Every atomic server event appears in exactly one of Mapped or
// UnmappedRemote. Every pending local atomic event either contributed to a
// Mapped pair or caused its entry to appear in UnmappedLocal.
type Result struct {
	Mapped         []Pair
	UnmappedRemote []ir.Event
	UnmappedLocal  []synclog.Entry
}

// Summary holds the bucket sizes of a Result.
type Summary struct {
	Mapped         int `json:"mapped"`
	UnmappedRemote int `json:"unmapped_remote"`
	UnmappedLocal  int `json:"unmapped_local"`
}

// Summary returns the bucket sizes.
func (r *Result) Summary() Summary {
	return Summary{
		Mapped:         len(r.Mapped),
		UnmappedRemote: len(r.UnmappedRemote),
		UnmappedLocal:  len(r.UnmappedLocal),
	}
}

// IsClean reports whether every local change was confirmed and the server
// sent nothing else.
func (r *Result) IsClean() bool {
	return len(r.UnmappedRemote) == 0 && len(r.UnmappedLocal) == 0
}

// candidate is one unpacked local atomic event and the entry it came from.
type candidate struct {
	event   ir.Event
	origin  synclog.Entry
	matched bool
}

// Map reconciles the log's pending local changes against remote.
//
// Complexity is O(n·m) for n remote and m local atomic events; both are
// bounded by the changes since the last synchronization.
func Map(log *synclog.Log, remote []ir.Event) *Result {
	candidates := unpackLocal(log)
	result := &Result{
		Mapped:         []Pair{},
		UnmappedRemote: []ir.Event{},
		UnmappedLocal:  []synclog.Entry{},
	}

	for _, r := range unpackRemote(remote) {
		if c := firstMatch(candidates, r.event); c != nil {
			c.matched = true
			result.Mapped = append(result.Mapped, Pair{Remote: r.event, RemoteIndex: r.index, Local: c.origin})
			continue
		}
		result.UnmappedRemote = append(result.UnmappedRemote, r.event)
	}

	reported := make(map[int64]bool)
	for _, c := range candidates {
		rev := c.origin.Revision()
		if c.matched || reported[rev] {
			continue
		}
		reported[rev] = true
		result.UnmappedLocal = append(result.UnmappedLocal, c.origin)
	}

	return result
}

// StructurallyEqual reports whether two atomic events describe the same
// change: same kind, changed entity and target, and for attribute value
// changes the same new value (two absent values are equal). Revision,
// actor and force flag are ignored.
func StructurallyEqual(a, b ir.Event) bool {
	if a.Kind != b.Kind || a.Changed != b.Changed || a.Target != b.Target {
		return false
	}
	if a.Scope() == ir.ScopeAttribute {
		return ir.ValuesEqual(a.NewValue, b.NewValue)
	}
	return true
}

func firstMatch(candidates []candidate, ev ir.Event) *candidate {
	for i := range candidates {
		c := &candidates[i]
		if !c.matched && StructurallyEqual(c.event, ev) {
			return c
		}
	}
	return nil
}

func unpackLocal(log *synclog.Log) []candidate {
	var out []candidate
	for entry := range log.LocalChanges() {
		for _, atom := range entry.Event.Atomic() {
			out = append(out, candidate{event: atom, origin: entry})
		}
	}
	return out
}

type remoteAtom struct {
	event ir.Event
	index int
}

func unpackRemote(events []ir.Event) []remoteAtom {
	var out []remoteAtom
	for i, ev := range events {
		for _, atom := range ev.Atomic() {
			out = append(out, remoteAtom{event: atom, index: i})
		}
	}
	return out
}
