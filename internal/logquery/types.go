package logquery

import "github.com/roach88/treesync/internal/ir"

// Query selects stored log entries.
type Query struct {
	// Base restricts the query to one log. Zero means every log.
	Base ir.Address

	// Filter narrows the entries. Nil keeps all of them.
	Filter Filter

	// Limit caps the number of entries returned. Zero means no limit.
	Limit int
}

// Filter is a condition on a stored entry.
//
// This is a sealed interface; only types in this package implement it, so
// the compiler can switch over every case.
type Filter interface {
	filterNode()
}

// KindIs keeps entries whose top-level event has the given kind.
type KindIs struct {
	Kind ir.ChangeKind
}

func (KindIs) filterNode() {}

// Under keeps entries whose top-level event changed Address or one of its
// descendants.
type Under struct {
	Address ir.Address
}

func (Under) filterNode() {}

// Origin keeps local changes (Local true) or playback entries.
type Origin struct {
	Local bool
}

func (Origin) filterNode() {}

// Revisions keeps entries with From <= revision <= To. A zero bound is
// open.
type Revisions struct {
	From int64
	To   int64
}

func (Revisions) filterNode() {}

// Unconfirmed keeps entries above their log's synchronized revision.
type Unconfirmed struct{}

func (Unconfirmed) filterNode() {}

// And keeps entries matching every filter. Empty keeps all entries.
type And struct {
	Filters []Filter
}

func (And) filterNode() {}
