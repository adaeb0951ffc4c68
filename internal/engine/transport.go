package engine

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/roach88/treesync/internal/ir"
	"github.com/roach88/treesync/internal/synclog"
)

// Transport fetches the server's confirmed history.
//
// FetchEvents returns the events of the subtree at base with revision
// greater than since, in revision order. Transaction events count as one
// revision. Timeouts and retries belong to the implementation.
type Transport interface {
	FetchEvents(ctx context.Context, base ir.Address, since int64) ([]ir.Event, error)
}

// Replayer applies server history to the local tree.
//
// Rollback undoes a logged entry and is called newest first. Replay applies
// a server event after rollback, in revision order.
type Replayer interface {
	Rollback(ctx context.Context, entry synclog.Entry) error
	Replay(ctx context.Context, ev ir.Event) error
}

// NopReplayer accepts every rollback and replay without touching a tree.
// Used when only the log is being synchronized, e.g. from the CLI.
type NopReplayer struct{}

func (NopReplayer) Rollback(context.Context, synclog.Entry) error { return nil }
func (NopReplayer) Replay(context.Context, ir.Event) error        { return nil }

// MemoryTransport serves server history held in memory.
// Safe for concurrent use.
type MemoryTransport struct {
	mu      sync.Mutex
	history map[ir.Address][]ir.Event
	err     error
	fetches int
}

// NewMemoryTransport creates a transport with no history.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{history: make(map[ir.Address][]ir.Event)}
}

// Publish appends events to the history of base.
func (t *MemoryTransport) Publish(base ir.Address, events ...ir.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history[base] = append(t.history[base], events...)
}

// FailWith makes every later fetch return err. Pass nil to recover.
func (t *MemoryTransport) FailWith(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}

// Fetches returns how many fetches were attempted.
func (t *MemoryTransport) Fetches() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fetches
}

// FetchEvents implements Transport.
func (t *MemoryTransport) FetchEvents(ctx context.Context, base ir.Address, since int64) ([]ir.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.fetches++
	if t.err != nil {
		return nil, t.err
	}
	events := []ir.Event{}
	for _, ev := range t.history[base] {
		if ev.Revision > since {
			events = append(events, ev)
		}
	}
	slices.SortStableFunc(events, func(a, b ir.Event) int {
		return cmp.Compare(a.Revision, b.Revision)
	})
	return events, nil
}
