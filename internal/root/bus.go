package root

import (
	"slices"
	"sync"

	"github.com/roach88/treesync/internal/ir"
)

// Listener receives notifications. Implementations must be comparable:
// registration identity is interface equality.
type Listener interface {
	Notify(Notification)
}

type funcListener struct {
	fn func(Notification)
}

func (l *funcListener) Notify(n Notification) { l.fn(n) }

// NewListener wraps fn in a Listener. Each call returns a distinct
// listener, so keep the result to unregister it later.
func NewListener(fn func(Notification)) Listener {
	return &funcListener{fn: fn}
}

type subscription struct {
	addr     ir.Address
	category Category
}

// EventBus fans notifications out along the containment chain.
//
// Thread-safety: Register, Unregister, SetOuter and Dispatch are safe from
// any goroutine. Dispatch snapshots the listener set under the bus mutex
// and notifies outside it, so a listener may (un)register from inside
// Notify.
type EventBus struct {
	mu        sync.Mutex
	listeners map[subscription][]Listener
	outer     *EventBus
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{listeners: make(map[subscription][]Listener)}
}

// Register subscribes l to category notifications at addr.
// Returns false if l was already registered there.
func (b *EventBus) Register(addr ir.Address, category Category, l Listener) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := subscription{addr: addr, category: category}
	if slices.Contains(b.listeners[key], l) {
		return false
	}
	b.listeners[key] = append(b.listeners[key], l)
	return true
}

// Unregister removes l from category notifications at addr.
// Returns false if l was not registered there.
func (b *EventBus) Unregister(addr ir.Address, category Category, l Listener) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := subscription{addr: addr, category: category}
	ls := b.listeners[key]
	i := slices.Index(ls, l)
	if i < 0 {
		return false
	}
	ls = slices.Delete(slices.Clone(ls), i, i+1)
	if len(ls) == 0 {
		delete(b.listeners, key)
	} else {
		b.listeners[key] = ls
	}
	return true
}

// SetOuter links a repository-level bus that receives every notification
// after this bus. Pass nil to unlink.
func (b *EventBus) SetOuter(outer *EventBus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outer = outer
}

// Dispatch delivers n to the listeners registered for its category at the
// source address, then at each containing address up to the repository,
// then to the outer bus.
//
// The listener set is captured under the bus lock and notified outside it,
// so listeners may register or unregister from Notify. A listener
// unregistered while a fan-out is running can still receive that one
// notification.
func (b *EventBus) Dispatch(n Notification) {
	targets, outer := b.resolve(n)
	for _, l := range targets {
		l.Notify(n)
	}
	if outer != nil && outer != b {
		outer.Dispatch(n)
	}
}

// Len returns the number of registrations.
func (b *EventBus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, ls := range b.listeners {
		n += len(ls)
	}
	return n
}

func (b *EventBus) resolve(n Notification) ([]Listener, *EventBus) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var targets []Listener
	for _, addr := range n.Source().Chain() {
		targets = append(targets, b.listeners[subscription{addr: addr, category: n.Category}]...)
	}
	return targets, b.outer
}
