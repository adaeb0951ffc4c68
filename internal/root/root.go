package root

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/treesync/internal/ir"
	"github.com/roach88/treesync/internal/synclog"
)

var (
	// ErrTransactionInProgress is returned by BeginTransaction when a
	// transaction is already open. Transactions do not nest.
	ErrTransactionInProgress = errors.New("transaction already in progress")

	// ErrNoTransaction is returned by EndTransaction without a matching
	// BeginTransaction.
	ErrNoTransaction = errors.New("no transaction in progress")
)

// Root ties a sync log to its actor, its coordination flags and the
// notification bus of the tree it belongs to.
//
// A Root has a single logical owner: its methods are meant to be called
// from one mutator goroutine at a time. Only the EventBus is safe for
// concurrent use. The transaction and lock flags are advisory; they block
// nothing by themselves.
type Root struct {
	actor                 ir.Actor
	transactionInProgress bool
	locked                bool

	log    *synclog.Log
	bus    *EventBus
	ids    ir.IDGenerator
	logger *slog.Logger
}

// Option configures a Root.
type Option func(*Root)

// WithActor sets the initial actor.
func WithActor(a ir.Actor) Option {
	return func(r *Root) {
		r.actor = a
	}
}

// WithEventBus uses bus instead of a fresh one, e.g. to share listeners
// between roots.
func WithEventBus(bus *EventBus) Option {
	return func(r *Root) {
		r.bus = bus
	}
}

// WithIDGenerator sets the generator for command IDs.
// Default: ir.UUIDv7Generator.
func WithIDGenerator(g ir.IDGenerator) Option {
	return func(r *Root) {
		r.ids = g
	}
}

// WithLogger sets the logger. Default discards.
func WithLogger(l *slog.Logger) Option {
	return func(r *Root) {
		r.logger = l
	}
}

// New creates a Root around log.
func New(log *synclog.Log, opts ...Option) *Root {
	r := &Root{
		log:    log,
		bus:    NewEventBus(),
		ids:    ir.UUIDv7Generator{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Log returns the sync log.
func (r *Root) Log() *synclog.Log {
	return r.log
}

// Bus returns the notification bus.
func (r *Root) Bus() *EventBus {
	return r.bus
}

// Actor returns the identity attributed to new commands.
func (r *Root) Actor() ir.Actor {
	return r.actor
}

// SetActor changes the identity for future commands. Logged history keeps
// the actor it was recorded with.
func (r *Root) SetActor(a ir.Actor) {
	r.actor = a
}

// NewCommand builds a command on behalf of the current actor with a fresh
// ID.
func (r *Root) NewCommand(kind ir.ChangeKind, target ir.Address, opts ...ir.CommandOption) ir.Command {
	opts = append([]ir.CommandOption{ir.WithID(r.ids.Generate())}, opts...)
	return ir.NewCommand(r.actor, kind, target, opts...)
}

// NewTransactionCommand groups members into a transaction command on
// behalf of the current actor.
func (r *Root) NewTransactionCommand(target ir.Address, members ...ir.Command) ir.Command {
	cmd := ir.NewTransactionCommand(r.actor, target, members...)
	cmd.ID = r.ids.Generate()
	return cmd
}

// BeginTransaction marks the start of a multi-step command execution.
// Change notifications are held back until EndTransaction.
func (r *Root) BeginTransaction() error {
	if r.transactionInProgress {
		return ErrTransactionInProgress
	}
	r.transactionInProgress = true
	return nil
}

// EndTransaction clears the transaction flag, on completion or abort.
func (r *Root) EndTransaction() error {
	if !r.transactionInProgress {
		return ErrNoTransaction
	}
	r.transactionInProgress = false
	return nil
}

// IsTransactionInProgress reports whether a transaction is open.
func (r *Root) IsTransactionInProgress() bool {
	return r.transactionInProgress
}

// Lock sets the structural-mutation lock. Returns false if it was already
// set.
func (r *Root) Lock() bool {
	if r.locked {
		return false
	}
	r.locked = true
	return true
}

// Unlock clears the structural-mutation lock. Returns false if it was not
// set.
func (r *Root) Unlock() bool {
	if !r.locked {
		return false
	}
	r.locked = false
	return true
}

// IsLocked reports whether the structural-mutation lock is set.
func (r *Root) IsLocked() bool {
	return r.locked
}

// SynchronizedRevision delegates to the log.
func (r *Root) SynchronizedRevision() int64 {
	return r.log.SynchronizedRevision()
}

// CurrentRevision delegates to the log.
func (r *Root) CurrentRevision() int64 {
	return r.log.CurrentRevision()
}

// CountUnappliedLocalChanges returns the number of pending local changes.
func (r *Root) CountUnappliedLocalChanges() int {
	return r.log.CountLocalChanges()
}

// Record logs a change produced by cmd (nil for playback) and notifies
// listeners. Call it once per top-level change, once for a whole
// transaction.
func (r *Root) Record(cmd *ir.Command, ev ir.Event) error {
	entry, err := synclog.NewEntry(cmd, ev)
	if err != nil {
		return fmt.Errorf("record: %w", err)
	}
	if err := r.log.Append(entry); err != nil {
		return fmt.Errorf("record: %w", err)
	}

	r.logger.Debug("change recorded",
		"revision", ev.Revision,
		"kind", ev.Kind.String(),
		"changed", ev.Changed.String(),
		"local", entry.IsLocal(),
	)
	r.Fire(ev)
	return nil
}

// Fire notifies listeners of ev.
//
// While a transaction is in progress only transaction events are
// delivered. A transaction event is delivered under CategoryTransaction,
// followed by each of its sub-events under their own category.
func (r *Root) Fire(ev ir.Event) {
	if ev.IsTransaction() {
		r.bus.Dispatch(Notification{Category: CategoryTransaction, Event: ev})
		for _, sub := range ev.Events {
			r.dispatchChange(sub)
		}
		return
	}
	if r.transactionInProgress {
		r.logger.Debug("notification suppressed", "revision", ev.Revision, "changed", ev.Changed.String())
		return
	}
	r.dispatchChange(ev)
}

// FireSyncStatus tells listeners at ev's target whether the server
// confirmed (synchronized=true) or rejected ev.
func (r *Root) FireSyncStatus(ev ir.Event, synchronized bool) {
	r.bus.Dispatch(Notification{Category: CategorySyncStatus, Event: ev, Synchronized: synchronized})
}

func (r *Root) dispatchChange(ev ir.Event) {
	category := CategoryFor(ev)
	if category == 0 {
		return
	}
	r.bus.Dispatch(Notification{Category: category, Event: ev})
}
