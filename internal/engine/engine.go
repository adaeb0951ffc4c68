package engine

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/treesync/internal/ir"
	"github.com/roach88/treesync/internal/reconcile"
	"github.com/roach88/treesync/internal/root"
	"github.com/roach88/treesync/internal/store"
	"github.com/roach88/treesync/internal/synclog"
)

// Engine runs synchronization rounds for one Root.
//
// Thread-safety model: an Engine shares the single-owner model of its Root.
// Synchronize must not run concurrently with other mutations of the Root.
type Engine struct {
	root      *root.Root
	transport Transport
	replayer  Replayer
	store     *store.Store
	ids       ir.IDGenerator
	logger    *slog.Logger
	metrics   *Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithReplayer sets the tree replayer. Default: NopReplayer.
func WithReplayer(r Replayer) Option {
	return func(e *Engine) {
		e.replayer = r
	}
}

// WithStore persists the log after every successful round.
func WithStore(s *store.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithIDGenerator sets the generator for round IDs.
// Default: ir.UUIDv7Generator.
func WithIDGenerator(g ir.IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithLogger sets the logger. Default discards.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMetrics sets the round metrics. Default: unregistered metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an Engine synchronizing r through t.
func New(r *root.Root, t Transport, opts ...Option) *Engine {
	e := &Engine{
		root:      r,
		transport: t,
		replayer:  NopReplayer{},
		ids:       ir.UUIDv7Generator{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}
	return e
}

// Report describes a completed round.
type Report struct {
	RoundID              string            `json:"round_id"`
	BaseAddress          string            `json:"base_address"`
	PreviousRevision     int64             `json:"previous_revision"`
	SynchronizedRevision int64             `json:"synchronized_revision"`
	Summary              reconcile.Summary `json:"summary"`
	RolledBack           int               `json:"rolled_back"`
	Replayed             int               `json:"replayed"`

	// Confirmed and Rejected list the revisions local changes had before
	// the round. A change is confirmed only if every one of its atomic
	// events was matched.
	Confirmed []int64 `json:"confirmed"`
	Rejected  []int64 `json:"rejected"`
}

// Synchronize runs one round. On error the returned report is nil.
func (e *Engine) Synchronize(ctx context.Context) (*Report, error) {
	start := time.Now()
	roundID := e.ids.Generate()

	report, err := e.synchronize(ctx, roundID)
	switch {
	case err == nil:
		e.metrics.observeRound(outcomeSynchronized, time.Since(start).Seconds())
	case IsLocked(err):
		e.metrics.observeRound(outcomeRefused, 0)
	default:
		e.metrics.observeRound(outcomeFailed, 0)
		e.logger.Error("synchronization round failed", "round", roundID, "error", err)
	}
	return report, err
}

func (e *Engine) synchronize(ctx context.Context, roundID string) (*Report, error) {
	r := e.root
	if r.IsTransactionInProgress() {
		return nil, newRuntimeError(ErrCodeLocked, roundID, 0, nil, "transaction in progress")
	}
	if !r.Lock() {
		return nil, newRuntimeError(ErrCodeLocked, roundID, 0, nil, "root is locked")
	}
	defer r.Unlock()

	log := r.Log()
	base := log.BaseAddress()
	previous := log.SynchronizedRevision()
	logger := e.logger.With("round", roundID, "base", base.String())

	remote, err := e.transport.FetchEvents(ctx, base, previous)
	if err != nil {
		return nil, newRuntimeError(ErrCodeTransportFailed, roundID, 0, err, "fetch events since %d", previous)
	}
	if err := checkRemote(remote, base, previous, roundID); err != nil {
		return nil, err
	}
	logger.Debug("fetched server events", "since", previous, "count", len(remote))

	result := reconcile.Map(log, remote)
	summary := result.Summary()
	e.metrics.observeMapping(summary.Mapped, summary.UnmappedRemote, summary.UnmappedLocal)

	report := &Report{
		RoundID:          roundID,
		BaseAddress:      base.String(),
		PreviousRevision: previous,
		Summary:          summary,
		Confirmed:        []int64{},
		Rejected:         []int64{},
	}
	rejected := make(map[int64]bool, len(result.UnmappedLocal))
	for _, entry := range result.UnmappedLocal {
		rejected[entry.Revision()] = true
		report.Rejected = append(report.Rejected, entry.Revision())
	}
	for _, pair := range result.Mapped {
		rev := pair.Local.Revision()
		if !rejected[rev] && !slices.Contains(report.Confirmed, rev) {
			report.Confirmed = append(report.Confirmed, rev)
		}
	}

	// Undo everything above the synchronized line, newest first. From here
	// on a failure hands the round to abort, which puts the tree and the
	// log back as they were.
	window, err := log.EntriesSince(previous + 1)
	if err != nil {
		return nil, newRuntimeError(ErrCodeReplayFailed, roundID, previous, err, "read unconfirmed entries")
	}
	unconfirmed := slices.Collect(window)
	rb := &rollback{saved: log.Snapshot()}
	for _, entry := range slices.Backward(unconfirmed) {
		if err := e.replayer.Rollback(ctx, entry); err != nil {
			return nil, e.abort(ctx, rb, logger, newRuntimeError(ErrCodeReplayFailed, roundID, entry.Revision(), err, "roll back revision %d", entry.Revision()))
		}
		rb.undone = append(rb.undone, entry)
		report.RolledBack++
	}
	if !log.TruncateToRevision(previous) {
		return nil, e.abort(ctx, rb, logger, newRuntimeError(ErrCodeReplayFailed, roundID, previous, nil, "truncate log to %d", previous))
	}

	commands := confirmedCommands(remote, result, rejected)
	for i, ev := range remote {
		if err := e.replayer.Replay(ctx, ev); err != nil {
			return nil, e.abort(ctx, rb, logger, newRuntimeError(ErrCodeReplayFailed, roundID, ev.Revision, err, "replay revision %d", ev.Revision))
		}
		rb.applied = append(rb.applied, synclog.Entry{Command: commands[i], Event: ev})
		if err := r.Record(commands[i], ev); err != nil {
			return nil, e.abort(ctx, rb, logger, newRuntimeError(ErrCodeInvalidRemote, roundID, ev.Revision, err, "log revision %d", ev.Revision))
		}
		report.Replayed++
	}
	log.MarkSynchronized(log.CurrentRevision())
	report.SynchronizedRevision = log.SynchronizedRevision()

	if e.store != nil {
		if err := e.store.SaveLog(ctx, log); err != nil {
			return nil, e.abort(ctx, rb, logger, newRuntimeError(ErrCodePersistFailed, roundID, report.SynchronizedRevision, err, "save log"))
		}
	}

	e.notify(result, rejected)

	if len(report.Rejected) > 0 {
		logger.Warn("local changes rejected by server", "revisions", report.Rejected)
	}
	logger.Info("synchronization round complete",
		"previous_revision", previous,
		"synchronized_revision", report.SynchronizedRevision,
		"mapped", summary.Mapped,
		"unmapped_remote", summary.UnmappedRemote,
		"unmapped_local", summary.UnmappedLocal,
	)
	return report, nil
}

// rollback records what a round has done to the tree so a failed round
// can be undone.
type rollback struct {
	saved   synclog.Snapshot
	undone  []synclog.Entry
	applied []synclog.Entry
}

// abort undoes a failed round: server events already replayed are rolled
// back newest first, the rolled-back local entries are replayed oldest
// first, and the log is reset to its state before the round. Local changes
// therefore stay pending and no sync status is fired. If the replayer
// fails while undoing, the tree no longer matches the log and must be
// reloaded; the log itself is reset regardless. Returns cause.
func (e *Engine) abort(ctx context.Context, rb *rollback, logger *slog.Logger, cause *RuntimeError) error {
	for _, entry := range slices.Backward(rb.applied) {
		if err := e.replayer.Rollback(ctx, entry); err != nil {
			logger.Error("undo of failed round incomplete, reload the tree", "revision", entry.Revision(), "error", err)
		}
	}
	for _, entry := range slices.Backward(rb.undone) {
		if err := e.replayer.Replay(ctx, entry.Event); err != nil {
			logger.Error("undo of failed round incomplete, reload the tree", "revision", entry.Revision(), "error", err)
		}
	}
	if err := e.root.Log().Reset(rb.saved); err != nil {
		logger.Error("restore log after failed round", "error", err)
	}
	logger.Warn("synchronization round undone", "code", string(cause.Code), "rolled_back", len(rb.undone), "replayed", len(rb.applied))
	return cause
}

// notify fires one sync-status notification per local change: confirmed
// if all its atomic events were matched, rejected otherwise.
func (e *Engine) notify(result *reconcile.Result, rejected map[int64]bool) {
	seen := make(map[int64]bool)
	for _, pair := range result.Mapped {
		rev := pair.Local.Revision()
		if rejected[rev] || seen[rev] {
			continue
		}
		seen[rev] = true
		e.root.FireSyncStatus(pair.Local.Event, true)
	}
	for _, entry := range result.UnmappedLocal {
		e.root.FireSyncStatus(entry.Event, false)
	}
}

// checkRemote verifies the server batch continues the log: revisions
// previous+1, previous+2, ... and every event well formed inside base.
func checkRemote(remote []ir.Event, base ir.Address, previous int64, roundID string) error {
	for i, ev := range remote {
		want := previous + int64(i) + 1
		if ev.Revision != want {
			return newRuntimeError(ErrCodeRemoteGap, roundID, ev.Revision, nil,
				"server event %d has revision %d, expected %d", i, ev.Revision, want)
		}
		if ev.InTransaction {
			return newRuntimeError(ErrCodeInvalidRemote, roundID, ev.Revision, nil,
				"revision %d is a bare transaction member", ev.Revision)
		}
		if !base.Contains(ev.Changed) {
			return newRuntimeError(ErrCodeInvalidRemote, roundID, ev.Revision, nil,
				"revision %d changes %s outside %s", ev.Revision, ev.Changed, base)
		}
		if err := ev.Validate(); err != nil {
			return newRuntimeError(ErrCodeInvalidRemote, roundID, ev.Revision, err, "revision %d is malformed", ev.Revision)
		}
	}
	return nil
}

// confirmedCommands returns, per server event, the local command it
// confirms, or nil for playback. A server event takes over a local command
// only if its atomic events match that local change one to one.
func confirmedCommands(remote []ir.Event, result *reconcile.Result, rejected map[int64]bool) []*ir.Command {
	matched := make([][]synclog.Entry, len(remote))
	for _, pair := range result.Mapped {
		matched[pair.RemoteIndex] = append(matched[pair.RemoteIndex], pair.Local)
	}

	commands := make([]*ir.Command, len(remote))
	for i, ev := range remote {
		locals := matched[i]
		if len(locals) == 0 || len(locals) != len(ev.Atomic()) {
			continue
		}
		origin := locals[0]
		if rejected[origin.Revision()] || len(origin.Event.Atomic()) != len(locals) {
			continue
		}
		same := true
		for _, l := range locals[1:] {
			if l.Revision() != origin.Revision() {
				same = false
				break
			}
		}
		if same {
			commands[i] = origin.Command
		}
	}
	return commands
}
