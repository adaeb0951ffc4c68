package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/treesync/internal/compiler"
	"github.com/roach88/treesync/internal/engine"
	"github.com/roach88/treesync/internal/ir"
	"github.com/roach88/treesync/internal/root"
	"github.com/roach88/treesync/internal/store"
	"github.com/roach88/treesync/internal/synclog"
)

// RoundID is the fixed round ID used by every scenario run.
const RoundID = "round-1"

// tracer records replayer calls and status notifications in order.
type tracer struct {
	mu    sync.Mutex
	steps []TraceEvent
}

func (t *tracer) add(e TraceEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps = append(t.steps, e)
}

func (t *tracer) Rollback(_ context.Context, entry synclog.Entry) error {
	t.add(step(StepRollback, entry.Event))
	return nil
}

func (t *tracer) Replay(_ context.Context, ev ir.Event) error {
	t.add(step(StepReplay, ev))
	return nil
}

func (t *tracer) Notify(n root.Notification) {
	e := step(StepStatus, n.Event)
	e.Synchronized = n.Synchronized
	t.add(e)
}

func step(typ string, ev ir.Event) TraceEvent {
	return TraceEvent{
		Type:     typ,
		Revision: ev.Revision,
		Kind:     ev.Kind.String(),
		Changed:  ev.Changed.String(),
	}
}

// Run executes one synchronization round for the scenario.
//
// Each run uses a fresh in-memory store and a fixed round ID so that its
// trace is reproducible. The local log comes from the batch entries; the
// server history from the batch events. A round that fails with a runtime
// error is not a run error: its code is reported in Result.ErrorCode and
// checked by error assertions.
func Run(scenario *Scenario) (*Result, error) {
	doc, err := compileBatch(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to compile batch: %w", err)
	}
	log, err := doc.Log()
	if err != nil {
		return nil, fmt.Errorf("failed to build log: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.SaveLog(ctx, log); err != nil {
		return nil, fmt.Errorf("failed to save log: %w", err)
	}

	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	tr := &tracer{}
	r := root.New(log, root.WithLogger(discard))
	r.Bus().Register(log.BaseAddress(), root.CategorySyncStatus, tr)

	transport := engine.NewMemoryTransport()
	transport.Publish(log.BaseAddress(), doc.Events...)

	eng := engine.New(r, transport,
		engine.WithReplayer(tr),
		engine.WithStore(st),
		engine.WithIDGenerator(ir.NewFixedGenerator(RoundID)),
		engine.WithLogger(discard),
	)

	result := NewResult()
	report, err := eng.Synchronize(ctx)
	if err != nil {
		var rerr *engine.RuntimeError
		if !errors.As(err, &rerr) {
			return nil, fmt.Errorf("failed to synchronize: %w", err)
		}
		result.ErrorCode = string(rerr.Code)
	}
	result.Report = report
	result.Trace = append(result.Trace, tr.steps...)

	persisted, err := st.LoadLog(ctx, log.BaseAddress())
	if err != nil {
		return nil, fmt.Errorf("failed to reload log: %w", err)
	}
	for entry := range persisted.Entries() {
		result.Log = append(result.Log, LogLine{
			Revision: entry.Revision(),
			Kind:     entry.Event.Kind.String(),
			Changed:  entry.Event.Changed.String(),
			Local:    entry.IsLocal(),
		})
	}
	result.Pending = persisted.CountLocalChanges()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func compileBatch(s *Scenario) (*compiler.Document, error) {
	if s.BatchFile != "" {
		return compiler.CompileFile(s.BatchFile)
	}
	return compiler.CompileString(s.Name+".cue", s.Batch)
}
