package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"github.com/hashicorp/go-multierror"

	"github.com/roach88/treesync/internal/ir"
)

// CompileEvent parses a CUE struct into a change event:
//
//	{
//		kind:          "add" | "remove" | "change" | "transaction"
//		target:        "repo/collection/entry/attribute"
//		changed?:      address, defaults to target
//		revision:      int
//		old_revision?: int, defaults to revision-1
//		actor?:        string
//		forced?:       bool
//		new_value?:    any concrete value except floats
//		old_value?:    same
//		events?:       [...] sub-events of a transaction
//	}
//
// Sub-events of a transaction inherit its revision, old revision and actor
// unless they set their own. The result is validated.
func CompileEvent(v cue.Value) (ir.Event, error) {
	ev, err := compileEvent(v, nil)
	if err != nil {
		return ir.Event{}, err
	}
	if err := ev.Validate(); err != nil {
		return ir.Event{}, &CompileError{Field: "event", Message: err.Error(), Pos: v.Pos()}
	}
	return ev, nil
}

// CompileEvents parses a CUE list of events. Every element is compiled;
// all failures are returned together.
func CompileEvents(v cue.Value) ([]ir.Event, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	items, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: "events", Message: "expected list", Pos: v.Pos()}
	}

	var errs *multierror.Error
	events := []ir.Event{}
	for i := 0; items.Next(); i++ {
		ev, err := CompileEvent(items.Value())
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("events[%d]: %w", i, err))
			continue
		}
		events = append(events, ev)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return events, nil
}

func compileEvent(v cue.Value, parent *ir.Event) (ir.Event, error) {
	if err := v.Err(); err != nil {
		return ir.Event{}, formatCUEError(err)
	}

	var ev ir.Event
	kind, err := requiredString(v, "kind")
	if err != nil {
		return ir.Event{}, err
	}
	if ev.Kind, err = ir.ParseChangeKind(kind); err != nil {
		return ir.Event{}, &CompileError{Field: "kind", Message: err.Error(), Pos: v.Pos()}
	}
	if ev.Target, err = requiredAddress(v, "target"); err != nil {
		return ir.Event{}, err
	}
	ev.Changed = ev.Target
	if f, ok := lookup(v, "changed"); ok {
		if ev.Changed, err = addressValue("changed", f); err != nil {
			return ir.Event{}, err
		}
	}

	if parent != nil {
		ev.Revision, ev.OldRevision, ev.Actor = parent.Revision, parent.OldRevision, parent.Actor
		ev.InTransaction = true
	}
	if ev.Revision, err = optionalInt(v, "revision", ev.Revision); err != nil {
		return ir.Event{}, err
	}
	if parent == nil {
		if _, ok := lookup(v, "revision"); !ok {
			return ir.Event{}, &CompileError{Field: "revision", Message: "revision is required", Pos: v.Pos()}
		}
		ev.OldRevision = ev.Revision - 1
	}
	if ev.OldRevision, err = optionalInt(v, "old_revision", ev.OldRevision); err != nil {
		return ir.Event{}, err
	}
	if ev.Actor, err = optionalString(v, "actor", ev.Actor); err != nil {
		return ir.Event{}, err
	}
	if ev.Forced, err = optionalBool(v, "forced"); err != nil {
		return ir.Event{}, err
	}
	if ev.NewValue, err = optionalValue(v, "new_value"); err != nil {
		return ir.Event{}, err
	}
	if ev.OldValue, err = optionalValue(v, "old_value"); err != nil {
		return ir.Event{}, err
	}

	subs, hasSubs := lookup(v, "events")
	if ev.Kind != ir.KindTransaction {
		if hasSubs {
			return ir.Event{}, &CompileError{Field: "events", Message: "only transaction events have sub-events", Pos: subs.Pos()}
		}
		return ev, nil
	}
	if parent != nil {
		return ir.Event{}, &CompileError{Field: "kind", Message: "transactions do not nest", Pos: v.Pos()}
	}
	if !hasSubs {
		return ir.Event{}, &CompileError{Field: "events", Message: "transaction needs sub-events", Pos: v.Pos()}
	}
	items, err := subs.List()
	if err != nil {
		return ir.Event{}, &CompileError{Field: "events", Message: "expected list", Pos: subs.Pos()}
	}
	var members []ir.Event
	for items.Next() {
		sub, err := compileEvent(items.Value(), &ev)
		if err != nil {
			return ir.Event{}, err
		}
		members = append(members, sub)
	}
	tx := ir.NewTransactionEvent(ev.Actor, ev.Target, ev.Revision, ev.OldRevision, members...)
	tx.Forced = ev.Forced
	return tx, nil
}
