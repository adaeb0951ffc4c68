package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"github.com/hashicorp/go-multierror"

	"github.com/roach88/treesync/internal/ir"
	"github.com/roach88/treesync/internal/synclog"
)

// CompileEntry parses a log entry: {event: {...}, command?: {...}}.
//
// An entry without command is playback. The command struct may be empty;
// omitted fields are derived from the event:
//
//	{
//		id?:       string
//		actor?:    string, defaults to the event's actor
//		intent?:   "safe" | "forced", defaults to "safe"
//		revision?: int, defaults to the event's old revision
//		value?:    any, defaults to the event's new value
//	}
//
// A transaction command gets one member per sub-event.
func CompileEntry(v cue.Value) (synclog.Entry, error) {
	if err := v.Err(); err != nil {
		return synclog.Entry{}, formatCUEError(err)
	}
	evVal, ok := lookup(v, "event")
	if !ok {
		return synclog.Entry{}, &CompileError{Field: "event", Message: "event is required", Pos: v.Pos()}
	}
	ev, err := CompileEvent(evVal)
	if err != nil {
		return synclog.Entry{}, err
	}

	cmdVal, ok := lookup(v, "command")
	if !ok {
		return synclog.NewEntry(nil, ev)
	}
	cmd, err := compileCommand(cmdVal, ev)
	if err != nil {
		return synclog.Entry{}, err
	}
	return synclog.NewEntry(&cmd, ev)
}

// CompileEntries parses a CUE list of entries, collecting all failures.
func CompileEntries(v cue.Value) ([]synclog.Entry, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	items, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: "entries", Message: "expected list", Pos: v.Pos()}
	}

	var errs *multierror.Error
	entries := []synclog.Entry{}
	for i := 0; items.Next(); i++ {
		entry, err := CompileEntry(items.Value())
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("entries[%d]: %w", i, err))
			continue
		}
		entries = append(entries, entry)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return entries, nil
}

func compileCommand(v cue.Value, ev ir.Event) (ir.Command, error) {
	if err := v.Err(); err != nil {
		return ir.Command{}, formatCUEError(err)
	}

	id, err := optionalString(v, "id", "")
	if err != nil {
		return ir.Command{}, err
	}
	actorID, err := optionalString(v, "actor", ev.Actor)
	if err != nil {
		return ir.Command{}, err
	}
	intent, err := optionalString(v, "intent", "safe")
	if err != nil {
		return ir.Command{}, err
	}
	if intent != "safe" && intent != "forced" {
		f, _ := lookup(v, "intent")
		return ir.Command{}, &CompileError{Field: "intent", Message: fmt.Sprintf("unknown intent %q", intent), Pos: f.Pos()}
	}
	revision, err := optionalInt(v, "revision", ev.OldRevision)
	if err != nil {
		return ir.Command{}, err
	}
	value, err := optionalValue(v, "value")
	if err != nil {
		return ir.Command{}, err
	}
	if _, ok := lookup(v, "value"); !ok {
		value = ev.NewValue
	}

	actor := ir.Actor{ID: actorID}
	if ev.IsTransaction() {
		members := make([]ir.Command, len(ev.Events))
		for i, sub := range ev.Events {
			members[i] = atomicCommand(actor, intent, sub.OldRevision, sub.NewValue, sub)
		}
		cmd := ir.NewTransactionCommand(actor, ev.Target, members...)
		cmd.ID = id
		return cmd, nil
	}
	cmd := atomicCommand(actor, intent, revision, value, ev)
	cmd.ID = id
	return cmd, nil
}

func atomicCommand(actor ir.Actor, intent string, revision int64, value ir.IRValue, ev ir.Event) ir.Command {
	opts := []ir.CommandOption{ir.WithValue(value)}
	if intent == "safe" {
		opts = append(opts, ir.WithSafeRevision(revision))
	}
	return ir.NewCommand(actor, ev.Kind, ev.Changed, opts...)
}
