package testutil

import "github.com/roach88/treesync/internal/ir"

// TestActor is the actor used by the builders below.
var TestActor = ir.Actor{ID: "tester"}

// SetValue builds an attribute value change at revision rev.
func SetValue(attr ir.Address, rev int64, v ir.IRValue) ir.Event {
	return ir.Event{
		Kind:        ir.KindChange,
		Actor:       TestActor.ID,
		Target:      attr,
		Changed:     attr,
		Revision:    rev,
		OldRevision: rev - 1,
		NewValue:    v,
	}
}

// AddEntry builds an event adding entry name to collection coll.
func AddEntry(coll ir.Address, name string, rev int64) ir.Event {
	return ir.Event{
		Kind:        ir.KindAdd,
		Actor:       TestActor.ID,
		Target:      coll,
		Changed:     ir.EntryAddress(coll.Repository, coll.Collection, name),
		Revision:    rev,
		OldRevision: rev - 1,
	}
}

// RemoveEntry builds an event removing entry from its collection.
func RemoveEntry(entry ir.Address, rev int64) ir.Event {
	parent, _ := entry.Parent()
	return ir.Event{
		Kind:        ir.KindRemove,
		Actor:       TestActor.ID,
		Target:      parent,
		Changed:     entry,
		Revision:    rev,
		OldRevision: rev - 1,
	}
}

// AddAttribute builds an event adding attribute name to entry.
func AddAttribute(entry ir.Address, name string, rev int64) ir.Event {
	return ir.Event{
		Kind:        ir.KindAdd,
		Actor:       TestActor.ID,
		Target:      entry,
		Changed:     ir.AttributeAddress(entry.Repository, entry.Collection, entry.Entry, name),
		Revision:    rev,
		OldRevision: rev - 1,
	}
}

// Transaction wraps atomic events into a transaction event at rev.
func Transaction(target ir.Address, rev int64, subs ...ir.Event) ir.Event {
	return ir.NewTransactionEvent(TestActor.ID, target, rev, rev-1, subs...)
}

// CommandFor derives the local command that would have produced ev.
func CommandFor(ev ir.Event) *ir.Command {
	if ev.Kind == ir.KindTransaction {
		members := make([]ir.Command, len(ev.Events))
		for i, sub := range ev.Events {
			members[i] = *CommandFor(sub)
		}
		cmd := ir.NewTransactionCommand(TestActor, ev.Target, members...)
		return &cmd
	}
	cmd := ir.NewCommand(TestActor, ev.Kind, ev.Changed,
		ir.WithSafeRevision(ev.OldRevision), ir.WithValue(ev.NewValue))
	return &cmd
}
