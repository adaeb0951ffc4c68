package ir

import (
	"errors"
	"fmt"
)

// ChangeKind is the kind of mutation a change event or command describes.
type ChangeKind int

const (
	KindNone ChangeKind = iota
	KindAdd
	KindRemove
	KindChange
	KindTransaction
)

var changeKindNames = map[ChangeKind]string{
	KindAdd:         "add",
	KindRemove:      "remove",
	KindChange:      "change",
	KindTransaction: "transaction",
}

func (k ChangeKind) String() string {
	if name, ok := changeKindNames[k]; ok {
		return name
	}
	return "none"
}

// ParseChangeKind is the inverse of ChangeKind.String.
func ParseChangeKind(s string) (ChangeKind, error) {
	for k, name := range changeKindNames {
		if name == s {
			return k, nil
		}
	}
	return KindNone, fmt.Errorf("unknown change kind %q", s)
}

// Scope classifies an event by the level of the container it changed.
// Scopes double as listener categories for change notifications.
type Scope int

const (
	ScopeNone Scope = iota
	// ScopeContainer: collections added to or removed from a repository.
	ScopeContainer
	// ScopeCollectionMember: entries added to or removed from a collection.
	ScopeCollectionMember
	// ScopeEntry: attributes added to or removed from an entry.
	ScopeEntry
	// ScopeAttribute: attribute value changes.
	ScopeAttribute
	ScopeTransaction
)

func (s Scope) String() string {
	switch s {
	case ScopeContainer:
		return "container"
	case ScopeCollectionMember:
		return "collection-member"
	case ScopeEntry:
		return "entry"
	case ScopeAttribute:
		return "attribute"
	case ScopeTransaction:
		return "transaction"
	default:
		return "none"
	}
}

// Event is an already-applied change.
//
// Target is the container that changed and Changed the affected entity.
// For attribute value changes both are the attribute address. Revision is
// the revision assigned to the change, OldRevision the revision the target
// had before it.
//
// A transaction event (KindTransaction) holds its atomic sub-events in
// Events. Sub-events are marked InTransaction and are never logged on their
// own.
type Event struct {
	Kind          ChangeKind
	Actor         string
	Target        Address
	Changed       Address
	Revision      int64
	OldRevision   int64
	Forced        bool
	InTransaction bool

	// NewValue and OldValue are only meaningful for attribute changes.
	// nil means absent.
	NewValue IRValue
	OldValue IRValue

	Events []Event
}

// IsZero reports whether the event is absent.
func (e Event) IsZero() bool {
	return e.Kind == KindNone
}

// IsTransaction reports whether e is a composite event.
func (e Event) IsTransaction() bool {
	return e.Kind == KindTransaction
}

// Scope returns the event's notification scope.
func (e Event) Scope() Scope {
	if e.Kind == KindTransaction {
		return ScopeTransaction
	}
	switch e.Target.Level() {
	case LevelRepository:
		return ScopeContainer
	case LevelCollection:
		return ScopeCollectionMember
	case LevelEntry:
		return ScopeEntry
	case LevelAttribute:
		return ScopeAttribute
	default:
		return ScopeNone
	}
}

// Atomic flattens e into its atomic events, in order.
// A non-transaction event is its own single atomic event.
func (e Event) Atomic() []Event {
	if e.Kind != KindTransaction {
		return []Event{e}
	}
	out := make([]Event, len(e.Events))
	copy(out, e.Events)
	return out
}

// Validate checks that kind, addresses and sub-events are consistent.
func (e Event) Validate() error {
	if e.Kind == KindNone {
		return errors.New("event kind is missing")
	}
	if e.Kind == KindTransaction {
		if len(e.Events) == 0 {
			return errors.New("transaction event has no sub-events")
		}
		if e.Target.Level() == LevelInvalid {
			return fmt.Errorf("transaction target %q is invalid", e.Target)
		}
		for i, sub := range e.Events {
			if sub.Kind == KindTransaction {
				return fmt.Errorf("sub-event %d: nested transactions are not allowed", i)
			}
			if !sub.InTransaction {
				return fmt.Errorf("sub-event %d: not marked as part of a transaction", i)
			}
			if !e.Target.Contains(sub.Changed) {
				return fmt.Errorf("sub-event %d: %s is outside transaction target %s", i, sub.Changed, e.Target)
			}
			if err := sub.validateAtomic(); err != nil {
				return fmt.Errorf("sub-event %d: %w", i, err)
			}
		}
		return nil
	}
	if len(e.Events) > 0 {
		return fmt.Errorf("%s event must not carry sub-events", e.Kind)
	}
	return e.validateAtomic()
}

func (e Event) validateAtomic() error {
	target, changed := e.Target.Level(), e.Changed.Level()
	if target == LevelInvalid || changed == LevelInvalid {
		return fmt.Errorf("invalid address (target %q, changed %q)", e.Target, e.Changed)
	}
	switch e.Kind {
	case KindChange:
		if target != LevelAttribute || e.Target != e.Changed {
			return fmt.Errorf("change event must target the changed attribute, got target %s changed %s", e.Target, e.Changed)
		}
	case KindAdd, KindRemove:
		parent, ok := e.Changed.Parent()
		if target == LevelAttribute {
			// Attribute value added or removed.
			if e.Target != e.Changed {
				return fmt.Errorf("%s value event must target the changed attribute", e.Kind)
			}
			return nil
		}
		if !ok || parent != e.Target {
			return fmt.Errorf("%s event: %s is not a direct child of %s", e.Kind, e.Changed, e.Target)
		}
	default:
		return fmt.Errorf("unexpected kind %s", e.Kind)
	}
	return nil
}

// NewTransactionEvent builds a transaction event from atomic sub-events,
// marking each as part of the transaction.
func NewTransactionEvent(actor string, target Address, revision, oldRevision int64, subs ...Event) Event {
	events := make([]Event, len(subs))
	for i, sub := range subs {
		sub.InTransaction = true
		events[i] = sub
	}
	return Event{
		Kind:        KindTransaction,
		Actor:       actor,
		Target:      target,
		Changed:     target,
		Revision:    revision,
		OldRevision: oldRevision,
		Events:      events,
	}
}

// ToIR converts the event to its persisted object form.
func (e Event) ToIR() IRObject {
	obj := IRObject{
		"kind":         IRString(e.Kind.String()),
		"target":       IRString(e.Target.String()),
		"changed":      IRString(e.Changed.String()),
		"revision":     IRInt(e.Revision),
		"old_revision": IRInt(e.OldRevision),
	}
	if e.Actor != "" {
		obj["actor"] = IRString(e.Actor)
	}
	if e.Forced {
		obj["forced"] = IRBool(true)
	}
	if e.InTransaction {
		obj["in_transaction"] = IRBool(true)
	}
	if !IsAbsent(e.NewValue) {
		obj["new_value"] = e.NewValue
	}
	if !IsAbsent(e.OldValue) {
		obj["old_value"] = e.OldValue
	}
	if e.Kind == KindTransaction {
		subs := make(IRArray, len(e.Events))
		for i, sub := range e.Events {
			subs[i] = sub.ToIR()
		}
		obj["events"] = subs
	}
	return obj
}

// EventFromIR parses the object form produced by ToIR.
func EventFromIR(obj IRObject) (Event, error) {
	var e Event
	var err error

	kind, err := stringField(obj, "kind", true)
	if err != nil {
		return Event{}, err
	}
	if e.Kind, err = ParseChangeKind(kind); err != nil {
		return Event{}, err
	}
	if e.Target, err = addressField(obj, "target"); err != nil {
		return Event{}, err
	}
	if e.Changed, err = addressField(obj, "changed"); err != nil {
		return Event{}, err
	}
	if e.Revision, err = intField(obj, "revision"); err != nil {
		return Event{}, err
	}
	if e.OldRevision, err = intField(obj, "old_revision"); err != nil {
		return Event{}, err
	}
	if e.Actor, err = stringField(obj, "actor", false); err != nil {
		return Event{}, err
	}
	if e.Forced, err = boolField(obj, "forced"); err != nil {
		return Event{}, err
	}
	if e.InTransaction, err = boolField(obj, "in_transaction"); err != nil {
		return Event{}, err
	}
	if v, ok := obj["new_value"]; ok && !IsAbsent(v) {
		e.NewValue = v
	}
	if v, ok := obj["old_value"]; ok && !IsAbsent(v) {
		e.OldValue = v
	}
	if raw, ok := obj["events"]; ok {
		subs, isArr := raw.(IRArray)
		if !isArr {
			return Event{}, fmt.Errorf("field %q: expected array, got %T", "events", raw)
		}
		for i, s := range subs {
			subObj, isObj := s.(IRObject)
			if !isObj {
				return Event{}, fmt.Errorf("events[%d]: expected object, got %T", i, s)
			}
			sub, err := EventFromIR(subObj)
			if err != nil {
				return Event{}, fmt.Errorf("events[%d]: %w", i, err)
			}
			e.Events = append(e.Events, sub)
		}
	}
	return e, nil
}

func stringField(obj IRObject, key string, required bool) (string, error) {
	v, ok := obj[key]
	if !ok || IsAbsent(v) {
		if required {
			return "", fmt.Errorf("field %q is required", key)
		}
		return "", nil
	}
	s, isStr := v.(IRString)
	if !isStr {
		return "", fmt.Errorf("field %q: expected string, got %T", key, v)
	}
	return string(s), nil
}

func intField(obj IRObject, key string) (int64, error) {
	v, ok := obj[key]
	if !ok || IsAbsent(v) {
		return 0, nil
	}
	n, isInt := v.(IRInt)
	if !isInt {
		return 0, fmt.Errorf("field %q: expected int, got %T", key, v)
	}
	return int64(n), nil
}

func boolField(obj IRObject, key string) (bool, error) {
	v, ok := obj[key]
	if !ok || IsAbsent(v) {
		return false, nil
	}
	b, isBool := v.(IRBool)
	if !isBool {
		return false, fmt.Errorf("field %q: expected bool, got %T", key, v)
	}
	return bool(b), nil
}

func addressField(obj IRObject, key string) (Address, error) {
	s, err := stringField(obj, key, true)
	if err != nil {
		return Address{}, err
	}
	a, err := ParseAddress(s)
	if err != nil {
		return Address{}, fmt.Errorf("field %q: %w", key, err)
	}
	return a, nil
}
