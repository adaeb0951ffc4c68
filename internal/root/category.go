package root

import "github.com/roach88/treesync/internal/ir"

// Category selects which notifications a listener receives.
type Category int

const (
	// CategoryAttributeChange is an attribute value change.
	CategoryAttributeChange Category = iota + 1
	// CategoryCollectionMemberChange is an entry added to or removed from a collection.
	CategoryCollectionMemberChange
	// CategoryEntryChange is an attribute added to or removed from an entry.
	CategoryEntryChange
	// CategoryContainerChange is a collection added to or removed from a repository.
	CategoryContainerChange
	// CategorySyncStatus reports that a logged change was confirmed or rejected.
	CategorySyncStatus
	// CategoryTransaction is a completed transaction.
	CategoryTransaction
)

var categoryNames = map[Category]string{
	CategoryAttributeChange:        "attribute-change",
	CategoryCollectionMemberChange: "collection-member-change",
	CategoryEntryChange:            "entry-change",
	CategoryContainerChange:        "container-change",
	CategorySyncStatus:             "sync-status",
	CategoryTransaction:            "transaction-change",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// CategoryFor returns the change category of ev, or 0 for an event with no
// valid scope.
func CategoryFor(ev ir.Event) Category {
	switch ev.Scope() {
	case ir.ScopeAttribute:
		return CategoryAttributeChange
	case ir.ScopeCollectionMember:
		return CategoryCollectionMemberChange
	case ir.ScopeEntry:
		return CategoryEntryChange
	case ir.ScopeContainer:
		return CategoryContainerChange
	case ir.ScopeTransaction:
		return CategoryTransaction
	default:
		return 0
	}
}

// Notification is what listeners receive.
type Notification struct {
	Category Category
	Event    ir.Event

	// Synchronized is set on CategorySyncStatus notifications: true when the
	// server confirmed Event, false when it rejected it.
	Synchronized bool
}

// Source returns the address dispatch starts from: the container the
// event changed.
func (n Notification) Source() ir.Address {
	return n.Event.Target
}
