// Package root implements the orchestrator that owns a sync log.
//
// A Root records locally applied changes in its log, carries the actor
// identity for new commands and the advisory transaction and lock flags,
// and fans change notifications out to listeners through an EventBus.
//
// Listeners register per (address, category). Dispatch starts at the
// address of the changed container and walks up the containment chain:
//
//	attribute -> entry -> collection -> repository -> outer bus
//
// so an attribute value change reaches listeners on the attribute, then on
// its entry, then on its collection.
package root
