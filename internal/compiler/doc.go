// Package compiler turns CUE batch files into change events and sync log
// entries.
//
// A batch file describes either a server history (events) or a local log
// (base, synchronized_revision and entries), or both:
//
//	base: "acme/people"
//	synchronized_revision: 5
//
//	entries: [{
//		event: {kind: "change", target: "acme/people/alice/name", revision: 6, new_value: "Alice"}
//		command: {}
//	}]
//
//	events: [
//		{kind: "change", target: "acme/people/alice/name", revision: 6, new_value: "Alice", actor: "server"},
//	]
//
// Floats are rejected everywhere. Errors carry CUE source positions; a
// document reports all of its broken events and entries at once.
package compiler
