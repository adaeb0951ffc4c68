// Package harness runs synchronization scenarios against the real engine
// and checks their outcome.
//
// # Scenario Format
//
// Scenarios are YAML files. The batch is a CUE document (see package
// compiler) giving the local log and the server history:
//
//	name: confirm_and_reject
//	description: "One local change is confirmed, one is overwritten"
//	batch: |
//	  base: "acme/people"
//	  entries: [...]
//	  events: [...]
//	assertions:
//	  - type: summary
//	    expect: {mapped: 1, unmapped_remote: 1, unmapped_local: 1}
//	  - type: rejected
//	    revisions: [2]
//	  - type: trace_order
//	    steps: ["rollback 2", "rollback 1", "replay 1", "status 2 rejected"]
//
// # Assertion Types
//
//   - summary: bucket sizes of the reconciliation
//   - synchronized_revision: the log's synchronized revision after the round
//   - confirmed, rejected: local revisions reported by the round
//   - pending: local changes still unconfirmed in the persisted log
//   - trace_order: rollback, replay and status steps in the given order
//   - error: the round failed with the given runtime error code
//
// # Deterministic Runs
//
// Each run uses a fresh in-memory SQLite store, an in-memory transport and
// a fixed round ID, so a scenario always produces the same snapshot.
// RunWithGolden compares that snapshot against testdata/golden.
package harness
