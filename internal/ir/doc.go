// Package ir provides the shared data model for treesync.
//
// This package contains addresses, attribute values, change events and
// commands. All other internal packages import ir; ir imports nothing
// internal.
//
// Key design constraints:
//   - NO float values anywhere - use int64 for numbers
//   - Events and commands persist as RFC 8785 canonical JSON (ToIR/FromIR)
//   - Revisions are logical counters, never wall-clock timestamps
//   - A transaction event is logged once; its atomic sub-events are never
//     logged on their own
package ir
