package harness

import (
	"fmt"

	"github.com/roach88/treesync/internal/engine"
)

// Trace step types.
const (
	StepRollback = "rollback"
	StepReplay   = "replay"
	StepStatus   = "status"
)

// TraceEvent is one observable step of a round: a rollback or replay
// against the tree, or a sync-status notification.
type TraceEvent struct {
	Type     string `json:"type"`
	Revision int64  `json:"revision"`
	Kind     string `json:"kind"`
	Changed  string `json:"changed"`

	// Synchronized is only meaningful for status steps.
	Synchronized bool `json:"synchronized,omitempty"`
}

// Label renders the step the way trace_order assertions spell it:
// "rollback 3", "replay 2", "status 3 rejected".
func (e TraceEvent) Label() string {
	if e.Type != StepStatus {
		return fmt.Sprintf("%s %d", e.Type, e.Revision)
	}
	verdict := "rejected"
	if e.Synchronized {
		verdict = "confirmed"
	}
	return fmt.Sprintf("%s %d %s", e.Type, e.Revision, verdict)
}

// LogLine summarizes one entry of the persisted log after the round.
type LogLine struct {
	Revision int64  `json:"revision"`
	Kind     string `json:"kind"`
	Changed  string `json:"changed"`
	Local    bool   `json:"local"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Report is the round report, nil if the round failed.
	Report *engine.Report `json:"report,omitempty"`

	// ErrorCode is the code of the round's error, if it failed.
	ErrorCode string `json:"error_code,omitempty"`

	// Trace holds rollbacks, replays and status notifications in order.
	Trace []TraceEvent `json:"trace"`

	// Log is the log as reloaded from the store after the round.
	Log []LogLine `json:"log"`

	// Pending counts local changes still awaiting confirmation.
	Pending int `json:"pending"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Log:    []LogLine{},
		Errors: []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Labels returns the trace step labels in order.
func (r *Result) Labels() []string {
	labels := make([]string, len(r.Trace))
	for i, e := range r.Trace {
		labels[i] = e.Label()
	}
	return labels
}
