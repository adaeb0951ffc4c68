package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/treesync/internal/ir"
)

// Snapshot renders a result as canonical JSON for golden comparison.
// The round ID is left out; everything else in the report is kept.
func Snapshot(name string, result *Result) ([]byte, error) {
	trace := make([]any, len(result.Trace))
	for i, e := range result.Trace {
		m := map[string]any{
			"type":     e.Type,
			"revision": e.Revision,
			"kind":     e.Kind,
			"changed":  e.Changed,
		}
		if e.Type == StepStatus {
			m["synchronized"] = e.Synchronized
		}
		trace[i] = m
	}

	log := make([]any, len(result.Log))
	for i, l := range result.Log {
		log[i] = map[string]any{
			"revision": l.Revision,
			"kind":     l.Kind,
			"changed":  l.Changed,
			"local":    l.Local,
		}
	}

	snapshot := map[string]any{
		"scenario_name": name,
		"trace":         trace,
		"log":           log,
		"pending":       result.Pending,
	}
	if result.ErrorCode != "" {
		snapshot["error_code"] = result.ErrorCode
	}
	if r := result.Report; r != nil {
		snapshot["report"] = map[string]any{
			"base_address":          r.BaseAddress,
			"previous_revision":     r.PreviousRevision,
			"synchronized_revision": r.SynchronizedRevision,
			"summary": map[string]any{
				"mapped":          r.Summary.Mapped,
				"unmapped_remote": r.Summary.UnmappedRemote,
				"unmapped_local":  r.Summary.UnmappedLocal,
			},
			"rolled_back": r.RolledBack,
			"replayed":    r.Replayed,
			"confirmed":   revisionList(r.Confirmed),
			"rejected":    revisionList(r.Rejected),
		}
	}
	return ir.MarshalCanonical(snapshot)
}

func revisionList(revs []int64) []any {
	out := make([]any, len(revs))
	for i, r := range revs {
		out[i] = r
	}
	return out
}

// RunWithGolden runs a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
