package harness

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// EvaluateAssertions checks every assertion against result and returns one
// message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertError:
		return assertError(result, a.Code)
	case AssertPending:
		if result.Pending != a.Count {
			return fmt.Errorf("expected %d pending local changes, got %d", a.Count, result.Pending)
		}
		return nil
	case AssertTraceOrder:
		return assertTraceOrder(result.Labels(), a.Steps)
	}

	if result.Report == nil {
		return fmt.Errorf("round failed with %s", result.ErrorCode)
	}
	report := result.Report
	switch a.Type {
	case AssertSummary:
		return assertSummary(result, a.Expect)
	case AssertSynchronizedRevision:
		if report.SynchronizedRevision != a.Revision {
			return fmt.Errorf("expected synchronized revision %d, got %d", a.Revision, report.SynchronizedRevision)
		}
	case AssertConfirmed:
		if !slices.Equal(report.Confirmed, a.Revisions) && len(report.Confirmed)+len(a.Revisions) > 0 {
			return fmt.Errorf("expected confirmed %v, got %v", a.Revisions, report.Confirmed)
		}
	case AssertRejected:
		if !slices.Equal(report.Rejected, a.Revisions) && len(report.Rejected)+len(a.Revisions) > 0 {
			return fmt.Errorf("expected rejected %v, got %v", a.Revisions, report.Rejected)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func assertError(result *Result, code string) error {
	if result.ErrorCode == "" {
		return fmt.Errorf("expected round to fail with %s, but it succeeded", code)
	}
	if result.ErrorCode != code {
		return fmt.Errorf("expected error %s, got %s", code, result.ErrorCode)
	}
	return nil
}

func assertSummary(result *Result, expect map[string]int) error {
	s := result.Report.Summary
	actual := map[string]int{
		"mapped":          s.Mapped,
		"unmapped_remote": s.UnmappedRemote,
		"unmapped_local":  s.UnmappedLocal,
	}
	var diffs []string
	for _, k := range slices.Sorted(maps.Keys(expect)) {
		got, ok := actual[k]
		if !ok {
			diffs = append(diffs, fmt.Sprintf("unknown key %q", k))
			continue
		}
		if got != expect[k] {
			diffs = append(diffs, fmt.Sprintf("%s: expected %d, got %d", k, expect[k], got))
		}
	}
	if len(diffs) > 0 {
		return fmt.Errorf("summary mismatch: %s", strings.Join(diffs, "; "))
	}
	return nil
}

// assertTraceOrder checks that steps occur in the trace in the given
// order. Other steps may be interleaved.
func assertTraceOrder(labels, steps []string) error {
	next := 0
	for _, label := range labels {
		if next < len(steps) && label == steps[next] {
			next++
		}
	}
	if next < len(steps) {
		return fmt.Errorf("step %q not found in order; trace is [%s]", steps[next], strings.Join(labels, ", "))
	}
	return nil
}
