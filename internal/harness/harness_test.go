package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "assertion failures: %v", result.Errors)
		})
	}
}

func TestGoldenScenarios(t *testing.T) {
	for _, name := range []string{"confirm_and_reject", "transaction_split", "remote_gap"} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)

			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "assertion failures: %v", result.Errors)
		})
	}
}

func TestRunIsDeterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/confirm_and_reject.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := Snapshot(s.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(s.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Equal(t, RoundID, first.Report.RoundID)
}

func TestRunReportsFailingAssertions(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong_expectations
description: "Assertions that do not hold are reported, not returned as errors"
batch: |
  base: "acme/people"
  entries: [{
    event: {kind: "add", target: "acme/people", changed: "acme/people/zoe", revision: 1}
    command: {}
  }]
assertions:
  - type: confirmed
    revisions: [1]
  - type: rejected
    revisions: []
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "expected confirmed [1], got []")
	assert.Contains(t, result.Errors[1], "expected rejected [], got [1]")
	assert.Equal(t, []string{"rollback 1", "status 1 rejected"}, result.Labels())
	assert.Empty(t, result.Log)
	assert.Equal(t, 0, result.Pending)
}

func TestRunBadBatch(t *testing.T) {
	tests := []struct {
		name  string
		batch string
		want  string
	}{
		{
			name:  "compile error",
			batch: `events: [{kind: "change"}]`,
			want:  "failed to compile batch",
		},
		{
			name:  "no base",
			batch: `events: []`,
			want:  "failed to build log",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Scenario{
				Name:        "bad",
				Description: "bad batch",
				Batch:       tt.batch,
				Assertions:  []Assertion{{Type: AssertPending}},
			}
			_, err := Run(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
