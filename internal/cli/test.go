package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"

	"github.com/roach88/treesync/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run synchronization scenarios",
		Long: `Run every YAML scenario under a directory. Each scenario builds a log
from its batch, runs one synchronization round against the batch's
server events, and checks its assertions. When golden/<name>.golden
exists next to the scenario, the round snapshot must match it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  treesync test ./scenarios
  treesync test ./scenarios --filter "confirm_*"
  treesync test ./scenarios --update
  treesync test ./scenarios --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(scenariosDir); errors.Is(err, fs.ErrNotExist) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	scenarioFiles, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	if len(scenarioFiles) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no scenarios found in %s", scenariosDir))
	}

	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		w = io.Discard
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}
	for _, file := range scenarioFiles {
		sr := runScenario(file, opts.Update)
		if sr.Pass {
			result.Passed++
			fmt.Fprintf(w, "✓ %s\n", sr.Name)
		} else {
			result.Failed++
			fmt.Fprintf(w, "✗ %s\n", sr.Name)
			for _, e := range sr.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
		result.Scenarios = append(result.Scenarios, sr)
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result)
}

// findScenarioFiles finds the YAML scenario files directly in a
// directory, skipping the golden directory.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var match glob.Glob
	if filter != "" {
		g, err := glob.Compile(filter)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
		match = g
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if match != nil && !match.Match(strings.TrimSuffix(d.Name(), ext)) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// runScenario executes a single scenario file.
func runScenario(file string, update bool) ScenarioResult {
	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	fail := func(format string, args ...any) ScenarioResult {
		return ScenarioResult{Name: name, Errors: []string{fmt.Sprintf(format, args...)}}
	}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return fail("failed to load scenario: %v", err)
	}
	name = scenario.Name

	result, err := harness.Run(scenario)
	if err != nil {
		return fail("execution failed: %v", err)
	}
	snapshot, err := harness.Snapshot(scenario.Name, result)
	if err != nil {
		return fail("failed to snapshot result: %v", err)
	}

	goldenPath := goldenFilePath(file, scenario.Name)
	if update {
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0o755); err != nil {
			return fail("failed to create golden directory: %v", err)
		}
		if err := os.WriteFile(goldenPath, snapshot, 0o644); err != nil {
			return fail("failed to write golden file: %v", err)
		}
	} else if golden, err := os.ReadFile(goldenPath); err == nil {
		if !bytes.Equal(golden, snapshot) {
			result.AddError("golden file mismatch (run with --update to regenerate)")
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fail("failed to read golden file: %v", err)
	}

	return ScenarioResult{Name: scenario.Name, Pass: result.Pass, Errors: result.Errors}
}

// goldenFilePath returns the golden file of a scenario:
// <scenario dir>/golden/<name>.golden.
func goldenFilePath(scenarioFile, name string) string {
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	f := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeRound,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}
	if err := f.encode(response); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test summary as text.
func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
