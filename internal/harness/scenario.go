package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario describes one synchronization round to run and check.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are named after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Batch is a CUE batch document holding the local log (base,
	// synchronized_revision, entries) and the server history (events).
	Batch string `yaml:"batch,omitempty"`

	// BatchFile is a path to a CUE batch document, relative to the
	// scenario file. Exactly one of Batch and BatchFile is set.
	BatchFile string `yaml:"batch_file,omitempty"`

	// Assertions check the round's outcome.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion checks one aspect of a round's outcome.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Expect holds the expected bucket sizes (summary).
	Expect map[string]int `yaml:"expect,omitempty"`

	// Revision is the expected synchronized revision (synchronized_revision).
	Revision int64 `yaml:"revision,omitempty"`

	// Revisions lists expected local revisions (confirmed, rejected).
	Revisions []int64 `yaml:"revisions,omitempty"`

	// Count is the expected number of pending local changes (pending).
	Count int `yaml:"count,omitempty"`

	// Steps are trace step labels expected in this order (trace_order).
	Steps []string `yaml:"steps,omitempty"`

	// Code is the expected error code of a failed round (error).
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertSummary              = "summary"
	AssertSynchronizedRevision = "synchronized_revision"
	AssertConfirmed            = "confirmed"
	AssertRejected             = "rejected"
	AssertPending              = "pending"
	AssertTraceOrder           = "trace_order"
	AssertError                = "error"
)

var summaryKeys = map[string]bool{
	"mapped":          true,
	"unmapped_remote": true,
	"unmapped_local":  true,
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected. A relative batch_file is resolved against the scenario's
// directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.BatchFile != "" && !filepath.IsAbs(scenario.BatchFile) {
		scenario.BatchFile = filepath.Join(filepath.Dir(path), scenario.BatchFile)
	}
	if scenario.BatchFile != "" {
		if _, err := os.Stat(scenario.BatchFile); err != nil {
			return nil, fmt.Errorf("invalid scenario: batch file: %w", err)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if (s.Batch == "") == (s.BatchFile == "") {
		return fmt.Errorf("exactly one of batch and batch_file is required")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertSummary:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for summary", index)
		}
		for k := range a.Expect {
			if !summaryKeys[k] {
				return fmt.Errorf("assertions[%d]: unknown summary key %q", index, k)
			}
		}
	case AssertSynchronizedRevision:
		if a.Revision < -1 {
			return fmt.Errorf("assertions[%d]: revision must be at least -1", index)
		}
	case AssertConfirmed, AssertRejected:
		// An empty list asserts that nothing was confirmed or rejected.
	case AssertPending:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for pending", index)
		}
	case AssertTraceOrder:
		if len(a.Steps) == 0 {
			return fmt.Errorf("assertions[%d]: steps list is required for trace_order", index)
		}
	case AssertError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
