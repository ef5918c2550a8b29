package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSessionID is used when a scenario does not name its session.
const DefaultSessionID = "test-session-default"

// Scenario defines a store contract test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists CUE spec directories or files. Relative paths are
	// resolved against the scenario file's directory by LoadScenario.
	Specs []string `yaml:"specs"`

	// Session is an optional fixed session ID.
	Session string `yaml:"session,omitempty"`

	// Preloaded is the optional preloaded state.
	Preloaded any `yaml:"preloaded,omitempty"`

	// Steps are applied in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one store operation. Exactly one of Dispatch and ReplaceSpecs is set.
type Step struct {
	// Dispatch is the action object to dispatch. It is not validated, so
	// malformed actions can be tested.
	Dispatch map[string]any `yaml:"dispatch,omitempty"`

	// ReplaceSpecs swaps the reducer for one compiled from these specs.
	ReplaceSpecs []string `yaml:"replace_specs,omitempty"`

	// ExpectError is the error code the step must fail with. Empty means
	// the step must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Action is the action type (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Fields are expected action fields (trace_contains). Subset match.
	Fields map[string]any `yaml:"fields,omitempty"`

	// Actions is the expected action order (trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Path is a dotted path into the final state (final_state).
	Path string `yaml:"path,omitempty"`

	// Expect is the expected value at Path (final_state).
	Expect any `yaml:"expect,omitempty"`

	// Step is the 0-based step index (unchanged).
	Step *int `yaml:"step,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertUnchanged     = "unchanged"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Relative spec paths are resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	scenario.Specs = resolvePaths(base, scenario.Specs)
	for i := range scenario.Steps {
		scenario.Steps[i].ReplaceSpecs = resolvePaths(base, scenario.Steps[i].ReplaceSpecs)
	}

	if err := validateSpecPaths(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML without touching the filesystem.
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

func resolvePaths(base string, paths []string) []string {
	if len(paths) == 0 {
		return paths
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		if filepath.IsAbs(p) {
			out[i] = p
		} else {
			out[i] = filepath.Join(base, p)
		}
	}
	return out
}

func validateSpecPaths(s *Scenario) error {
	check := func(paths []string) error {
		for _, p := range paths {
			if _, err := os.Stat(p); os.IsNotExist(err) {
				return fmt.Errorf("spec path not found: %s", p)
			}
		}
		return nil
	}
	if err := check(s.Specs); err != nil {
		return err
	}
	for i, step := range s.Steps {
		if err := check(step.ReplaceSpecs); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	return nil
}

// validateScenario checks required fields.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		hasDispatch := step.Dispatch != nil
		hasReplace := len(step.ReplaceSpecs) > 0
		if hasDispatch == hasReplace {
			return fmt.Errorf("steps[%d]: exactly one of dispatch or replace_specs is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, len(s.Steps)); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, stepCount int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertUnchanged:
		if a.Step == nil {
			return fmt.Errorf("assertions[%d]: step is required for unchanged", index)
		}
		if *a.Step < 0 || *a.Step >= stepCount {
			return fmt.Errorf("assertions[%d]: step %d out of range", index, *a.Step)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
