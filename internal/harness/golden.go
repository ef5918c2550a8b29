package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tally/ir"
)

// TraceSnapshot is the golden-file view of a scenario run. State hashes are
// left out: replay already checks them, and the snapshot stays readable.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	SessionID    string       `json:"session_id"`
	Trace        []TraceEvent `json:"trace"`
	FinalState   ir.IRValue   `json:"final_state"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"seq":     event.Seq,
			"kind":    event.Kind,
			"changed": event.Changed,
		}
		if event.ActionType != "" {
			eventMap["action_type"] = event.ActionType
		}
		if event.Action != nil {
			eventMap["action"] = event.Action
		}
		if event.Error != "" {
			eventMap["error"] = event.Error
		}
		traceList[i] = eventMap
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"session_id":    s.SessionID,
		"trace":         traceList,
	}
	if s.FinalState != nil {
		result["final_state"] = s.FinalState
	}
	return result
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...RunOption) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against the golden file for
// scenarioName.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}

// Snapshot renders a result as golden-file bytes: canonical JSON plus a
// trailing newline.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		SessionID:    result.SessionID,
		Trace:        result.Trace,
		FinalState:   result.FinalState,
	}

	data, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
