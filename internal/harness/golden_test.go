package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/ir"
)

func TestRunWithGolden_Scenarios(t *testing.T) {
	for _, name := range []string{"counter_basic", "counter_errors", "replace_specs"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestTraceSnapshot_CanonicalJSON(t *testing.T) {
	snapshot := TraceSnapshot{
		ScenarioName: "snap",
		SessionID:    "s-1",
		Trace: []TraceEvent{
			{Seq: 1, Kind: EventDispatch, ActionType: "A", Action: ir.IRObject{"type": ir.IRString("A")}, Changed: true, StateHash: "ignored"},
			{Seq: 2, Kind: EventReplace, Error: "INVALID_ARGUMENT"},
		},
		FinalState: ir.IRObject{"n": ir.IRInt(1)},
	}

	first, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	require.NoError(t, err)
	second, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t,
		`{"final_state":{"n":1},"scenario_name":"snap","session_id":"s-1","trace":[`+
			`{"action":{"type":"A"},"action_type":"A","changed":true,"kind":"dispatch","seq":1},`+
			`{"changed":false,"error":"INVALID_ARGUMENT","kind":"replace","seq":2}]}`,
		string(first))
}
