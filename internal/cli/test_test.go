package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenarios lays out specs/ and scenarios/ in one directory.
func writeScenarios(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "specs/counter.cue", counterSpec)
	writeFile(t, dir, "scenarios/counter_inc.yaml", `
name: counter_inc
specs: [../specs]
session: scenario-inc
steps:
  - dispatch: { type: INCREMENT, by: 2 }
assertions:
  - type: final_state
    path: count
    expect: 2
`)
	writeFile(t, dir, "scenarios/counter_halve.yaml", `
name: counter_halve
specs: [../specs]
session: scenario-halve
preloaded: { count: 3 }
steps:
  - dispatch: { type: HALVE }
    expect_error: RULE_EVAL
assertions:
  - type: trace_count
    action: HALVE
    count: 0
`)
	return filepath.Join(dir, "scenarios")
}

func TestTest_AllPass(t *testing.T) {
	out, err := executeCommand(t, "test", writeScenarios(t))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ counter_inc")
	assert.Contains(t, out, "✓ counter_halve")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
}

func TestTest_FailingScenario(t *testing.T) {
	scenarios := writeScenarios(t)
	writeFile(t, scenarios, "wrong.yaml", `
name: wrong
specs: [../specs]
steps:
  - dispatch: { type: INCREMENT }
assertions:
  - type: final_state
    path: count
    expect: 5
`)

	out, err := executeCommand(t, "test", scenarios, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result TestResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, 2, result.Passed)
	assert.Equal(t, 1, result.Failed)
}

func TestTest_Filter(t *testing.T) {
	out, err := executeCommand(t, "test", writeScenarios(t), "--filter", "*_inc")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ counter_inc")
	assert.NotContains(t, out, "counter_halve")
	assert.Contains(t, out, "1 total")
}

func TestTest_SingleFile(t *testing.T) {
	scenarios := writeScenarios(t)
	out, err := executeCommand(t, "test", filepath.Join(scenarios, "counter_inc.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed")
}

func TestTest_GoldenUpdateAndCompare(t *testing.T) {
	scenarios := writeScenarios(t)

	_, err := executeCommand(t, "test", scenarios, "--update")
	require.NoError(t, err)

	golden, err := os.ReadFile(filepath.Join(scenarios, "golden", "counter_inc.golden"))
	require.NoError(t, err)
	assert.Equal(t,
		`{"final_state":{"count":2,"todos":[]},"scenario_name":"counter_inc","session_id":"scenario-inc","trace":[`+
			`{"action":{"by":2,"type":"INCREMENT"},"action_type":"INCREMENT","changed":true,"kind":"dispatch","seq":1}]}`+"\n",
		string(golden))

	_, err = executeCommand(t, "test", scenarios)
	require.NoError(t, err)

	writeFile(t, scenarios, "golden/counter_inc.golden", "{}\n")
	out, err := executeCommand(t, "test", scenarios)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTest_BadScenarioFile(t *testing.T) {
	scenarios := writeScenarios(t)
	writeFile(t, scenarios, "broken.yaml", "name: broken\nbogus: true\n")

	out, err := executeCommand(t, "test", scenarios)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTest_MissingPath(t *testing.T) {
	_, err := executeCommand(t, "test", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTest_NoScenarios(t *testing.T) {
	out, err := executeCommand(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}
