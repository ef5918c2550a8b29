package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordSessions runs one action file into each named session.
func recordSessions(t *testing.T, specs, db string, sessions ...string) {
	t.Helper()
	actions := writeFile(t, t.TempDir(), "actions.yaml", `
- {type: INCREMENT, by: 3}
- {type: ADD_TODO, text: eggs}
`)
	for _, s := range sessions {
		_, err := executeCommand(t, "run", specs, "--db", db, "--actions", actions, "--session", s)
		require.NoError(t, err)
	}
}

func TestReplay_AllSessionsDeterministic(t *testing.T) {
	specs := writeSpecs(t)
	db := filepath.Join(t.TempDir(), "tally.db")
	recordSessions(t, specs, db, "a", "b")

	out, err := executeCommand(t, "replay", specs, "--db", db, "--format", "json")
	require.NoError(t, err)

	var result ReplayResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.AllDeterministic)
	require.Equal(t, 2, result.TotalSessions)
	assert.Equal(t, "a", result.Sessions[0].SessionID)
	assert.Equal(t, 2, result.Sessions[0].Applied)
	assert.True(t, result.Sessions[0].SpecMatch)
}

func TestReplay_SingleSessionText(t *testing.T) {
	specs := writeSpecs(t)
	db := filepath.Join(t.TempDir(), "tally.db")
	recordSessions(t, specs, db, "a", "b")

	out, err := executeCommand(t, "replay", specs, "--db", db, "--session", "b")
	require.NoError(t, err)
	assert.Contains(t, out, "Replay Summary: 1 session(s)")
	assert.Contains(t, out, "✓ Session: b")
	assert.Contains(t, out, "Entries: 2 applied of 2")
	assert.Contains(t, out, "✓ All sessions verified deterministic")
}

func TestReplay_Divergence(t *testing.T) {
	specs := writeSpecs(t)
	db := filepath.Join(t.TempDir(), "tally.db")
	recordSessions(t, specs, db, "a")
	tamperStateHashes(t, db)

	out, err := executeCommand(t, "replay", specs, "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Session: a")
	assert.Contains(t, out, "Divergence: seq 1 (INCREMENT)")
	assert.Contains(t, out, "✗ Determinism verification failed")
}

func TestReplay_SpecMismatch(t *testing.T) {
	db := filepath.Join(t.TempDir(), "tally.db")
	recordSessions(t, writeSpecs(t), db, "a")

	other := writeSpecDir(t, "package specs\n\nslice: count: initial: 0\n")
	out, err := executeCommand(t, "replay", other, "--db", db, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result ReplayResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "E_DIVERGED", resp.Error.Code)
	require.Len(t, result.Sessions, 1)
	assert.False(t, result.Sessions[0].SpecMatch)
	assert.Contains(t, result.Sessions[0].Divergence, "recorded with spec hash")
}

func TestReplay_EmptyDatabase(t *testing.T) {
	specs := writeSpecs(t)
	empty := filepath.Join(t.TempDir(), "empty.db")
	j := openJournalForTest(t, empty)
	require.NoError(t, j.Close())

	out, err := executeCommand(t, "replay", specs, "--db", empty)
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found in database.")
}

func TestReplay_Errors(t *testing.T) {
	specs := writeSpecs(t)

	out, err := executeCommand(t, "replay", specs, "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "database not found")

	db := filepath.Join(t.TempDir(), "tally.db")
	recordSessions(t, specs, db, "a")
	out, err = executeCommand(t, "replay", specs, "--db", db, "--session", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "session not found: nope")
}
