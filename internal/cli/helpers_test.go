package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/journal"
)

const counterSpec = `package specs

slice: count: {
	initial: 0
	on: {
		INCREMENT: "state + (action.by ?? 1)"
		HALVE:     "state / 2"
	}
}

slice: todos: {
	initial: []
	on: ADD_TODO: "push(state, {text: action.text, done: false})"
}
`

// writeSpecs creates a specs directory holding the counter spec.
func writeSpecs(t *testing.T) string {
	t.Helper()
	return writeSpecDir(t, counterSpec)
}

func writeSpecDir(t *testing.T, src string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "specs")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "counter.cue"), []byte(src), 0o644))
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// executeCommand runs the root command with args and returns stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, key := range []string{"TALLY_DB", "TALLY_SPECS", "TALLY_LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

// decodeResponse parses a JSON CLIResponse and re-decodes its data into out.
func decodeResponse(t *testing.T, output string, out any) CLIResponse {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &raw), "output: %s", output)
	if out != nil {
		require.NoError(t, json.Unmarshal(raw.Data, out))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// tamperStateHashes overwrites every recorded state hash in db.
func tamperStateHashes(t *testing.T, db string) {
	t.Helper()
	j := openJournalForTest(t, db)
	defer j.Close()
	_, err := j.DB().Exec(`UPDATE entries SET state_hash = 'tampered'`)
	require.NoError(t, err)
}

func openJournalForTest(t *testing.T, path string) *journal.Journal {
	t.Helper()
	j, err := journal.Open(path)
	require.NoError(t, err)
	return j
}
