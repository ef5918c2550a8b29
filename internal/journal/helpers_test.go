package journal

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/engine"
	"github.com/roach88/tally/ir"
)

// createTestJournal opens a journal in a temp directory.
func createTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

// createTestSession inserts a session with a fixed spec hash.
func createTestSession(t *testing.T, j *Journal, id string, preloaded, initial ir.IRValue) Session {
	t.Helper()
	s, err := NewSession(id, "spec-hash", preloaded, initial)
	require.NoError(t, err)
	require.NoError(t, j.CreateSession(context.Background(), s))
	return s
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// counterReducer counts INCREMENT/DECREMENT actions.
func counterReducer(state ir.IRValue, action ir.Action) (ir.IRValue, error) {
	if state == nil {
		state = ir.IRInt(0)
	}
	n, _ := state.(ir.IRInt)
	switch action.TypeName() {
	case "INCREMENT":
		return n + 1, nil
	case "DECREMENT":
		return n - 1, nil
	}
	return state, nil
}

// doublingReducer disagrees with counterReducer on INCREMENT.
func doublingReducer(state ir.IRValue, action ir.Action) (ir.IRValue, error) {
	if state == nil {
		state = ir.IRInt(0)
	}
	n, _ := state.(ir.IRInt)
	if action.TypeName() == "INCREMENT" {
		return n + 2, nil
	}
	return state, nil
}

// recordedStore creates a session and a store journaling into it.
func recordedStore(t *testing.T, j *Journal, id string, reducer engine.Reducer, preloaded ir.IRValue) engine.Store {
	t.Helper()
	ctx := context.Background()

	store, err := engine.New(reducer,
		engine.WithLogger(quietLogger()),
		engine.WithPreloadedState(preloaded),
		engine.WithEnhancer(Recorder(ctx, j, id, NewClock(), WithRecorderLogger(quietLogger()))))
	require.NoError(t, err)

	initial, err := store.GetState()
	require.NoError(t, err)
	createTestSession(t, j, id, preloaded, initial)
	return store
}
