package engine

import (
	"bytes"
	"io"
	"log/slog"

	"github.com/roach88/tally/ir"
)

// counterReducer counts INCREMENT/DECREMENT actions, starting at 0.
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

// todosReducer appends action.text on ADD_TODO, starting from [].
func todosReducer(state ir.IRValue, action ir.Action) (ir.IRValue, error) {
	if state == nil {
		state = ir.IRArray{}
	}
	if action.TypeName() != "ADD_TODO" {
		return state, nil
	}
	prev := state.(ir.IRArray)
	next := make(ir.IRArray, len(prev), len(prev)+1)
	copy(next, prev)
	return append(next, action["text"]), nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

func mustNew(t interface {
	Helper()
	Fatalf(string, ...any)
}, reducer Reducer, opts ...Option) Store {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	s, err := New(reducer, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func mustState(t interface {
	Helper()
	Fatalf(string, ...any)
}, s Store) ir.IRValue {
	t.Helper()
	state, err := s.GetState()
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	return state
}
