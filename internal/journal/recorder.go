package journal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/tally/engine"
	"github.com/roach88/tally/ir"
)

// RecorderOption configures Recorder.
type RecorderOption func(*recorder)

// WithRecorderLogger sets the logger for recorded entries.
// Defaults to slog.Default().
func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *recorder) {
		r.logger = logger
	}
}

type recorder struct {
	ctx       context.Context
	journal   *Journal
	sessionID string
	clock     *Clock
	logger    *slog.Logger
}

// Recorder returns a store enhancer that journals every applied action to
// sessionID.
//
// The reducer is wrapped, so entries are appended in exactly the order the
// reducer runs, nested dispatches from listeners included. An entry is
// written after the reducer succeeds and before the store commits the new
// state; a failed write fails the dispatch. Reserved engine actions are not
// recorded: a fresh store replays them by itself. Reducers installed later
// through ReplaceReducer are wrapped too.
//
// The session row must exist before the first non-reserved dispatch.
func Recorder(ctx context.Context, j *Journal, sessionID string, clock *Clock, opts ...RecorderOption) engine.Enhancer {
	r := &recorder{
		ctx:       ctx,
		journal:   j,
		sessionID: sessionID,
		clock:     clock,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}

	return func(next engine.Constructor) engine.Constructor {
		return func(reducer engine.Reducer, preloaded ir.IRValue) (engine.Store, error) {
			inner, err := next(r.wrap(reducer), preloaded)
			if err != nil {
				return nil, err
			}
			return &recordingStore{Store: inner, recorder: r}, nil
		}
	}
}

func (r *recorder) wrap(reducer engine.Reducer) engine.Reducer {
	if reducer == nil {
		return nil
	}
	return func(state ir.IRValue, action ir.Action) (ir.IRValue, error) {
		next, err := reducer(state, action)
		if err != nil || next == nil {
			return next, err
		}
		if engine.IsReservedActionType(action.Type()) {
			return next, nil
		}

		// Only advance the clock once the entry is stored, so a failed
		// write leaves no gap.
		seq := r.clock.Current() + 1
		entry, err := NewEntry(r.sessionID, seq, action, next)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", action.TypeName(), err)
		}
		if err := r.journal.AppendEntry(r.ctx, entry); err != nil {
			return nil, fmt.Errorf("record %s: %w", action.TypeName(), err)
		}
		r.clock.Next()

		r.logger.Debug("entry recorded",
			"session", r.sessionID,
			"seq", seq,
			"action", entry.ActionType,
			"state_hash", entry.StateHash)
		return next, nil
	}
}

// recordingStore keeps replacement reducers recorded.
type recordingStore struct {
	engine.Store
	recorder *recorder
}

func (s *recordingStore) ReplaceReducer(next engine.Reducer) error {
	return s.Store.ReplaceReducer(s.recorder.wrap(next))
}
