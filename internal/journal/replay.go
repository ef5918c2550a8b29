package journal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/tally/engine"
	"github.com/roach88/tally/ir"
)

// ReplayReport summarizes a replay.
type ReplayReport struct {
	SessionID      string
	SpecHash       string // spec hash recorded with the session
	Entries        int
	Applied        int
	FinalState     ir.IRValue
	FinalStateHash string
	Divergence     *Divergence
}

// OK reports whether every recorded state was reproduced.
func (r *ReplayReport) OK() bool {
	return r.Divergence == nil
}

// Divergence is the first point where a replay disagrees with the journal.
// Seq 0 means the initial state.
type Divergence struct {
	Seq        int64
	ActionType string
	Expected   string
	Actual     string
	Message    string
}

func (d *Divergence) String() string {
	if d.Message != "" {
		return fmt.Sprintf("seq %d (%s): %s", d.Seq, d.ActionType, d.Message)
	}
	return fmt.Sprintf("seq %d (%s): state hash %s, expected %s", d.Seq, d.ActionType, d.Actual, d.Expected)
}

// ReplayOption configures Replay.
type ReplayOption func(*replayConfig)

type replayConfig struct {
	logger *slog.Logger
}

// WithReplayLogger sets the logger handed to the replay store.
func WithReplayLogger(logger *slog.Logger) ReplayOption {
	return func(c *replayConfig) {
		c.logger = logger
	}
}

// Replay re-runs a recorded session against reducer.
//
// A fresh store is built from the session's preloaded state and receives
// every entry in seq order. After initialization and after each entry the
// state hash is compared with the journal; the first mismatch (or dispatch
// error) stops the replay and is reported as a Divergence. Only journal
// failures are returned as errors.
func Replay(ctx context.Context, j *Journal, sessionID string, reducer engine.Reducer, opts ...ReplayOption) (*ReplayReport, error) {
	cfg := &replayConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	session, err := j.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	entries, err := j.ReadEntries(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	report := &ReplayReport{
		SessionID: sessionID,
		SpecHash:  session.SpecHash,
		Entries:   len(entries),
	}

	store, err := engine.New(reducer,
		engine.WithPreloadedState(session.Preloaded),
		engine.WithLogger(cfg.logger))
	if err != nil {
		report.Divergence = &Divergence{ActionType: "init", Message: err.Error()}
		return report, nil
	}

	if !checkState(store, report, 0, "init", session.InitialStateHash) {
		return report, nil
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("replay: %w", err)
		}
		if _, err := store.Dispatch(entry.Action); err != nil {
			report.Divergence = &Divergence{
				Seq:        entry.Seq,
				ActionType: entry.ActionType,
				Expected:   entry.StateHash,
				Message:    err.Error(),
			}
			return report, nil
		}
		if !checkState(store, report, entry.Seq, entry.ActionType, entry.StateHash) {
			return report, nil
		}
		report.Applied++
	}

	cfg.logger.Debug("replay complete", "session", sessionID, "applied", report.Applied)
	return report, nil
}

// checkState records the current state in report and compares its hash.
func checkState(store engine.Store, report *ReplayReport, seq int64, actionType, expected string) bool {
	state, err := store.GetState()
	if err != nil {
		report.Divergence = &Divergence{Seq: seq, ActionType: actionType, Expected: expected, Message: err.Error()}
		return false
	}
	hash, err := ir.StateHash(state)
	if err != nil {
		report.Divergence = &Divergence{Seq: seq, ActionType: actionType, Expected: expected, Message: err.Error()}
		return false
	}

	report.FinalState = state
	report.FinalStateHash = hash
	if hash != expected {
		report.Divergence = &Divergence{Seq: seq, ActionType: actionType, Expected: expected, Actual: hash}
		return false
	}
	return true
}
