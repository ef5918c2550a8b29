package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/roach88/tally/engine"
	"github.com/roach88/tally/internal/journal"
	"github.com/roach88/tally/internal/rules"
	"github.com/roach88/tally/ir"
)

// loadedSpecs is a compiled specs directory with its hash.
type loadedSpecs struct {
	Slices []rules.SliceSpec
	Hash   string
}

func loadSpecs(dir string) (*loadedSpecs, error) {
	slices, err := rules.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	hash, err := rules.SpecHash(slices)
	if err != nil {
		return nil, err
	}
	return &loadedSpecs{Slices: slices, Hash: hash}, nil
}

func (s *loadedSpecs) reducer(logger *slog.Logger) engine.Reducer {
	return rules.Combine(s.Slices, engine.CombineWithLogger(logger))
}

// openExistingJournal opens a journal that must already exist on disk.
func openExistingJournal(path string) (*journal.Journal, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database not found: %s", path)
	}
	return journal.Open(path)
}

// findSession returns the session and whether it exists.
func findSession(ctx context.Context, j *journal.Journal, id string) (journal.Session, bool, error) {
	session, err := j.GetSession(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return journal.Session{}, false, nil
	}
	if err != nil {
		return journal.Session{}, false, err
	}
	return session, true, nil
}

// recordedStore is a store whose dispatches are journaled to a session.
type recordedStore struct {
	engine.Store
	SessionID string
}

// startSession builds a store over specs and records a new session for it.
func startSession(ctx context.Context, j *journal.Journal, specs *loadedSpecs, sessionID string, preloaded ir.IRValue, logger *slog.Logger) (*recordedStore, error) {
	store, err := engine.New(specs.reducer(logger),
		engine.WithPreloadedState(preloaded),
		engine.WithLogger(logger),
		engine.WithEnhancer(journal.Recorder(ctx, j, sessionID, journal.NewClock(), journal.WithRecorderLogger(logger))))
	if err != nil {
		return nil, err
	}

	initial, err := store.GetState()
	if err != nil {
		return nil, err
	}
	session, err := journal.NewSession(sessionID, specs.Hash, preloaded, initial)
	if err != nil {
		return nil, err
	}
	if err := j.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	logger.Debug("session started", "session", sessionID, "spec_hash", specs.Hash)
	return &recordedStore{Store: store, SessionID: sessionID}, nil
}

// errDiverged is returned by resumeSession when the journal cannot be
// reproduced with the current specs.
type errDiverged struct {
	Report *journal.ReplayReport
}

func (e *errDiverged) Error() string {
	return fmt.Sprintf("session %s diverged at %s", e.Report.SessionID, e.Report.Divergence)
}

// resumeSession replays an existing session and returns a store positioned
// at its last recorded state that keeps journaling after the last seq.
func resumeSession(ctx context.Context, j *journal.Journal, specs *loadedSpecs, session journal.Session, logger *slog.Logger) (*recordedStore, error) {
	if session.SpecHash != specs.Hash {
		return nil, fmt.Errorf("session %s was recorded with spec hash %s, current specs hash to %s", session.ID, session.SpecHash, specs.Hash)
	}

	report, err := journal.Replay(ctx, j, session.ID, specs.reducer(logger), journal.WithReplayLogger(logger))
	if err != nil {
		return nil, err
	}
	if !report.OK() {
		return nil, &errDiverged{Report: report}
	}

	lastSeq, err := j.LastSeq(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	store, err := engine.New(specs.reducer(logger),
		engine.WithPreloadedState(report.FinalState),
		engine.WithLogger(logger),
		engine.WithEnhancer(journal.Recorder(ctx, j, session.ID, journal.NewClockAt(lastSeq), journal.WithRecorderLogger(logger))))
	if err != nil {
		return nil, err
	}

	logger.Debug("session resumed", "session", session.ID, "last_seq", lastSeq)
	return &recordedStore{Store: store, SessionID: session.ID}, nil
}

// stateHash renders the current state's hash, or "" if it cannot be hashed.
func stateHash(state ir.IRValue) string {
	hash, err := ir.StateHash(state)
	if err != nil {
		return ""
	}
	return hash
}
