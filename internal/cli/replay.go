package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/journal"
	"github.com/roach88/tally/internal/rules"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string // optional - specific session only
}

// ReplaySessionResult holds the replay result for a single session.
type ReplaySessionResult struct {
	SessionID      string `json:"session_id"`
	Entries        int    `json:"entries"`
	Applied        int    `json:"applied"`
	FinalStateHash string `json:"final_state_hash,omitempty"`
	SpecMatch      bool   `json:"spec_match"`
	Deterministic  bool   `json:"deterministic"`
	Divergence     string `json:"divergence,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions         []ReplaySessionResult `json:"sessions"`
	TotalSessions    int                   `json:"total_sessions"`
	AllDeterministic bool                  `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay [specs-dir]",
		Short: "Replay journaled sessions and verify determinism",
		Long: `Replay journaled sessions against the current specs.

Each session is rebuilt from its preloaded state, every entry is
re-dispatched in seq order, and the resulting state hashes are compared
with the ones recorded in the journal. Sessions recorded with different
specs are reported as mismatched and not replayed.

Exit codes:
  0 - All sessions reproduced
  1 - A session diverged or was recorded with different specs
  2 - Command error (database not found, etc.)

Examples:
  tally replay ./specs --db ./tally.db
  tally replay ./specs --db ./tally.db --session demo
  tally replay ./specs --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, rootOpts.specsDir(args), cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default from config)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "replay specific session only")

	return cmd
}

func runReplay(opts *ReplayOptions, specsDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	specs, err := loadSpecs(specsDir)
	if err != nil {
		return formatter.Fail(ExitCommandError, rules.ErrCodeGeneric, "failed to load specs", err)
	}

	j, err := openExistingJournal(opts.database(opts.Database))
	if err != nil {
		return formatter.Fail(ExitCommandError, rules.ErrCodeNotFound, "failed to open database", err)
	}
	defer j.Close()

	var sessions []journal.Session
	if opts.Session != "" {
		session, exists, err := findSession(ctx, j, opts.Session)
		if err != nil {
			return formatter.Fail(ExitCommandError, rules.ErrCodeGeneric, "failed to look up session", err)
		}
		if !exists {
			return formatter.Fail(ExitCommandError, rules.ErrCodeNotFound, fmt.Sprintf("session not found: %s", opts.Session), nil)
		}
		sessions = []journal.Session{session}
	} else {
		sessions, err = j.ListSessions(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, rules.ErrCodeGeneric, "failed to list sessions", err)
		}
	}

	result := ReplayResult{
		Sessions:         make([]ReplaySessionResult, 0, len(sessions)),
		TotalSessions:    len(sessions),
		AllDeterministic: true,
	}

	for _, session := range sessions {
		sessionResult := ReplaySessionResult{
			SessionID: session.ID,
			SpecMatch: session.SpecHash == specs.Hash,
		}
		if !sessionResult.SpecMatch {
			sessionResult.Divergence = fmt.Sprintf("recorded with spec hash %s, current specs hash to %s", session.SpecHash, specs.Hash)
		} else {
			report, err := journal.Replay(ctx, j, session.ID, specs.reducer(logger), journal.WithReplayLogger(logger))
			if err != nil {
				return formatter.Fail(ExitCommandError, rules.ErrCodeGeneric, fmt.Sprintf("failed to replay session %s", session.ID), err)
			}
			sessionResult.Entries = report.Entries
			sessionResult.Applied = report.Applied
			sessionResult.FinalStateHash = report.FinalStateHash
			sessionResult.Deterministic = report.OK()
			if !report.OK() {
				sessionResult.Divergence = report.Divergence.String()
			}
		}

		if !sessionResult.Deterministic {
			result.AllDeterministic = false
		}
		result.Sessions = append(result.Sessions, sessionResult)
	}

	if formatter.JSON() {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter, result)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	if result.AllDeterministic {
		return formatter.Respond(result, nil)
	}
	if err := formatter.Respond(result, &CLIError{Code: "E_DIVERGED", Message: "determinism verification failed"}); err != nil {
		return err
	}
	return NewExitError(ExitFailure, "determinism verification failed")
}

// outputReplayText outputs the replay result as text.
func outputReplayText(formatter *OutputFormatter, result ReplayResult) error {
	w := formatter.Writer

	if result.TotalSessions == 0 {
		fmt.Fprintln(w, "No sessions found in database.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d session(s)\n", result.TotalSessions)
	fmt.Fprintln(w)

	for _, s := range result.Sessions {
		status := "✓"
		if !s.Deterministic {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Session: %s\n", status, s.SessionID)
		fmt.Fprintf(w, "  Entries: %d applied of %d\n", s.Applied, s.Entries)
		if formatter.Verbose && s.FinalStateHash != "" {
			fmt.Fprintf(w, "  Final state hash: %s\n", s.FinalStateHash)
		}
		if s.Divergence != "" {
			fmt.Fprintf(w, "  Divergence: %s\n", s.Divergence)
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All sessions verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	return NewExitError(ExitFailure, "determinism verification failed")
}
