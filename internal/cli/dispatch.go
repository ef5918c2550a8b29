package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/harness"
	"github.com/roach88/tally/internal/journal"
	"github.com/roach88/tally/internal/rules"
	"github.com/roach88/tally/ir"
)

// DispatchOptions holds flags for the dispatch command.
type DispatchOptions struct {
	*RootOptions
	Database string
	Session  string
	Action   string
}

// DispatchResult describes one dispatched action.
type DispatchResult struct {
	SessionID  string     `json:"session_id"`
	Seq        int64      `json:"seq"`
	ActionType string     `json:"action_type"`
	Changed    bool       `json:"changed"`
	State      ir.IRValue `json:"state"`
	StateHash  string     `json:"state_hash"`
	Created    bool       `json:"created,omitempty"`
}

// NewDispatchCommand creates the dispatch command.
func NewDispatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DispatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dispatch [specs-dir]",
		Short: "Dispatch one action into a journaled session",
		Long: `Dispatch a single action into a session.

An existing session is first replayed from the journal with the current
specs; the action is then applied on top of the recovered state and
journaled after the session's last entry. A session that does not exist yet
is started from the specs' initial state.

Exit codes:
  0 - Action applied
  1 - The action failed or the session no longer replays
  2 - Command error (bad JSON, spec hash mismatch, etc.)

Example:
  tally dispatch ./specs --session demo --action '{"type":"INCREMENT","by":2}'`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatchAction(opts, rootOpts.specsDir(args), cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default from config)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session ID (required)")
	_ = cmd.MarkFlagRequired("session")
	cmd.Flags().StringVar(&opts.Action, "action", "", "action object as JSON (required)")
	_ = cmd.MarkFlagRequired("action")

	return cmd
}

func dispatchAction(opts *DispatchOptions, specsDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	action, err := ir.ParseAction([]byte(opts.Action))
	if err != nil {
		return formatter.Fail(ExitCommandError, rules.ErrCodeGeneric, "invalid --action", err)
	}

	specs, err := loadSpecs(specsDir)
	if err != nil {
		return formatter.Fail(ExitCommandError, rules.ErrCodeGeneric, "failed to load specs", err)
	}

	j, err := journal.Open(opts.database(opts.Database))
	if err != nil {
		return formatter.Fail(ExitCommandError, rules.ErrCodeGeneric, "failed to open database", err)
	}
	defer j.Close()

	session, exists, err := findSession(ctx, j, opts.Session)
	if err != nil {
		return formatter.Fail(ExitCommandError, rules.ErrCodeGeneric, "failed to look up session", err)
	}

	var store *recordedStore
	if exists {
		store, err = resumeSession(ctx, j, specs, session, logger)
	} else {
		store, err = startSession(ctx, j, specs, opts.Session, nil, logger)
	}
	if err != nil {
		var diverged *errDiverged
		if errors.As(err, &diverged) {
			return formatter.Fail(ExitFailure, "E_DIVERGED", "cannot resume session", err)
		}
		return formatter.Fail(ExitCommandError, rules.ErrCodeGeneric, "failed to open session", err)
	}

	before, err := store.GetState()
	if err != nil {
		return formatter.Fail(ExitCommandError, rules.ErrCodeGeneric, "failed to read state", err)
	}
	if _, err := store.Dispatch(action); err != nil {
		return formatter.Fail(ExitFailure, errorCode(err), fmt.Sprintf("dispatch %s failed", action.TypeName()), err)
	}
	after, err := store.GetState()
	if err != nil {
		return formatter.Fail(ExitCommandError, rules.ErrCodeGeneric, "failed to read state", err)
	}

	seq, err := j.LastSeq(ctx, store.SessionID)
	if err != nil {
		return formatter.Fail(ExitCommandError, rules.ErrCodeGeneric, "failed to read journal", err)
	}

	result := DispatchResult{
		SessionID:  store.SessionID,
		Seq:        seq,
		ActionType: action.TypeName(),
		Changed:    !ir.Same(before, after),
		State:      after,
		StateHash:  stateHash(after),
		Created:    !exists,
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ %s applied to session %s (seq %d)\n", result.ActionType, result.SessionID, result.Seq)
	if !result.Changed {
		fmt.Fprintln(formatter.Writer, "  state unchanged")
	}
	fmt.Fprintf(formatter.Writer, "  state: %s\n", canonicalText(after))
	return nil
}

// errorCode classifies a dispatch error the same way scenario traces do.
func errorCode(err error) string {
	return harness.ErrorCode(err)
}
