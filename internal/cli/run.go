package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tally/engine"
	"github.com/roach88/tally/internal/journal"
	"github.com/roach88/tally/internal/rules"
	"github.com/roach88/tally/ir"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database  string
	Actions   string
	Session   string
	Preloaded string
	Watch     bool

	// SessionGenerator allows overriding the session ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	SessionGenerator journal.SessionIDGenerator
}

// RunResult describes a completed run.
type RunResult struct {
	SessionID  string     `json:"session_id"`
	Dispatched int        `json:"dispatched"`
	FinalState ir.IRValue `json:"final_state"`
	StateHash  string     `json:"state_hash"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [specs-dir]",
		Short: "Start a session and dispatch a file of actions",
		Long: `Start a new journaled session and dispatch every action in a file.

The actions file is a YAML (or JSON) list of action objects. Each applied
action is appended to the journal together with the resulting state hash.
Dispatching stops at the first failing action.

Exit codes:
  0 - All actions dispatched
  1 - An action failed
  2 - Command error (bad specs, unreadable actions file, etc.)

Examples:
  tally run ./specs --db ./tally.db --actions ./actions.yaml
  tally run ./specs --actions ./actions.yaml --preloaded '{"count": 5}' --watch`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(opts, rootOpts.specsDir(args), cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default from config)")
	cmd.Flags().StringVar(&opts.Actions, "actions", "", "YAML or JSON file with a list of actions (required)")
	_ = cmd.MarkFlagRequired("actions")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session ID (default: new UUIDv7)")
	cmd.Flags().StringVar(&opts.Preloaded, "preloaded", "", "preloaded state as JSON")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "print the state after every dispatch")

	return cmd
}

func runSession(opts *RunOptions, specsDir string, cmd *cobra.Command) error {
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

	actions, err := readActions(opts.Actions)
	if err != nil {
		return formatter.Fail(ExitCommandError, rules.ErrCodeGeneric, "failed to read actions", err)
	}

	var preloaded ir.IRValue
	if opts.Preloaded != "" {
		preloaded, err = ir.ParseJSON([]byte(opts.Preloaded))
		if err != nil {
			return formatter.Fail(ExitCommandError, rules.ErrCodeGeneric, "invalid --preloaded JSON", err)
		}
	}

	dbPath := opts.database(opts.Database)
	j, err := journal.Open(dbPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, rules.ErrCodeGeneric, "failed to open database", err)
	}
	defer func() {
		if closeErr := j.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	sessionID := opts.Session
	if sessionID == "" {
		gen := opts.SessionGenerator
		if gen == nil {
			gen = journal.UUIDv7Generator{}
		}
		sessionID = gen.Generate()
	}
	if _, exists, err := findSession(ctx, j, sessionID); err != nil {
		return formatter.Fail(ExitCommandError, rules.ErrCodeGeneric, "failed to look up session", err)
	} else if exists {
		return formatter.Fail(ExitCommandError, rules.ErrCodeGeneric,
			fmt.Sprintf("session %s already exists; use dispatch to continue it", sessionID), nil)
	}

	store, err := startSession(ctx, j, specs, sessionID, preloaded, logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, rules.ErrCodeGeneric, "failed to start session", err)
	}

	unsubscribe, err := store.Subscribe(func() {
		logger.Debug("state updated", "session", sessionID)
	})
	if err != nil {
		return formatter.Fail(ExitCommandError, rules.ErrCodeGeneric, "failed to subscribe", err)
	}
	defer unsubscribe()

	if opts.Watch {
		sub, err := store.Observable().Subscribe(&engine.Observer{
			Next: func(state ir.IRValue) {
				data, err := ir.MarshalCanonical(state)
				if err != nil {
					return
				}
				fmt.Fprintf(formatter.GetErrWriter(), "state: %s\n", data)
			},
		})
		if err != nil {
			return formatter.Fail(ExitCommandError, rules.ErrCodeGeneric, "failed to watch state", err)
		}
		defer sub.Unsubscribe()
	}

	result := RunResult{SessionID: sessionID}
	for i, action := range actions {
		if _, err := store.Dispatch(action); err != nil {
			return formatter.Fail(ExitFailure, errorCode(err),
				fmt.Sprintf("action %d (%s) failed", i, action.TypeName()), err)
		}
		result.Dispatched++
	}

	result.FinalState, err = store.GetState()
	if err != nil {
		return formatter.Fail(ExitCommandError, rules.ErrCodeGeneric, "failed to read state", err)
	}
	result.StateHash = stateHash(result.FinalState)
	logger.Info("run complete", "session", sessionID, "dispatched", result.Dispatched, "db", dbPath)

	if formatter.JSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Session %s: dispatched %d action(s)\n", sessionID, result.Dispatched)
	fmt.Fprintf(formatter.Writer, "  state: %s\n", canonicalText(result.FinalState))
	fmt.Fprintf(formatter.Writer, "  hash:  %s\n", result.StateHash)
	return nil
}

// readActions decodes a YAML or JSON list of action objects.
func readActions(path string) ([]ir.Action, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw []any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	actions := make([]ir.Action, 0, len(raw))
	for i, item := range raw {
		value, err := ir.FromGo(item)
		if err != nil {
			return nil, fmt.Errorf("actions[%d]: %w", i, err)
		}
		action, err := ir.ActionFromValue(value)
		if err != nil {
			return nil, fmt.Errorf("actions[%d]: %w", i, err)
		}
		actions = append(actions, action)
	}
	return actions, nil
}

// canonicalText renders v as canonical JSON for text output.
func canonicalText(v ir.IRValue) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
