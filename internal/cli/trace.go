package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/rules"
	"github.com/roach88/tally/ir"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string
	Action   string // optional - filter to specific action type
}

// TraceEntry is one journaled action in the timeline.
type TraceEntry struct {
	Seq        int64       `json:"seq"`
	ID         string      `json:"id"`
	ActionType string      `json:"action_type"`
	Action     ir.IRObject `json:"action"`
	StateHash  string      `json:"state_hash"`
}

// TraceStats holds summary statistics for a session.
type TraceStats struct {
	TotalEntries int            `json:"total_entries"`
	ByType       map[string]int `json:"by_type"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	SessionID        string       `json:"session_id"`
	SpecHash         string       `json:"spec_hash"`
	InitialStateHash string       `json:"initial_state_hash"`
	Timeline         []TraceEntry `json:"timeline"`
	Stats            TraceStats   `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the journal of a session",
		Long: `Show the journaled actions of a session in seq order.

The output includes:
- Timeline: every applied action with the state hash it produced
- Stats: entry counts per action type

Examples:
  tally trace --db ./tally.db --session demo
  tally trace --db ./tally.db --session demo --action INCREMENT
  tally trace --session demo --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default from config)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to trace (required)")
	_ = cmd.MarkFlagRequired("session")
	cmd.Flags().StringVar(&opts.Action, "action", "", "filter to specific action type")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	j, err := openExistingJournal(opts.database(opts.Database))
	if err != nil {
		return formatter.Fail(ExitCommandError, rules.ErrCodeNotFound, "failed to open database", err)
	}
	defer j.Close()

	session, exists, err := findSession(ctx, j, opts.Session)
	if err != nil {
		return formatter.Fail(ExitCommandError, rules.ErrCodeGeneric, "failed to look up session", err)
	}
	if !exists {
		return formatter.Fail(ExitCommandError, rules.ErrCodeNotFound, fmt.Sprintf("session not found: %s", opts.Session), nil)
	}

	entries, err := j.ReadEntries(ctx, session.ID)
	if err != nil {
		return formatter.Fail(ExitCommandError, rules.ErrCodeGeneric, "failed to read entries", err)
	}
	counts, err := j.CountByType(ctx, session.ID)
	if err != nil {
		return formatter.Fail(ExitCommandError, rules.ErrCodeGeneric, "failed to count entries", err)
	}

	result := TraceResult{
		SessionID:        session.ID,
		SpecHash:         session.SpecHash,
		InitialStateHash: session.InitialStateHash,
		Timeline:         []TraceEntry{},
		Stats:            TraceStats{TotalEntries: len(entries), ByType: counts},
	}
	for _, e := range entries {
		if opts.Action != "" && e.ActionType != opts.Action {
			continue
		}
		result.Timeline = append(result.Timeline, TraceEntry{
			Seq:        e.Seq,
			ID:         e.ID,
			ActionType: e.ActionType,
			Action:     e.Action.Object(),
			StateHash:  e.StateHash,
		})
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	return outputTraceText(formatter, result)
}

func outputTraceText(formatter *OutputFormatter, result TraceResult) error {
	w := formatter.Writer

	fmt.Fprintf(w, "Session: %s\n", result.SessionID)
	fmt.Fprintf(w, "Spec hash: %s\n", result.SpecHash)
	if formatter.Verbose {
		fmt.Fprintf(w, "Initial state hash: %s\n", result.InitialStateHash)
	}
	fmt.Fprintln(w)

	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No entries.")
	}
	for _, e := range result.Timeline {
		fmt.Fprintf(w, "[%d] %s %s\n", e.Seq, e.ActionType, canonicalText(e.Action))
		if formatter.Verbose {
			fmt.Fprintf(w, "     state %s\n", e.StateHash)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Entries: %d\n", result.Stats.TotalEntries)
	for _, actionType := range ir.SortKeys(result.Stats.ByType) {
		fmt.Fprintf(w, "  %s: %d\n", actionType, result.Stats.ByType[actionType])
	}
	return nil
}
