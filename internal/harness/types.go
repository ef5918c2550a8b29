package harness

import (
	"github.com/roach88/tally/internal/journal"
	"github.com/roach88/tally/ir"
)

// Trace event kinds.
const (
	EventDispatch = "dispatch"
	EventReplace  = "replace"
)

// TraceEvent records one step as the store saw it.
type TraceEvent struct {
	Seq        int64       `json:"seq"`
	Kind       string      `json:"kind"`
	ActionType string      `json:"action_type,omitempty"`
	Action     ir.IRObject `json:"action,omitempty"`
	Error      string      `json:"error,omitempty"`
	Changed    bool        `json:"changed"`
	StateHash  string      `json:"state_hash,omitempty"`
}

// OK reports whether the step succeeded.
func (e TraceEvent) OK() bool {
	return e.Error == ""
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step expectation and assertion held.
	Pass bool `json:"pass"`

	// SessionID is the journal session the run recorded into.
	SessionID string `json:"session_id"`

	// Trace contains one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// FinalState is the store state after the last step.
	FinalState ir.IRValue `json:"final_state"`

	// Replay is the journal replay report, nil when the scenario replaced
	// its specs.
	Replay *journal.ReplayReport `json:"-"`
}

// NewResult creates a new passing result.
func NewResult(sessionID string) *Result {
	return &Result{
		Pass:      true,
		SessionID: sessionID,
		Trace:     []TraceEvent{},
		Errors:    []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
