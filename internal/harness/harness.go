package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/tally/engine"
	"github.com/roach88/tally/internal/journal"
	"github.com/roach88/tally/internal/rules"
	"github.com/roach88/tally/ir"
)

// Error codes reported for failures that are not engine errors.
const (
	ErrCodeRuleEval = "RULE_EVAL"
	ErrCodeOther    = "ERROR"
)

// RunOption configures Run.
type RunOption func(*runConfig)

type runConfig struct {
	logger *slog.Logger
}

// WithLogger sets the logger handed to the store and journal.
// Defaults to a logger that discards everything.
func WithLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// Run executes a scenario and returns the result.
//
// The scenario is executed against a fresh in-memory journal, so every run
// starts from the same state. A returned error means the scenario could not
// be executed at all; step and assertion failures are reported in Result.
func Run(scenario *Scenario, opts ...RunOption) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario, opts ...RunOption) (*Result, error) {
	cfg := &runConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	specs, err := loadSpecs(scenario.Specs)
	if err != nil {
		return nil, fmt.Errorf("loading specs: %w", err)
	}
	specHash, err := rules.SpecHash(specs)
	if err != nil {
		return nil, fmt.Errorf("hashing specs: %w", err)
	}

	var preloaded ir.IRValue
	if scenario.Preloaded != nil {
		preloaded, err = ir.FromGo(scenario.Preloaded)
		if err != nil {
			return nil, fmt.Errorf("preloaded state: %w", err)
		}
	}

	j, err := journal.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	defer j.Close()

	sessionID := scenario.Session
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	h := &runner{clock: journal.NewClock()}
	reducer := rules.Combine(specs, engine.CombineWithLogger(cfg.logger))

	store, err := engine.New(reducer,
		engine.WithPreloadedState(preloaded),
		engine.WithLogger(cfg.logger),
		engine.WithEnhancer(engine.ComposeEnhancers(
			engine.ApplyMiddleware(h.traceMiddleware()),
			journal.Recorder(ctx, j, sessionID, journal.NewClock(), journal.WithRecorderLogger(cfg.logger)),
		)))
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	initial, err := store.GetState()
	if err != nil {
		return nil, fmt.Errorf("reading initial state: %w", err)
	}
	session, err := journal.NewSession(sessionID, specHash, preloaded, initial)
	if err != nil {
		return nil, err
	}
	if err := j.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	result := NewResult(sessionID)
	replaced := false

	for i, step := range scenario.Steps {
		var stepErr error
		if step.Dispatch != nil {
			stepErr = h.dispatch(store, step.Dispatch)
		} else {
			replaced = true
			stepErr = h.replace(store, step.ReplaceSpecs, cfg.logger)
		}
		checkStepError(result, i, step.ExpectError, stepErr)
	}

	result.Trace = h.trace
	result.FinalState, err = store.GetState()
	if err != nil {
		return nil, fmt.Errorf("reading final state: %w", err)
	}

	if !replaced {
		report, err := journal.Replay(ctx, j, sessionID, rules.Combine(specs, engine.CombineWithLogger(cfg.logger)),
			journal.WithReplayLogger(cfg.logger))
		if err != nil {
			return nil, err
		}
		result.Replay = report
		if !report.OK() {
			result.AddError(fmt.Sprintf("replay diverged: %s", report.Divergence))
		}
	}

	for _, msg := range EvaluateAssertions(scenario.Assertions, result) {
		result.AddError(msg)
	}

	return result, nil
}

// runner holds the trace built while a scenario executes.
type runner struct {
	clock   *journal.Clock
	trace   []TraceEvent
}

// traceMiddleware records one event per dispatch that reaches the store.
func (h *runner) traceMiddleware() engine.Middleware {
	return func(api engine.MiddlewareAPI) func(next engine.DispatchFunc) engine.DispatchFunc {
		return func(next engine.DispatchFunc) engine.DispatchFunc {
			return func(action ir.Action) (ir.Action, error) {
				before, _ := api.GetState()
				result, err := next(action)

				event := TraceEvent{
					Seq:        h.clock.Next(),
					Kind:       EventDispatch,
					ActionType: action.TypeName(),
					Action:     action.Object(),
				}
				if err != nil {
					event.Error = ErrorCode(err)
				} else {
					after, _ := api.GetState()
					event.Changed = !ir.Same(before, after)
					event.StateHash, _ = ir.StateHash(after)
				}
				h.trace = append(h.trace, event)
				return result, err
			}
		}
	}
}

func (h *runner) dispatch(store engine.Store, fields map[string]any) error {
	value, err := ir.FromGo(fields)
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	obj, ok := value.(ir.IRObject)
	if !ok {
		return fmt.Errorf("dispatch: action must be an object")
	}
	_, err = store.Dispatch(ir.Action(obj))
	return err
}

func (h *runner) replace(store engine.Store, paths []string, logger *slog.Logger) error {
	before, _ := store.GetState()
	event := TraceEvent{Seq: h.clock.Next(), Kind: EventReplace}

	err := func() error {
		specs, err := loadSpecs(paths)
		if err != nil {
			return err
		}
		return store.ReplaceReducer(rules.Combine(specs, engine.CombineWithLogger(logger)))
	}()
	if err != nil {
		event.Error = ErrorCode(err)
	} else {
		after, _ := store.GetState()
		event.Changed = !ir.Same(before, after)
		event.StateHash, _ = ir.StateHash(after)
	}
	h.trace = append(h.trace, event)
	return err
}

// ErrorCode classifies an error for traces and step expectations.
func ErrorCode(err error) string {
	var engineErr *engine.Error
	if errors.As(err, &engineErr) {
		return string(engineErr.Code)
	}
	var evalErr *rules.EvalError
	if errors.As(err, &evalErr) {
		return ErrCodeRuleEval
	}
	return ErrCodeOther
}

func checkStepError(result *Result, index int, expected string, err error) {
	switch {
	case expected == "" && err != nil:
		result.AddError(fmt.Sprintf("step %d: unexpected error: %v", index, err))
	case expected != "" && err == nil:
		result.AddError(fmt.Sprintf("step %d: expected error %s, got success", index, expected))
	case expected != "" && ErrorCode(err) != expected:
		result.AddError(fmt.Sprintf("step %d: expected error %s, got %s: %v", index, expected, ErrorCode(err), err))
	}
}

// loadSpecs compiles slice specs from a mix of directories and .cue files.
func loadSpecs(paths []string) ([]rules.SliceSpec, error) {
	var specs []rules.SliceSpec
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		loaded, err := rules.LoadDir(p)
		if err != nil {
			return nil, err
		}
		specs = append(specs, loaded...)
	}
	if len(files) > 0 {
		loaded, err := rules.LoadFiles(files...)
		if err != nil {
			return nil, err
		}
		specs = append(specs, loaded...)
	}
	return specs, nil
}
