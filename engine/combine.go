package engine

import (
	"fmt"
	"log/slog"

	"github.com/roach88/tally/ir"
)

// CombineOption configures CombineReducers.
type CombineOption func(*combineConfig)

type combineConfig struct {
	logger *slog.Logger
}

// CombineWithLogger sets the logger used for shape warnings.
// Defaults to slog.Default().
func CombineWithLogger(logger *slog.Logger) CombineOption {
	return func(c *combineConfig) {
		c.logger = logger
	}
}

// CombineReducers merges per-key reducers into one reducer over an IRObject.
//
// Nil entries are dropped with a warning. The retained reducers are probed
// once, right here, with an absent state and the reserved INIT action and a
// random unknown action; a reducer that returns nil for either is broken.
// That failure is not returned from CombineReducers: the composite reducer
// returns the same error on every call, so a misconfigured composite never
// works for some actions and fails for others.
//
// Each call feeds state[key] to the reducer for key, in RFC 8785 key order.
// If no slice changed by reference and the key set did not change, the
// composite returns the incoming state itself; otherwise it returns a new
// object holding every slice. Keys in the incoming state that have no
// reducer are dropped.
func CombineReducers(reducers map[string]Reducer, opts ...CombineOption) Reducer {
	cfg := &combineConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	final := make(map[string]Reducer, len(reducers))
	for _, key := range ir.SortKeys(reducers) {
		if reducers[key] == nil {
			cfg.logger.Warn("no reducer provided for key", "key", key)
			continue
		}
		final[key] = reducers[key]
	}

	// Key order NEVER changes after this point.
	keys := ir.SortKeys(final)
	shapeErr := assertReducerShape(keys, final)
	if shapeErr != nil {
		cfg.logger.Error("combined reducer is misconfigured", "error", shapeErr)
	}
	warnings := newShapeWarnings(cfg.logger, final)

	return func(state ir.IRValue, action ir.Action) (ir.IRValue, error) {
		if shapeErr != nil {
			return nil, shapeErr
		}

		if state == nil {
			state = ir.IRObject{}
		}
		warnings.check(state, action, keys)

		prev, _ := state.(ir.IRObject)
		next := make(ir.IRObject, len(keys))
		hasChanged := false

		for _, key := range keys {
			prevSlice := prev[key]
			nextSlice, err := final[key](prevSlice, action)
			if err != nil {
				return nil, err
			}
			if nextSlice == nil {
				return nil, NewReducerContractError(key, action.TypeName(), fmt.Sprintf(
					"when called with an action of type %q, the slice reducer for key %q returned an absent value; "+
						"to ignore an action, return the previous state, or IRNull for an empty value",
					action.TypeName(), key))
			}
			next[key] = nextSlice
			hasChanged = hasChanged || !ir.Same(prevSlice, nextSlice)
		}

		// Slices added or removed (e.g. after ReplaceReducer) count as a change.
		hasChanged = hasChanged || len(keys) != len(prev)
		if hasChanged {
			return next, nil
		}
		return state, nil
	}
}
