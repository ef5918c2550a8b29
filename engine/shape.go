package engine

import (
	"fmt"
	"log/slog"

	"github.com/roach88/tally/ir"
)

// assertReducerShape probes each slice reducer once with an absent state.
//
// A reducer must hand back its initial state for the INIT action and for an
// action type it has never seen. Returning nil for the probe means the
// reducer special-cases INIT instead of defaulting, which is not allowed:
// the reserved types are private to the engine.
func assertReducerShape(keys []string, reducers map[string]Reducer) error {
	for _, key := range keys {
		reducer := reducers[key]

		init := initAction()
		initial, err := reducer(nil, init)
		if err != nil {
			return fmt.Errorf("slice reducer for key %q failed during initialization: %w", key, err)
		}
		if initial == nil {
			return NewReducerContractError(key, init.TypeName(), fmt.Sprintf(
				"the slice reducer for key %q returned an absent value during initialization; "+
					"if the state passed to the reducer is absent you must return the initial state, "+
					"which may not be absent (use IRNull for an empty value)", key))
		}

		probe := probeAction()
		probed, err := reducer(nil, probe)
		if err != nil {
			return fmt.Errorf("slice reducer for key %q failed when probed with a random type: %w", key, err)
		}
		if probed == nil {
			return NewReducerContractError(key, probe.TypeName(), fmt.Sprintf(
				"the slice reducer for key %q returned an absent value when probed with a random type; "+
					"do not handle the reserved @@tally/* actions, return the current state for any unknown action "+
					"and the initial state when the current state is absent", key))
		}
	}
	return nil
}

// shapeWarnings reports non-fatal state shape problems once per key.
type shapeWarnings struct {
	logger     *slog.Logger
	reducers   map[string]Reducer
	unexpected map[string]bool
}

func newShapeWarnings(logger *slog.Logger, reducers map[string]Reducer) *shapeWarnings {
	return &shapeWarnings{
		logger:     logger,
		reducers:   reducers,
		unexpected: make(map[string]bool),
	}
}

// check logs problems with the incoming composite state. It stays quiet for
// the REPLACE action, where stale keys are expected.
func (w *shapeWarnings) check(state ir.IRValue, action ir.Action, keys []string) {
	if action.TypeName() == ActionTypeReplace {
		return
	}

	source := "previous state received by the reducer"
	if action.TypeName() == ActionTypeInit {
		source = "preloaded state"
	}

	if len(keys) == 0 {
		w.logger.Warn("store does not have a valid reducer; make sure the map passed to CombineReducers has non-nil reducers")
		return
	}

	obj, ok := state.(ir.IRObject)
	if !ok {
		w.logger.Warn("state has unexpected type, expected an object",
			"source", source,
			"kind", ir.Kind(state),
			"expected_keys", keys)
		return
	}

	var unexpected []string
	for _, key := range obj.SortedKeys() {
		if _, known := w.reducers[key]; known || w.unexpected[key] {
			continue
		}
		w.unexpected[key] = true
		unexpected = append(unexpected, key)
	}
	if len(unexpected) > 0 {
		w.logger.Warn("unexpected keys found in state; they will be ignored",
			"source", source,
			"keys", unexpected,
			"expected_keys", keys)
	}
}
