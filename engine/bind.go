package engine

import "github.com/roach88/tally/ir"

// ActionCreator builds an action from arguments.
type ActionCreator func(args ...ir.IRValue) ir.Action

// BoundActionCreator builds an action and dispatches it.
type BoundActionCreator func(args ...ir.IRValue) (ir.Action, error)

// BindActionCreator wraps creator so that calling it dispatches the result.
func BindActionCreator(creator ActionCreator, dispatch DispatchFunc) BoundActionCreator {
	return func(args ...ir.IRValue) (ir.Action, error) {
		return dispatch(creator(args...))
	}
}

// BindActionCreators binds every creator in the map. Nil creators are
// skipped.
func BindActionCreators(creators map[string]ActionCreator, dispatch DispatchFunc) (map[string]BoundActionCreator, error) {
	if dispatch == nil {
		return nil, argumentError("expected dispatch to be a function, got nil")
	}

	bound := make(map[string]BoundActionCreator, len(creators))
	for name, creator := range creators {
		if creator == nil {
			continue
		}
		bound[name] = BindActionCreator(creator, dispatch)
	}
	return bound, nil
}
