package rules

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"

	"github.com/roach88/tally/engine"
	"github.com/roach88/tally/ir"
)

// Reducer returns the slice reducer for s.
//
// An absent state becomes the initial value. Actions whose type is not a
// string, or has no rule, return the state unchanged.
func (s *SliceSpec) Reducer() engine.Reducer {
	rules := make(map[string]Rule, len(s.Rules))
	for _, r := range s.Rules {
		rules[r.ActionType] = r
	}

	return func(state ir.IRValue, action ir.Action) (ir.IRValue, error) {
		if state == nil {
			state = s.Initial
		}

		actionType, ok := action.Type().(ir.IRString)
		if !ok {
			return state, nil
		}
		rule, ok := rules[string(actionType)]
		if !ok {
			return state, nil
		}

		env := map[string]any{
			"state":  ir.ToGo(state),
			"action": ir.ToGo(action.Object()),
		}
		out, err := exprlang.Run(rule.program, env)
		if err != nil {
			return nil, &EvalError{Slice: s.Name, ActionType: rule.ActionType, Expr: rule.Expr, Err: err}
		}

		next, err := ir.FromGo(out)
		if err != nil {
			return nil, &EvalError{
				Slice:      s.Name,
				ActionType: rule.ActionType,
				Expr:       rule.Expr,
				Err:        fmt.Errorf("result: %w", err),
			}
		}
		return next, nil
	}
}

// Build returns the slice reducers keyed by slice name.
func Build(specs []SliceSpec) map[string]engine.Reducer {
	reducers := make(map[string]engine.Reducer, len(specs))
	for i := range specs {
		reducers[specs[i].Name] = specs[i].Reducer()
	}
	return reducers
}

// Combine builds the composite root reducer for specs.
func Combine(specs []SliceSpec, opts ...engine.CombineOption) engine.Reducer {
	return engine.CombineReducers(Build(specs), opts...)
}

// Document renders all specs as one object keyed by slice name.
func Document(specs []SliceSpec) ir.IRObject {
	doc := ir.IRObject{}
	for i := range specs {
		doc[specs[i].Name] = specs[i].Object()
	}
	return doc
}

// SpecHash returns the content hash of specs. It changes whenever a slice
// name, initial value or rule changes.
func SpecHash(specs []SliceSpec) (string, error) {
	return ir.SpecHash(Document(specs))
}
