// Package rules compiles declarative slice reducers from CUE.
//
// A spec directory holds one CUE package. Every field under the top-level
// "slice" struct declares one state slice:
//
//	slice: count: {
//	    initial: 0
//	    on: {
//	        INCREMENT: "state + (action.by ?? 1)"
//	        RESET:     "0"
//	    }
//	}
//
// initial is the value the slice reducer returns for an absent state. Each
// entry under "on" maps an action type to an expr-lang expression evaluated
// with two variables: state (the slice's previous value) and action (the
// whole action object). The expression result becomes the next slice state.
// Action types with no rule leave the slice untouched.
//
// Expressions run on plain Go values (map[string]any, []any, int, string,
// bool, nil). Floats may appear in intermediate results but a slice value
// must be integral. Helper functions push, assoc and dissoc build updated
// copies of lists and objects.
//
// Compiled slices plug into the engine through (*SliceSpec).Reducer and
// Combine.
package rules
