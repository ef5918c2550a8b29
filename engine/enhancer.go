package engine

import "github.com/roach88/tally/ir"

// Constructor builds a store from a reducer and an optional preloaded state.
type Constructor func(reducer Reducer, preloaded ir.IRValue) (Store, error)

// Enhancer wraps store construction.
//
// It receives the constructor it should call (the plain one, or one already
// wrapped by another enhancer) and returns a constructor with the same
// contract. The engine makes no assumption about what an enhancer does in
// between.
type Enhancer func(next Constructor) Constructor

// ComposeEnhancers combines enhancers right to left:
// ComposeEnhancers(f, g)(c) == f(g(c)). With no arguments it returns the
// identity enhancer.
func ComposeEnhancers(enhancers ...Enhancer) Enhancer {
	return func(next Constructor) Constructor {
		for i := len(enhancers) - 1; i >= 0; i-- {
			if enhancers[i] == nil {
				return func(Reducer, ir.IRValue) (Store, error) {
					return nil, argumentError("enhancer %d passed to ComposeEnhancers is nil", i)
				}
			}
			next = enhancers[i](next)
		}
		return next
	}
}
