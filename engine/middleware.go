package engine

import "github.com/roach88/tally/ir"

// MiddlewareAPI is the slice of the store handed to each middleware.
// Dispatch goes through the whole middleware chain.
type MiddlewareAPI struct {
	GetState func() (ir.IRValue, error)
	Dispatch DispatchFunc
}

// Middleware decorates dispatch. It is called once with the store API and
// returns a wrapper that receives the next dispatch function in the chain.
type Middleware func(api MiddlewareAPI) func(next DispatchFunc) DispatchFunc

// ApplyMiddleware returns an enhancer that routes Dispatch through the given
// middleware, first to last. The seeding INIT and REPLACE dispatches happen
// on the inner store and do not pass through the chain.
func ApplyMiddleware(middlewares ...Middleware) Enhancer {
	return func(next Constructor) Constructor {
		return func(reducer Reducer, preloaded ir.IRValue) (Store, error) {
			inner, err := next(reducer, preloaded)
			if err != nil {
				return nil, err
			}

			ms := &middlewareStore{Store: inner}
			ms.dispatch = func(action ir.Action) (ir.Action, error) {
				return nil, &Error{
					Code:    ErrCodeMiddlewareConstruction,
					Message: "dispatching while constructing middleware is not allowed; other middleware would not be applied to this dispatch",
				}
			}

			api := MiddlewareAPI{
				GetState: inner.GetState,
				Dispatch: func(action ir.Action) (ir.Action, error) {
					return ms.dispatch(action)
				},
			}

			chain := make([]func(DispatchFunc) DispatchFunc, len(middlewares))
			for i, mw := range middlewares {
				if mw == nil {
					return nil, argumentError("middleware %d is nil", i)
				}
				chain[i] = mw(api)
				if chain[i] == nil {
					return nil, argumentError("middleware %d returned a nil wrapper", i)
				}
			}

			dispatch := DispatchFunc(inner.Dispatch)
			for i := len(chain) - 1; i >= 0; i-- {
				dispatch = chain[i](dispatch)
			}
			ms.dispatch = dispatch

			return ms, nil
		}
	}
}

// middlewareStore is a Store whose Dispatch runs the middleware chain.
type middlewareStore struct {
	Store
	dispatch DispatchFunc
}

func (m *middlewareStore) Dispatch(action ir.Action) (ir.Action, error) {
	return m.dispatch(action)
}
