package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/ir"
)

func recordingMiddleware(name string, log *[]string) Middleware {
	return func(api MiddlewareAPI) func(next DispatchFunc) DispatchFunc {
		return func(next DispatchFunc) DispatchFunc {
			return func(action ir.Action) (ir.Action, error) {
				*log = append(*log, name+" before "+action.TypeName())
				result, err := next(action)
				*log = append(*log, name+" after "+action.TypeName())
				return result, err
			}
		}
	}
}

func TestApplyMiddleware_Order(t *testing.T) {
	var log []string
	s := mustNew(t, counterReducer, WithEnhancer(ApplyMiddleware(
		recordingMiddleware("a", &log),
		recordingMiddleware("b", &log),
	)))

	// Seeding INIT bypasses the chain.
	assert.Empty(t, log)

	_, err := s.Dispatch(ir.NewAction("INCREMENT"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"a before INCREMENT",
		"b before INCREMENT",
		"b after INCREMENT",
		"a after INCREMENT",
	}, log)
	assert.Equal(t, ir.IRInt(1), mustState(t, s))
}

func TestApplyMiddleware_APIDispatchRunsWholeChain(t *testing.T) {
	var log []string

	// expand turns DOUBLE into two INCREMENTs dispatched from the top.
	expand := func(api MiddlewareAPI) func(next DispatchFunc) DispatchFunc {
		return func(next DispatchFunc) DispatchFunc {
			return func(action ir.Action) (ir.Action, error) {
				if action.TypeName() != "DOUBLE" {
					return next(action)
				}
				for i := 0; i < 2; i++ {
					if _, err := api.Dispatch(ir.NewAction("INCREMENT")); err != nil {
						return nil, err
					}
				}
				return action, nil
			}
		}
	}

	s := mustNew(t, counterReducer, WithEnhancer(ApplyMiddleware(
		expand,
		recordingMiddleware("log", &log),
	)))

	_, err := s.Dispatch(ir.NewAction("DOUBLE"))
	require.NoError(t, err)

	assert.Equal(t, ir.IRInt(2), mustState(t, s))
	assert.Equal(t, []string{
		"log before INCREMENT", "log after INCREMENT",
		"log before INCREMENT", "log after INCREMENT",
	}, log)
}

func TestApplyMiddleware_GetState(t *testing.T) {
	var seen []ir.IRValue
	peek := func(api MiddlewareAPI) func(next DispatchFunc) DispatchFunc {
		return func(next DispatchFunc) DispatchFunc {
			return func(action ir.Action) (ir.Action, error) {
				result, err := next(action)
				state, _ := api.GetState()
				seen = append(seen, state)
				return result, err
			}
		}
	}

	s := mustNew(t, counterReducer, WithEnhancer(ApplyMiddleware(peek)))
	_, err := s.Dispatch(ir.NewAction("INCREMENT"))
	require.NoError(t, err)

	assert.Equal(t, []ir.IRValue{ir.IRInt(1)}, seen)
}

func TestApplyMiddleware_DispatchDuringConstruction(t *testing.T) {
	eager := func(api MiddlewareAPI) func(next DispatchFunc) DispatchFunc {
		if _, err := api.Dispatch(ir.NewAction("EARLY")); err != nil {
			return func(DispatchFunc) DispatchFunc {
				return func(ir.Action) (ir.Action, error) { return nil, err }
			}
		}
		return func(next DispatchFunc) DispatchFunc { return next }
	}

	s := mustNew(t, counterReducer, WithEnhancer(ApplyMiddleware(eager)))
	_, err := s.Dispatch(ir.NewAction("INCREMENT"))
	require.Error(t, err)
	assert.True(t, IsArgumentError(err))
	assert.True(t, hasCode(err, ErrCodeMiddlewareConstruction))
}

func TestApplyMiddleware_NilMiddleware(t *testing.T) {
	_, err := New(counterReducer, WithLogger(quietLogger()), WithEnhancer(ApplyMiddleware(nil)))
	assert.True(t, IsArgumentError(err))
}

func TestApplyMiddleware_SubscribeReachesInnerStore(t *testing.T) {
	var log []string
	s := mustNew(t, counterReducer, WithEnhancer(ApplyMiddleware(recordingMiddleware("a", &log))))

	calls := 0
	_, err := s.Subscribe(func() { calls++ })
	require.NoError(t, err)

	_, err = s.Dispatch(ir.NewAction("INCREMENT"))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestApplyMiddleware_Empty(t *testing.T) {
	s := mustNew(t, counterReducer, WithEnhancer(ApplyMiddleware()))
	_, err := s.Dispatch(ir.NewAction("INCREMENT"))
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(1), mustState(t, s))
}
