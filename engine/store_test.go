package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/ir"
)

func TestNew_NilReducer(t *testing.T) {
	s, err := New(nil)
	require.Error(t, err)
	assert.Nil(t, s)
	assert.True(t, IsArgumentError(err))
}

func TestNew_SeedsStateFromReducer(t *testing.T) {
	s := mustNew(t, counterReducer)
	assert.Equal(t, ir.IRInt(0), mustState(t, s))
}

func TestNew_PreloadedState(t *testing.T) {
	s := mustNew(t, counterReducer, WithPreloadedState(ir.IRInt(5)))
	assert.Equal(t, ir.IRInt(5), mustState(t, s))
}

func TestNew_PreloadedNullIsNotAbsent(t *testing.T) {
	s := mustNew(t, counterReducer, WithPreloadedState(ir.IRNull{}))
	assert.Equal(t, ir.IRNull{}, mustState(t, s))
}

func TestNew_InitReachesReducer(t *testing.T) {
	var seen []string
	reducer := func(state ir.IRValue, action ir.Action) (ir.IRValue, error) {
		seen = append(seen, action.TypeName())
		return ir.IRString("ok"), nil
	}

	mustNew(t, reducer)

	require.Len(t, seen, 1)
	assert.Equal(t, ActionTypeInit, seen[0])
	assert.True(t, IsReservedActionType(ir.IRString(seen[0])))
}

func TestNew_ReducerFailsDuringInit(t *testing.T) {
	boom := errors.New("boom")
	s, err := New(func(ir.IRValue, ir.Action) (ir.IRValue, error) {
		return nil, boom
	}, WithLogger(quietLogger()))

	assert.Nil(t, s)
	assert.ErrorIs(t, err, boom)
}

func TestNew_ReducerReturnsNilDuringInit(t *testing.T) {
	s, err := New(func(ir.IRValue, ir.Action) (ir.IRValue, error) {
		return nil, nil
	}, WithLogger(quietLogger()))

	assert.Nil(t, s)
	assert.True(t, IsReducerContractError(err))
}

func TestDispatch_AppliesReducer(t *testing.T) {
	s := mustNew(t, counterReducer)

	_, err := s.Dispatch(ir.NewAction("INCREMENT"))
	require.NoError(t, err)
	_, err = s.Dispatch(ir.NewAction("INCREMENT"))
	require.NoError(t, err)
	_, err = s.Dispatch(ir.NewAction("DECREMENT"))
	require.NoError(t, err)

	assert.Equal(t, ir.IRInt(1), mustState(t, s))
}

func TestDispatch_ReturnsSameAction(t *testing.T) {
	s := mustNew(t, counterReducer)
	action := ir.NewAction("INCREMENT", ir.O("by", ir.IRInt(1)))

	got, err := s.Dispatch(action)
	require.NoError(t, err)
	assert.True(t, ir.SameAction(action, got))
}

func TestDispatch_UnknownActionKeepsStateReference(t *testing.T) {
	s := mustNew(t, todosReducer)
	_, err := s.Dispatch(ir.NewAction("ADD_TODO", ir.O("text", ir.IRString("a"))))
	require.NoError(t, err)
	before := mustState(t, s)

	_, err = s.Dispatch(ir.NewAction("NOOP"))
	require.NoError(t, err)

	assert.True(t, ir.Same(before, mustState(t, s)))
}

func TestDispatch_RejectsMalformedActions(t *testing.T) {
	s := mustNew(t, counterReducer)

	tests := []struct {
		name   string
		action ir.Action
	}{
		{"nil action", nil},
		{"missing type", ir.Action{"payload": ir.IRInt(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Dispatch(tt.action)
			require.Error(t, err)
			assert.True(t, IsActionShapeError(err))
			assert.Equal(t, ir.IRInt(0), mustState(t, s))
		})
	}
}

func TestDispatch_NullTypeIsAccepted(t *testing.T) {
	s := mustNew(t, counterReducer)
	_, err := s.Dispatch(ir.Action{ir.TypeKey: ir.IRNull{}})
	assert.NoError(t, err)
}

func TestDispatch_NonStringTypeIsAccepted(t *testing.T) {
	var seen ir.IRValue
	s := mustNew(t, func(state ir.IRValue, action ir.Action) (ir.IRValue, error) {
		seen = action.Type()
		return ir.IRInt(0), nil
	})

	_, err := s.Dispatch(ir.Action{ir.TypeKey: ir.IRInt(7)})
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(7), seen)
}

func TestDispatch_ReducerErrorLeavesStateAndListeners(t *testing.T) {
	boom := errors.New("boom")
	s := mustNew(t, func(state ir.IRValue, action ir.Action) (ir.IRValue, error) {
		if action.TypeName() == "FAIL" {
			return nil, boom
		}
		return counterReducer(state, action)
	})
	_, err := s.Dispatch(ir.NewAction("INCREMENT"))
	require.NoError(t, err)

	calls := 0
	_, err = s.Subscribe(func() { calls++ })
	require.NoError(t, err)

	_, err = s.Dispatch(ir.NewAction("FAIL"))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, ir.IRInt(1), mustState(t, s))
	assert.Equal(t, 0, calls)
}

func TestDispatch_NilResultIsContractViolation(t *testing.T) {
	s := mustNew(t, func(state ir.IRValue, action ir.Action) (ir.IRValue, error) {
		if action.TypeName() == "VANISH" {
			return nil, nil
		}
		return counterReducer(state, action)
	})

	_, err := s.Dispatch(ir.NewAction("VANISH"))
	require.Error(t, err)
	assert.True(t, IsReducerContractError(err))

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "VANISH", e.ActionType)
	assert.Empty(t, e.Key)
	assert.Equal(t, ir.IRInt(0), mustState(t, s))
}

func TestDispatch_PanicClearsDispatchingFlag(t *testing.T) {
	s := mustNew(t, func(state ir.IRValue, action ir.Action) (ir.IRValue, error) {
		if action.TypeName() == "PANIC" {
			panic("reducer exploded")
		}
		return counterReducer(state, action)
	})

	assert.Panics(t, func() {
		_, _ = s.Dispatch(ir.NewAction("PANIC"))
	})

	_, err := s.GetState()
	assert.NoError(t, err)
	_, err = s.Dispatch(ir.NewAction("INCREMENT"))
	assert.NoError(t, err)
}

func TestReentrancy_FromReducer(t *testing.T) {
	var s Store
	var unsubscribe Unsubscribe

	reducer := func(state ir.IRValue, action ir.Action) (ir.IRValue, error) {
		switch action.TypeName() {
		case "DISPATCH":
			_, err := s.Dispatch(ir.NewAction("INCREMENT"))
			return nil, err
		case "GET_STATE":
			_, err := s.GetState()
			return nil, err
		case "SUBSCRIBE":
			_, err := s.Subscribe(func() {})
			return nil, err
		case "UNSUBSCRIBE":
			return nil, unsubscribe()
		case "REPLACE_REDUCER":
			return nil, s.ReplaceReducer(counterReducer)
		}
		return counterReducer(state, action)
	}

	s = mustNew(t, reducer)
	var err error
	unsubscribe, err = s.Subscribe(func() {})
	require.NoError(t, err)

	for _, actionType := range []string{"DISPATCH", "GET_STATE", "SUBSCRIBE", "UNSUBSCRIBE", "REPLACE_REDUCER"} {
		t.Run(actionType, func(t *testing.T) {
			_, err := s.Dispatch(ir.NewAction(actionType))
			require.Error(t, err)
			assert.True(t, IsReentrancyError(err), "got %v", err)
			assert.Equal(t, ir.IRInt(0), mustState(t, s))
		})
	}
}

func TestReentrancy_DispatchErrorNamesAction(t *testing.T) {
	var s Store
	s = mustNew(t, func(state ir.IRValue, action ir.Action) (ir.IRValue, error) {
		if action.TypeName() == "OUTER" {
			_, err := s.Dispatch(ir.NewAction("INNER"))
			return nil, err
		}
		return counterReducer(state, action)
	})

	_, err := s.Dispatch(ir.NewAction("OUTER"))
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, ErrCodeReentrancy, e.Code)
	assert.Equal(t, "INNER", e.ActionType)
}

func TestSubscribe_NilListener(t *testing.T) {
	s := mustNew(t, counterReducer)
	_, err := s.Subscribe(nil)
	assert.True(t, IsArgumentError(err))
}

func TestSubscribe_ListenersRunInOrder(t *testing.T) {
	s := mustNew(t, counterReducer)
	var order []string

	_, err := s.Subscribe(func() { order = append(order, "a") })
	require.NoError(t, err)
	_, err = s.Subscribe(func() { order = append(order, "b") })
	require.NoError(t, err)

	_, err = s.Dispatch(ir.NewAction("INCREMENT"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, order)
}

func TestSubscribe_NotifiedEvenWhenStateUnchanged(t *testing.T) {
	s := mustNew(t, counterReducer)
	calls := 0
	_, err := s.Subscribe(func() { calls++ })
	require.NoError(t, err)

	_, err = s.Dispatch(ir.NewAction("NOOP"))
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}

func TestSubscribe_SameListenerTwice(t *testing.T) {
	s := mustNew(t, counterReducer)
	calls := 0
	listener := func() { calls++ }

	unsub1, err := s.Subscribe(listener)
	require.NoError(t, err)
	_, err = s.Subscribe(listener)
	require.NoError(t, err)

	_, err = s.Dispatch(ir.NewAction("INCREMENT"))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	require.NoError(t, unsub1())
	_, err = s.Dispatch(ir.NewAction("INCREMENT"))
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	s := mustNew(t, counterReducer)
	var aCalls, bCalls int

	unsubA, err := s.Subscribe(func() { aCalls++ })
	require.NoError(t, err)
	_, err = s.Subscribe(func() { bCalls++ })
	require.NoError(t, err)

	require.NoError(t, unsubA())
	require.NoError(t, unsubA())

	_, err = s.Dispatch(ir.NewAction("INCREMENT"))
	require.NoError(t, err)

	assert.Equal(t, 0, aCalls)
	assert.Equal(t, 1, bCalls)
}

func TestListeners_SubscribeDuringDispatchTakesEffectNextTime(t *testing.T) {
	s := mustNew(t, counterReducer)
	var lateCalls int
	subscribed := false

	_, err := s.Subscribe(func() {
		if subscribed {
			return
		}
		subscribed = true
		_, err := s.Subscribe(func() { lateCalls++ })
		require.NoError(t, err)
	})
	require.NoError(t, err)

	_, err = s.Dispatch(ir.NewAction("INCREMENT"))
	require.NoError(t, err)
	assert.Equal(t, 0, lateCalls)

	_, err = s.Dispatch(ir.NewAction("INCREMENT"))
	require.NoError(t, err)
	assert.Equal(t, 1, lateCalls)
}

func TestListeners_UnsubscribeDuringDispatchTakesEffectNextTime(t *testing.T) {
	s := mustNew(t, counterReducer)
	var bCalls int
	var unsubB Unsubscribe

	_, err := s.Subscribe(func() {
		require.NoError(t, unsubB())
	})
	require.NoError(t, err)
	unsubB, err = s.Subscribe(func() { bCalls++ })
	require.NoError(t, err)

	_, err = s.Dispatch(ir.NewAction("INCREMENT"))
	require.NoError(t, err)
	assert.Equal(t, 1, bCalls)

	_, err = s.Dispatch(ir.NewAction("INCREMENT"))
	require.NoError(t, err)
	assert.Equal(t, 1, bCalls)
}

func TestListeners_NestedDispatchSeesLatestState(t *testing.T) {
	s := mustNew(t, counterReducer)
	var seen []ir.IRValue
	nested := false

	_, err := s.Subscribe(func() {
		if nested {
			return
		}
		nested = true
		_, err := s.Dispatch(ir.NewAction("INCREMENT"))
		require.NoError(t, err)
	})
	require.NoError(t, err)
	_, err = s.Subscribe(func() {
		seen = append(seen, mustState(t, s))
	})
	require.NoError(t, err)

	_, err = s.Dispatch(ir.NewAction("INCREMENT"))
	require.NoError(t, err)

	assert.Equal(t, []ir.IRValue{ir.IRInt(2), ir.IRInt(2)}, seen)
	assert.Equal(t, ir.IRInt(2), mustState(t, s))
}

func TestReplaceReducer_SwapsAndReseeds(t *testing.T) {
	s := mustNew(t, CombineReducers(map[string]Reducer{
		"counter": counterReducer,
	}, CombineWithLogger(quietLogger())))
	_, err := s.Dispatch(ir.NewAction("INCREMENT"))
	require.NoError(t, err)

	calls := 0
	_, err = s.Subscribe(func() { calls++ })
	require.NoError(t, err)

	err = s.ReplaceReducer(CombineReducers(map[string]Reducer{
		"counter": counterReducer,
		"todos":   todosReducer,
	}, CombineWithLogger(quietLogger())))
	require.NoError(t, err)

	expected := ir.IRObject{"counter": ir.IRInt(1), "todos": ir.IRArray{}}
	assert.True(t, ir.Equal(expected, mustState(t, s)))
	assert.Equal(t, 1, calls)
}

func TestReplaceReducer_DropsRemovedKeys(t *testing.T) {
	s := mustNew(t, CombineReducers(map[string]Reducer{
		"counter": counterReducer,
		"todos":   todosReducer,
	}, CombineWithLogger(quietLogger())))

	err := s.ReplaceReducer(CombineReducers(map[string]Reducer{
		"todos": todosReducer,
	}, CombineWithLogger(quietLogger())))
	require.NoError(t, err)

	assert.True(t, ir.Equal(ir.IRObject{"todos": ir.IRArray{}}, mustState(t, s)))
}

func TestReplaceReducer_Nil(t *testing.T) {
	s := mustNew(t, counterReducer)
	err := s.ReplaceReducer(nil)
	assert.True(t, IsArgumentError(err))
}

func TestReplaceReducer_SeesReplaceAction(t *testing.T) {
	s := mustNew(t, counterReducer)
	var seen string
	err := s.ReplaceReducer(func(state ir.IRValue, action ir.Action) (ir.IRValue, error) {
		seen = action.TypeName()
		return state, nil
	})
	require.NoError(t, err)
	assert.Equal(t, ActionTypeReplace, seen)
}

func TestEndToEnd_CombinedCounter(t *testing.T) {
	s := mustNew(t, CombineReducers(map[string]Reducer{
		"count": counterReducer,
	}, CombineWithLogger(quietLogger())))

	var seen []ir.IRValue
	_, err := s.Subscribe(func() { seen = append(seen, mustState(t, s)) })
	require.NoError(t, err)

	_, err = s.Dispatch(ir.NewAction("INCREMENT"))
	require.NoError(t, err)
	_, err = s.Dispatch(ir.NewAction("INCREMENT"))
	require.NoError(t, err)

	assert.True(t, ir.Equal(ir.IRObject{"count": ir.IRInt(2)}, mustState(t, s)))
	require.Len(t, seen, 2)
	assert.True(t, ir.Equal(ir.IRObject{"count": ir.IRInt(1)}, seen[0]))
	assert.True(t, ir.Equal(ir.IRObject{"count": ir.IRInt(2)}, seen[1]))

	before := mustState(t, s)
	_, err = s.Dispatch(ir.NewAction("NOOP"))
	require.NoError(t, err)
	assert.True(t, ir.Same(before, mustState(t, s)))
}

func TestEnhancer_ReceivesConstructorAndPreloadedState(t *testing.T) {
	var gotPreloaded ir.IRValue
	enhancer := func(next Constructor) Constructor {
		return func(reducer Reducer, preloaded ir.IRValue) (Store, error) {
			gotPreloaded = preloaded
			return next(reducer, preloaded)
		}
	}

	s := mustNew(t, counterReducer, WithPreloadedState(ir.IRInt(3)), WithEnhancer(enhancer))

	assert.Equal(t, ir.IRInt(3), gotPreloaded)
	assert.Equal(t, ir.IRInt(3), mustState(t, s))
}

func TestEnhancer_CanReplaceStore(t *testing.T) {
	s := mustNew(t, counterReducer, WithEnhancer(func(next Constructor) Constructor {
		return func(reducer Reducer, preloaded ir.IRValue) (Store, error) {
			return next(reducer, ir.IRInt(100))
		}
	}))
	assert.Equal(t, ir.IRInt(100), mustState(t, s))
}

func TestEnhancer_Rejections(t *testing.T) {
	identity := func(next Constructor) Constructor { return next }

	tests := []struct {
		name string
		opts []Option
	}{
		{"several enhancers", []Option{WithEnhancer(identity), WithEnhancer(identity)}},
		{"nil enhancer", []Option{WithEnhancer(nil)}},
		{"nil constructor", []Option{WithEnhancer(func(Constructor) Constructor { return nil })}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(counterReducer, tt.opts...)
			assert.Nil(t, s)
			assert.True(t, IsArgumentError(err), "got %v", err)
		})
	}
}

func TestComposeEnhancers_RightToLeft(t *testing.T) {
	var order []string
	tag := func(name string) Enhancer {
		return func(next Constructor) Constructor {
			order = append(order, "wrap "+name)
			return func(reducer Reducer, preloaded ir.IRValue) (Store, error) {
				order = append(order, "build "+name)
				return next(reducer, preloaded)
			}
		}
	}

	mustNew(t, counterReducer, WithEnhancer(ComposeEnhancers(tag("f"), tag("g"))))

	assert.Equal(t, []string{"wrap g", "wrap f", "build f", "build g"}, order)
}

func TestComposeEnhancers_Empty(t *testing.T) {
	s := mustNew(t, counterReducer, WithEnhancer(ComposeEnhancers()))
	assert.Equal(t, ir.IRInt(0), mustState(t, s))
}

func TestComposeEnhancers_NilEntry(t *testing.T) {
	_, err := New(counterReducer, WithEnhancer(ComposeEnhancers(nil)))
	assert.True(t, IsArgumentError(err))
}
