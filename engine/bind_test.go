package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/ir"
)

func TestBindActionCreators(t *testing.T) {
	s := mustNew(t, todosReducer)

	bound, err := BindActionCreators(map[string]ActionCreator{
		"addTodo": func(args ...ir.IRValue) ir.Action {
			return ir.NewAction("ADD_TODO", ir.O("text", args[0]))
		},
		"skipped": nil,
	}, s.Dispatch)
	require.NoError(t, err)

	require.Len(t, bound, 1)
	action, err := bound["addTodo"](ir.IRString("buy milk"))
	require.NoError(t, err)

	assert.Equal(t, "ADD_TODO", action.TypeName())
	assert.True(t, ir.Equal(ir.IRArray{ir.IRString("buy milk")}, mustState(t, s)))
}

func TestBindActionCreators_NilDispatch(t *testing.T) {
	_, err := BindActionCreators(map[string]ActionCreator{}, nil)
	assert.True(t, IsArgumentError(err))
}

func TestBindActionCreator_PropagatesErrors(t *testing.T) {
	s := mustNew(t, counterReducer)
	bound := BindActionCreator(func(...ir.IRValue) ir.Action {
		return ir.Action{"no": ir.IRString("type")}
	}, s.Dispatch)

	_, err := bound()
	assert.True(t, IsActionShapeError(err))
}
