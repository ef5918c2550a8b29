package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAction(t *testing.T) {
	a := NewAction("ADD_TODO", O("text", IRString("milk")))

	assert.Equal(t, IRString("ADD_TODO"), a.Type())
	assert.Equal(t, "ADD_TODO", a.TypeName())
	assert.Equal(t, IRString("milk"), a["text"])
}

func TestNewActionTypeWins(t *testing.T) {
	a := NewAction("INC", O("type", IRString("OTHER")))
	assert.Equal(t, IRString("INC"), a.Type())
}

func TestActionTypeName(t *testing.T) {
	assert.Equal(t, "<undefined>", Action{}.TypeName())
	assert.Equal(t, "<undefined>", Action(nil).TypeName())
	assert.Equal(t, "null", Action{"type": IRNull{}}.TypeName())
	assert.Equal(t, "7", Action{"type": IRInt(7)}.TypeName())
}

func TestSameAction(t *testing.T) {
	a := NewAction("INC")
	b := NewAction("INC")

	assert.True(t, SameAction(a, a))
	assert.False(t, SameAction(a, b))
	assert.True(t, SameAction(nil, nil))
}

func TestActionFromValue(t *testing.T) {
	obj := IRObject{"type": IRString("INC")}
	a, err := ActionFromValue(obj)
	require.NoError(t, err)
	assert.True(t, Same(obj, a.Object()), "conversion shares storage")

	nullType, err := ActionFromValue(IRObject{"type": IRNull{}})
	require.NoError(t, err, "null is a defined type")
	assert.Equal(t, IRNull{}, nullType.Type())
}

func TestActionFromValueRejectsNonObjects(t *testing.T) {
	tests := []struct {
		name  string
		input IRValue
	}{
		{"absent", nil},
		{"null", IRNull{}},
		{"array", IRArray{IRObject{"type": IRString("INC")}}},
		{"string", IRString("INC")},
		{"int", IRInt(1)},
		{"missing type", IRObject{"payload": IRInt(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ActionFromValue(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction([]byte(`{"type":"INC","by":2}`))
	require.NoError(t, err)
	assert.Equal(t, IRInt(2), a["by"])

	_, err = ParseAction([]byte(`[{"type":"INC"}]`))
	assert.Error(t, err)

	_, err = ParseAction([]byte(`{"by":2}`))
	assert.Error(t, err)
}
