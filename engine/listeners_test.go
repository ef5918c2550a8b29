package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListenerList_FrozenSnapshotIsStable(t *testing.T) {
	l := newListenerList()
	var calls []int

	id1 := l.add(func() { calls = append(calls, 1) })
	l.add(func() { calls = append(calls, 2) })

	snapshot := l.freeze()
	l.remove(id1)
	l.add(func() { calls = append(calls, 3) })

	for _, e := range snapshot {
		e.fn()
	}
	assert.Equal(t, []int{1, 2}, calls)
	assert.Equal(t, 2, l.len())

	calls = nil
	for _, e := range l.freeze() {
		e.fn()
	}
	assert.Equal(t, []int{2, 3}, calls)
}

func TestListenerList_RemoveUnknownID(t *testing.T) {
	l := newListenerList()
	l.add(func() {})
	l.remove(42)
	assert.Equal(t, 1, l.len())
}

func TestListenerList_IDsAreUnique(t *testing.T) {
	l := newListenerList()
	fn := func() {}
	a := l.add(fn)
	b := l.add(fn)
	assert.NotEqual(t, a, b)
}
