package engine

// Listener is called after every successful dispatch. It receives no
// arguments; call GetState to read the new state.
type Listener func()

// Unsubscribe removes a listener. It is idempotent: calls after the first
// do nothing.
type Unsubscribe func() error

type listenerEntry struct {
	id int64
	fn Listener
}

// listenerList is a copy-on-write listener list.
//
// current is the snapshot being iterated by the dispatch in progress; next
// is the list that subscribe/unsubscribe edit. While shared is true both
// refer to the same backing array and next must be copied before mutation.
//
// INVARIANTS:
//   - A snapshot returned by freeze is never mutated afterwards
//   - Entries keep registration order
type listenerList struct {
	current []listenerEntry
	next    []listenerEntry
	shared  bool
	nextID  int64
}

func newListenerList() *listenerList {
	return &listenerList{shared: true}
}

// ensureCanMutateNext detaches next from the frozen snapshot.
func (l *listenerList) ensureCanMutateNext() {
	if !l.shared {
		return
	}
	detached := make([]listenerEntry, len(l.current), len(l.current)+1)
	copy(detached, l.current)
	l.next = detached
	l.shared = false
}

func (l *listenerList) add(fn Listener) int64 {
	l.ensureCanMutateNext()
	l.nextID++
	l.next = append(l.next, listenerEntry{id: l.nextID, fn: fn})
	return l.nextID
}

func (l *listenerList) remove(id int64) {
	l.ensureCanMutateNext()
	for i, e := range l.next {
		if e.id == id {
			l.next = append(l.next[:i], l.next[i+1:]...)
			return
		}
	}
}

// freeze promotes next to current and returns it for iteration.
func (l *listenerList) freeze() []listenerEntry {
	l.current = l.next
	l.shared = true
	return l.current
}

func (l *listenerList) len() int {
	return len(l.next)
}
