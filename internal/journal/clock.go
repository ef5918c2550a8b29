package journal

import "sync/atomic"

// Clock is the monotonic logical clock that stamps entries.
//
// Entries are ordered by seq, never by wall time, so a replay sees exactly
// the recorded order.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0. The first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock positioned at start, used to resume a session
// after its LastSeq.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
