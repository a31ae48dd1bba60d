package session

import "sync/atomic"

// Sequencer hands out the logical sequence numbers journal records are
// stamped with. Next must return strictly increasing values.
type Sequencer interface {
	Next() int64
	Current() int64
}

// Clock is the production Sequencer: a monotonic counter safe for
// concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock positioned at start, so the first Next returns
// start+1. Used to resume numbering after reopening a journal.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last number handed out without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
