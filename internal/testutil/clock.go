package testutil

import "sync/atomic"

// DeterministicClock is a resettable session.Sequencer for tests. Running
// the same scenario twice from a reset clock yields identical seq values,
// and therefore identical record ids.
type DeterministicClock struct {
	seq atomic.Int64
}

// NewDeterministicClock creates a clock whose first Next returns 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

func (c *DeterministicClock) Next() int64    { return c.seq.Add(1) }
func (c *DeterministicClock) Current() int64 { return c.seq.Load() }

// Reset rewinds the clock so the next seq is 1 again.
func (c *DeterministicClock) Reset() { c.seq.Store(0) }
