package engine

import "sync/atomic"

// Clock hands out publish sequence numbers. Stamps are strictly increasing
// across goroutines and Next never returns the start value itself.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock whose first stamp is 1.
func NewClock() *Clock { return NewClockAt(0) }

// NewClockAt returns a clock whose first stamp is start+1. The CLI seeds it
// from the wall clock in microseconds so runs journaled by separate
// processes keep their order.
func NewClockAt(start int64) *Clock {
	c := new(Clock)
	c.last.Store(start)
	return c
}

// Next stamps one event.
func (c *Clock) Next() int64 { return c.last.Add(1) }
