package testutil

import "sync"

// DeterministicClock stamps store events 1, 2, 3, ... and can be rewound, so
// a scenario run twice produces the same seq values in its golden trace.
type DeterministicClock struct {
	mu   sync.Mutex
	next int64
}

// NewDeterministicClock returns a clock whose first stamp is 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{next: 1}
}

// Next implements publish.Sequencer.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.next
	c.next++
	return v
}

// Reset makes the next stamp 1 again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	c.next = 1
	c.mu.Unlock()
}
