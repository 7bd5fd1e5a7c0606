package ir

import "sync/atomic"

// CallCounter counts entries into one compiled unit. Every context running
// the unit updates the same counter.
type CallCounter struct {
	count atomic.Uint32
}

// Increment records one call and returns the count before it.
func (c *CallCounter) Increment() uint32 {
	return c.count.Add(1) - 1
}

// Count returns the number of recorded calls.
func (c *CallCounter) Count() uint32 {
	return c.count.Load()
}
