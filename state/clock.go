package state

import (
	"math/bits"
	"time"
)

// DefaultCounterFrequency is the CNTFRQ_EL0 value reported to the guest.
const DefaultCounterFrequency uint64 = 19200000

// Clock is the time source behind the guest's generic timer. It is an
// explicit value so tests can substitute a deterministic one.
type Clock struct {
	// Frequency is the counter frequency in Hz.
	Frequency uint64
	// Start is the epoch the counter counts from.
	Start time.Time
	// Now returns the current host time.
	Now func() time.Time
}

// NewClock returns a clock counting at DefaultCounterFrequency from now.
func NewClock() *Clock {
	return &Clock{
		Frequency: DefaultCounterFrequency,
		Start:     time.Now(),
		Now:       time.Now,
	}
}

// Ticks returns the number of counter ticks elapsed since Start.
func (c *Clock) Ticks() uint64 {
	elapsed := c.Now().Sub(c.Start)
	if elapsed <= 0 {
		return 0
	}

	hi, lo := bits.Mul64(uint64(elapsed), c.Frequency)
	if hi >= uint64(time.Second) {
		return ^uint64(0)
	}

	ticks, _ := bits.Div64(hi, lo, uint64(time.Second))

	return ticks
}
