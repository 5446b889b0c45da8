package clock

import (
	"sync"
	"time"
)

// Fake is a Clock whose time only moves when After or Advance is called.
// OnAfter, when set, runs after time has moved and before After returns;
// tests use it to mutate files between polls.
type Fake struct {
	mu      sync.Mutex
	current time.Time
	waits   []time.Duration

	OnAfter func(n int)
}

// NewFake returns a Fake clock set to initial
func NewFake(initial time.Time) *Fake {
	return &Fake{current: initial}
}

// Now returns the current fake time
func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After advances the clock by d and returns an already-fired channel
func (c *Fake) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	if d > 0 {
		c.current = c.current.Add(d)
	}
	c.waits = append(c.waits, d)
	n := len(c.waits)
	now := c.current
	hook := c.OnAfter
	c.mu.Unlock()

	if hook != nil {
		hook(n)
	}

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// Advance moves the clock forward by d
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Waits returns the durations passed to After, in call order
func (c *Fake) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.waits))
	copy(out, c.waits)
	return out
}
