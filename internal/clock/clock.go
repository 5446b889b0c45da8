// Package clock provides an injectable time source so polling loops can be
// driven deterministically in tests.
//
// Production code uses Real(). Tests use NewFake, whose After fires
// immediately after moving fake time forward by the requested duration, so
// a single-goroutine loop never blocks.
package clock

import (
	"context"
	"time"
)

// Clock abstracts the time operations used by the agent
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

// Real returns a Clock backed by the time package
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Waiter blocks for a duration on a Clock, honoring context cancellation
type Waiter struct {
	Clock Clock
}

// Wait returns nil after d, or ctx.Err() if ctx is cancelled first
func (w Waiter) Wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-w.Clock.After(d):
		return nil
	}
}
