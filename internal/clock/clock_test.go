package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeAfterAdvancesTime(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFake(start)

	var calls []int
	c.OnAfter = func(n int) { calls = append(calls, n) }

	w := Waiter{Clock: c}
	require.NoError(t, w.Wait(context.Background(), time.Second))
	require.NoError(t, w.Wait(context.Background(), 2*time.Second))

	assert.Equal(t, start.Add(3*time.Second), c.Now())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, c.Waits())
	assert.Equal(t, []int{1, 2}, calls)
}

func TestWaiterCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Waiter{Clock: Real()}.Wait(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
