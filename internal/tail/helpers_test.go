package tail

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func setMtime(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

// scriptWaiter runs the step registered for the n-th wait (1-based)
type scriptWaiter struct {
	n     int
	steps map[int]func()
	waits []time.Duration
}

func (w *scriptWaiter) Wait(ctx context.Context, d time.Duration) error {
	w.n++
	w.waits = append(w.waits, d)
	if step := w.steps[w.n]; step != nil {
		step()
	}
	return ctx.Err()
}

// at registers a step relative to the waits performed so far
func (w *scriptWaiter) at(after int, step func()) {
	if w.steps == nil {
		w.steps = make(map[int]func())
	}
	w.steps[w.n+after] = step
}
