package wake

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierWakesOnWrite(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "json_metrics.log")
	require.NoError(t, os.WriteFile(base, nil, 0644))

	n, err := NewNotifier(base, nil)
	require.NoError(t, err)
	defer n.Close()

	go func() {
		time.Sleep(50 * time.Millisecond)
		f, err := os.OpenFile(base, os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return
		}
		f.WriteString("line\n")
		f.Close()
	}()

	start := time.Now()
	require.NoError(t, n.Wait(context.Background(), 10*time.Second))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNotifierTimesOut(t *testing.T) {
	base := filepath.Join(t.TempDir(), "json_metrics.log")

	n, err := NewNotifier(base, nil)
	require.NoError(t, err)
	defer n.Close()

	assert.NoError(t, n.Wait(context.Background(), 20*time.Millisecond))
}

func TestNotifierCancelled(t *testing.T) {
	base := filepath.Join(t.TempDir(), "json_metrics.log")

	n, err := NewNotifier(base, nil)
	require.NoError(t, err)
	defer n.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.Wait(ctx, time.Hour), context.Canceled)
}

func TestNotifierRelevant(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "json_metrics.log")

	n, err := NewNotifier(base, nil)
	require.NoError(t, err)
	defer n.Close()

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{name: "write to base", event: fsnotify.Event{Name: base, Op: fsnotify.Write}, want: true},
		{name: "create rotated member", event: fsnotify.Event{Name: base + ".1", Op: fsnotify.Create}, want: true},
		{name: "rename base", event: fsnotify.Event{Name: base, Op: fsnotify.Rename}, want: true},
		{name: "chmod base", event: fsnotify.Event{Name: base, Op: fsnotify.Chmod}, want: false},
		{name: "unrelated file", event: fsnotify.Event{Name: filepath.Join(dir, "other.log"), Op: fsnotify.Write}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.relevant(tt.event))
		})
	}
}
