package tail

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/SteelMorgan/autometrics-agent/internal/domain"
	"github.com/SteelMorgan/autometrics-agent/internal/offset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	base   string
	store  *offset.MemoryStore
	stats  *domain.Stats
	waiter *scriptWaiter
	reader *Reader
}

func newFixture(t *testing.T, content string) *fixture {
	t.Helper()
	base := filepath.Join(t.TempDir(), "json_metrics.log")
	writeFile(t, base, content)
	setMtime(t, base, baseTime)

	f := &fixture{
		base:   base,
		store:  offset.NewMemoryStore(),
		stats:  &domain.Stats{},
		waiter: &scriptWaiter{},
	}
	f.open(t)
	return f
}

func (f *fixture) open(t *testing.T) {
	t.Helper()
	tr, err := OpenTracker(context.Background(), f.base, 0, CursorOptions{Store: f.store, Stats: f.stats})
	require.NoError(t, err)
	f.reader = NewReader(tr, ReaderOptions{Waiter: f.waiter, Stats: f.stats})
	t.Cleanup(func() { f.reader.Close() })
}

func (f *fixture) next(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Guard against a test looping forever
	f.waiter.at(100, cancel)
	line, err := f.reader.Next(ctx)
	require.NoError(t, err)
	return string(line)
}

func TestReaderDeliversLinesInOrder(t *testing.T) {
	f := newFixture(t, "l1\nl2\n")
	assert.Equal(t, "l1", f.next(t))
	assert.Equal(t, "l2", f.next(t))
	assert.Equal(t, uint64(2), f.stats.LinesRead)
	assert.Empty(t, f.waiter.waits)
}

func TestReaderWaitsForCompleteLine(t *testing.T) {
	f := newFixture(t, "partial")
	f.waiter.at(2, func() { appendFile(t, f.base, " line\n") })

	assert.Equal(t, "partial line", f.next(t))
	assert.Len(t, f.waiter.waits, 2)
	assert.Equal(t, DefaultPollInterval, f.waiter.waits[0])
	assert.Equal(t, uint64(1), f.stats.LinesRead)
}

func TestReaderStopsOnCancel(t *testing.T) {
	f := newFixture(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	f.waiter.at(3, cancel)

	_, err := f.reader.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, f.waiter.waits, 3)
}

func TestReaderCancelledBeforeRead(t *testing.T) {
	f := newFixture(t, "l1\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.reader.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(0), f.stats.LinesRead)
	assert.Equal(t, int64(0), f.reader.tracker.Cursor().Offset())
}

func TestReaderRotationContinuity(t *testing.T) {
	f := newFixture(t, "l1\nl2\n")
	assert.Equal(t, "l1", f.next(t))
	assert.Equal(t, "l2", f.next(t))

	f.waiter.at(1, func() {
		// A late write to the old file, then rename A -> A.1 and create a new A
		appendFile(t, f.base, "l3\n")
		require.NoError(t, os.Rename(f.base, f.base+".1"))
		setMtime(t, f.base+".1", baseTime.Add(time.Minute))
		writeFile(t, f.base, "l4\nl5\n")
		setMtime(t, f.base, baseTime.Add(2*time.Minute))
	})

	assert.Equal(t, "l3", f.next(t))
	assert.Equal(t, "l4", f.next(t))
	assert.Equal(t, "l5", f.next(t))

	// Detection waited for the empty-read threshold
	assert.Len(t, f.waiter.waits, 1+DefaultCheckThreshold)
	assert.Equal(t, uint64(1), f.stats.Rotations)
	assert.Equal(t, uint64(5), f.stats.LinesRead)

	state, _ := f.store.Get(context.Background(), f.base)
	require.NotNil(t, state)
	assert.Equal(t, f.base, state.Path)
	assert.Equal(t, int64(6), state.Offset)
}

func TestReaderNoRotationWhenFileUnchanged(t *testing.T) {
	f := newFixture(t, "l1\n")
	assert.Equal(t, "l1", f.next(t))

	f.waiter.at(2*DefaultCheckThreshold, func() { appendFile(t, f.base, "l2\n") })
	assert.Equal(t, "l2", f.next(t))
	assert.Equal(t, uint64(0), f.stats.Rotations)
	assert.Equal(t, f.base, f.reader.tracker.Cursor().Path())
}

func TestReaderAppendsAcrossChecksAreNotReplayed(t *testing.T) {
	f := newFixture(t, "l1\n")
	assert.Equal(t, "l1", f.next(t))

	f.waiter.at(1, func() {
		appendFile(t, f.base, "l2\n")
		setMtime(t, f.base, baseTime.Add(time.Minute))
	})
	assert.Equal(t, "l2", f.next(t))

	// Let several rotation checks run against the grown file
	f.waiter.at(3*DefaultCheckThreshold, func() {
		appendFile(t, f.base, "l3\n")
		setMtime(t, f.base, baseTime.Add(2*time.Minute))
	})
	assert.Equal(t, "l3", f.next(t))

	assert.Equal(t, uint64(0), f.stats.Rotations)
	assert.Equal(t, uint64(3), f.stats.LinesRead)
	assert.Equal(t, int64(9), f.reader.tracker.Cursor().Offset())
}

func TestReaderDoubleRotationChainsEveryFile(t *testing.T) {
	f := newFixture(t, "l1\n")
	assert.Equal(t, "l1", f.next(t))

	f.waiter.at(1, func() {
		appendFile(t, f.base, "l2\n")
		// First rotation
		require.NoError(t, os.Rename(f.base, f.base+".1"))
		writeFile(t, f.base, "l3\n")
		// Second rotation before the agent noticed the first
		require.NoError(t, os.Rename(f.base+".1", f.base+".2"))
		require.NoError(t, os.Rename(f.base, f.base+".1"))
		writeFile(t, f.base, "l4\n")

		setMtime(t, f.base+".2", baseTime.Add(1*time.Minute))
		setMtime(t, f.base+".1", baseTime.Add(2*time.Minute))
		setMtime(t, f.base, baseTime.Add(3*time.Minute))
	})

	assert.Equal(t, "l2", f.next(t))
	assert.Equal(t, "l3", f.next(t))
	assert.Equal(t, f.base+".1", f.reader.tracker.Cursor().Path())
	assert.Equal(t, "l4", f.next(t))
	assert.Equal(t, f.base, f.reader.tracker.Cursor().Path())
	assert.Equal(t, uint64(2), f.stats.Rotations)
}

func TestReaderVanishedFileMovesToNextNewerMember(t *testing.T) {
	f := newFixture(t, "l1\n")
	assert.Equal(t, "l1", f.next(t))

	f.waiter.at(1, func() {
		// The open file is deleted outright; two newer files exist
		require.NoError(t, os.Remove(f.base))
		writeFile(t, f.base+".1", "l2\n")
		writeFile(t, f.base, "l3\n")
		setMtime(t, f.base+".1", baseTime.Add(time.Minute))
		setMtime(t, f.base, baseTime.Add(2*time.Minute))
	})

	assert.Equal(t, "l2", f.next(t), "intermediate file must not be skipped")
	assert.Equal(t, "l3", f.next(t))
}

func TestReaderTruncationRestartsFile(t *testing.T) {
	f := newFixture(t, "l1\nl2\n")
	assert.Equal(t, "l1", f.next(t))
	assert.Equal(t, "l2", f.next(t))

	f.waiter.at(1, func() { writeFile(t, f.base, "x\n") })

	assert.Equal(t, "x", f.next(t))
	assert.Equal(t, uint64(1), f.stats.Rotations)
}

func TestReaderMissingBaseRetriesLater(t *testing.T) {
	f := newFixture(t, "l1\n")
	assert.Equal(t, "l1", f.next(t))

	f.waiter.at(1, func() {
		require.NoError(t, os.Rename(f.base, f.base+".1"))
	})
	// Base appears only after the first rotation check failed
	f.waiter.at(DefaultCheckThreshold+2, func() {
		writeFile(t, f.base, "l2\n")
		setMtime(t, f.base, baseTime.Add(time.Minute))
	})

	assert.Equal(t, "l2", f.next(t))
	assert.Equal(t, uint64(1), f.stats.Rotations)
}

func TestResumptionIsIdempotent(t *testing.T) {
	f := newFixture(t, "line1\nline2\nline3\nline4\nline5\n")
	assert.Equal(t, "line1", f.next(t))
	assert.Equal(t, "line2", f.next(t))
	assert.Equal(t, "line3", f.next(t))
	require.NoError(t, f.reader.Close())

	// Restart with the same store
	f.open(t)
	assert.Equal(t, "line4", f.next(t))
	assert.Equal(t, "line5", f.next(t))
}

func TestResumeOnFileRotatedWhileStopped(t *testing.T) {
	f := newFixture(t, "l1\nl2\n")
	assert.Equal(t, "l1", f.next(t))
	require.NoError(t, f.reader.Close())

	require.NoError(t, os.Rename(f.base, f.base+".1"))
	setMtime(t, f.base+".1", baseTime.Add(time.Minute))
	writeFile(t, f.base, "l3\n")
	setMtime(t, f.base, baseTime.Add(2*time.Minute))

	f.open(t)
	assert.Equal(t, f.base+".1", f.reader.tracker.Cursor().Path())
	assert.Equal(t, "l2", f.next(t))
	assert.Equal(t, "l3", f.next(t))
}

func TestReaderIdleHook(t *testing.T) {
	f := newFixture(t, "")
	idle := 0
	f.reader.opts.OnIdle = func() { idle++ }
	f.waiter.at(3, func() { appendFile(t, f.base, "l1\n") })

	assert.Equal(t, "l1", f.next(t))
	assert.Equal(t, 3, idle)
}
