package tail

import (
	"context"
	"time"

	"github.com/SteelMorgan/autometrics-agent/internal/clock"
	"github.com/SteelMorgan/autometrics-agent/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPollInterval   = time.Second
	DefaultCheckThreshold = 5
)

// Waiter suspends the reader between empty reads
type Waiter interface {
	Wait(ctx context.Context, d time.Duration) error
}

// ReaderOptions configures a Reader
type ReaderOptions struct {
	PollInterval   time.Duration // Wait after an empty read
	CheckThreshold int           // Empty reads between rotation checks
	Waiter         Waiter
	Stats          *domain.Stats

	// OnIdle runs after every empty read, before waiting
	OnIdle func()
}

// Reader delivers complete lines from a Tracker, blocking until one is
// available. Lines come in file byte order and, across rotations, in the
// order the tracker chains files.
type Reader struct {
	tracker *Tracker
	opts    ReaderOptions
	empty   int
}

// NewReader creates a reader over tracker
func NewReader(tracker *Tracker, opts ReaderOptions) *Reader {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.CheckThreshold <= 0 {
		opts.CheckThreshold = DefaultCheckThreshold
	}
	if opts.Stats == nil {
		opts.Stats = tracker.stats
	}
	if opts.Waiter == nil {
		opts.Waiter = clock.Waiter{Clock: clock.Real()}
	}
	return &Reader{tracker: tracker, opts: opts}
}

// Next blocks until a complete line is available and returns it without
// its terminator. It only returns an error when ctx is done or the open
// file cannot be read.
func (r *Reader) Next(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, ok, err := r.tracker.Cursor().ReadLine(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			r.empty = 0
			r.opts.Stats.LinesRead++
			return line, nil
		}

		r.empty++
		if r.opts.OnIdle != nil {
			r.opts.OnIdle()
		}
		if err := r.opts.Waiter.Wait(ctx, r.opts.PollInterval); err != nil {
			return nil, err
		}

		if r.empty >= r.opts.CheckThreshold {
			r.empty = 0
			if err := r.tracker.CheckAndAdvance(ctx); err != nil {
				log.Debug().Err(err).Msg("Rotation check failed")
			}
		}
	}
}

// Close closes the underlying file
func (r *Reader) Close() error {
	return r.tracker.Cursor().Close()
}
