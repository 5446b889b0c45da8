package tail

import (
	"context"
	"fmt"

	"github.com/SteelMorgan/autometrics-agent/internal/domain"
	"github.com/SteelMorgan/autometrics-agent/internal/fileid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/SteelMorgan/autometrics-agent/internal/tail"

// Tracker keeps a Cursor on the right member of a rotation family.
// The cursor always follows the base file or a member rotated at or after
// the file it started on.
type Tracker struct {
	base   string
	cursor *Cursor
	stats  *domain.Stats
	tracer trace.Tracer
}

// NewTracker wraps an already opened cursor
func NewTracker(base string, cursor *Cursor, stats *domain.Stats) *Tracker {
	if stats == nil {
		stats = cursor.stats
	}
	return &Tracker{
		base:   base,
		cursor: cursor,
		stats:  stats,
		tracer: otel.Tracer(tracerName),
	}
}

// OpenTracker opens a cursor for base. When resuming (start == 0) and the
// stored position belongs to a file that has since been rotated to another
// family member, the cursor resumes on that member so its unread tail is
// delivered before moving on.
func OpenTracker(ctx context.Context, base string, start int64, opts CursorOptions) (*Tracker, error) {
	if opts.Key == "" {
		opts.Key = base
	}
	if opts.Stats == nil {
		opts.Stats = &domain.Stats{}
	}

	path := base
	if start == 0 && opts.Store != nil {
		path = resumePath(ctx, base, opts)
	}

	cursor, err := OpenCursor(ctx, path, start, opts)
	if err != nil {
		return nil, err
	}
	return NewTracker(base, cursor, opts.Stats), nil
}

func resumePath(ctx context.Context, base string, opts CursorOptions) string {
	state, err := opts.Store.Get(ctx, opts.Key)
	if err != nil || state == nil {
		return base
	}

	stored := fileid.Identity{Dev: state.Dev, Ino: state.Ino}
	if stored.IsZero() {
		return base
	}
	if current, err := fileid.Stat(base); err == nil && current == stored {
		return base
	}

	members, err := ListFamily(base)
	if err != nil {
		log.Debug().Err(err).Str("file", base).Msg("Failed to list rotation family")
		return base
	}
	m, ok := findMember(members, stored)
	if !ok {
		return base
	}

	log.Info().
		Str("file", m.Path).
		Str("base", base).
		Int64("offset", state.Offset).
		Msg("Stored position belongs to a rotated file, resuming there")
	return m.Path
}

// Cursor returns the wrapped cursor
func (t *Tracker) Cursor() *Cursor { return t.cursor }

// CheckAndAdvance detects rotation and truncation and moves the cursor to
// the next file. Errors are transient: the cursor stays where it was and the
// check can simply run again later.
func (t *Tracker) CheckAndAdvance(ctx context.Context) error {
	current := t.cursor.Identity()

	if t.cursor.Path() == t.base {
		baseID, err := fileid.Stat(t.base)
		if err == nil && baseID == current {
			return t.checkTruncation(ctx)
		}
		if err != nil {
			log.Debug().Err(err).Str("file", t.base).Msg("Base file not accessible")
		}
	}

	members, err := ListFamily(t.base)
	if err != nil {
		return err
	}

	target := nextTarget(t.base, members, current, t.cursor.modTime())
	return t.switchTo(ctx, target, "rotated")
}

// checkTruncation resets to the start of the same file when it was truncated in place
func (t *Tracker) checkTruncation(ctx context.Context) error {
	info, err := t.cursor.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat open file: %w", err)
	}
	if info.Size() >= t.cursor.Offset() {
		return nil
	}

	log.Info().
		Str("file", t.cursor.Path()).
		Int64("offset", t.cursor.Offset()).
		Int64("file_size", info.Size()).
		Msg("File truncated")
	return t.switchTo(ctx, t.cursor.Path(), "truncated")
}

func (t *Tracker) switchTo(ctx context.Context, target, reason string) error {
	from := t.cursor.Path()
	ctx, span := t.tracer.Start(ctx, "tail.rotate", trace.WithAttributes(
		attribute.String("tail.from", from),
		attribute.String("tail.to", target),
		attribute.String("tail.reason", reason),
	))
	defer span.End()

	if err := t.cursor.Reset(ctx, target); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reset failed")
		return fmt.Errorf("failed to switch from %s to %s: %w", from, target, err)
	}
	t.stats.Rotations++

	log.Info().
		Str("old_file", from).
		Str("new_file", target).
		Str("reason", reason).
		Msg("Log file rotated, reopening")
	return nil
}
