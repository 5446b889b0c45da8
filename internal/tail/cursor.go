package tail

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/SteelMorgan/autometrics-agent/internal/clock"
	"github.com/SteelMorgan/autometrics-agent/internal/domain"
	"github.com/SteelMorgan/autometrics-agent/internal/fileid"
	"github.com/SteelMorgan/autometrics-agent/internal/offset"
	"github.com/rs/zerolog/log"
)

// CursorOptions configures persistence for a Cursor
type CursorOptions struct {
	Store offset.StateStore // nil disables persistence
	Key   string            // Store key, defaults to the opened path
	Stats *domain.Stats     // nil allocates a private instance
	Clock clock.Clock       // nil uses the real clock
}

// Cursor owns an open file handle and the byte offset of the next unread line.
// The offset is persisted after every complete line, so a restart always
// resumes at a line boundary.
type Cursor struct {
	path   string
	file   *os.File
	reader *bufio.Reader
	offset int64
	id     fileid.Identity

	key   string
	store offset.StateStore
	stats *domain.Stats
	clock clock.Clock
}

// OpenCursor opens path and positions the cursor.
//
//   - start < 0: end of file minus (|start| - 1) bytes
//   - start == 0: the persisted position if it still applies to this file,
//     end of file if it does not, beginning of file if nothing is stored
//   - start > 0: that byte offset (clamped to the file size)
func OpenCursor(ctx context.Context, path string, start int64, opts CursorOptions) (*Cursor, error) {
	if opts.Key == "" {
		opts.Key = path
	}
	if opts.Stats == nil {
		opts.Stats = &domain.Stats{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	c := &Cursor{
		path:  path,
		file:  file,
		key:   opts.Key,
		store: opts.Store,
		stats: opts.Stats,
		clock: opts.Clock,
	}
	c.id = c.identify(file)

	pos := c.resolveStart(ctx, start, info.Size())
	if _, err := file.Seek(pos, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to seek to %d: %w", pos, err)
	}
	c.offset = pos
	c.reader = bufio.NewReaderSize(file, 64*1024)

	log.Info().
		Str("file", path).
		Int64("offset", pos).
		Int64("size", info.Size()).
		Msg("Opened tail cursor")

	return c, nil
}

func (c *Cursor) resolveStart(ctx context.Context, start, size int64) int64 {
	switch {
	case start < 0:
		pos := size - (-start - 1)
		if pos < 0 {
			pos = 0
		}
		return pos
	case start > 0:
		if start > size {
			return size
		}
		return start
	}

	if c.store == nil {
		return 0
	}

	state, err := c.store.Get(ctx, c.key)
	if err != nil {
		log.Debug().
			Err(err).
			Str("file", c.path).
			Msg("Stored position unreadable, tailing from end")
		return size
	}
	if state == nil {
		return 0
	}

	stored := fileid.Identity{Dev: state.Dev, Ino: state.Ino}
	switch {
	case state.Offset > size:
		log.Info().
			Str("file", c.path).
			Int64("saved_offset", state.Offset).
			Int64("file_size", size).
			Msg("File shorter than stored position, tailing from end")
		return size
	case !stored.IsZero() && !c.id.IsZero() && stored != c.id:
		log.Info().
			Str("file", c.path).
			Str("saved_identity", stored.String()).
			Str("file_identity", c.id.String()).
			Msg("File replaced since position was stored, tailing from end")
		return size
	}

	log.Info().
		Str("file", c.path).
		Int64("offset_bytes", state.Offset).
		Msg("Resumed from saved offset")
	return state.Offset
}

// ReadLine reads the next complete line.
// It returns ok=false without consuming anything when no terminated line is
// available yet; the partial bytes are read again on the next call.
func (c *Cursor) ReadLine(ctx context.Context) (line []byte, ok bool, err error) {
	raw, err := c.reader.ReadBytes('\n')
	if err == nil {
		c.offset += int64(len(raw))
		c.persist(ctx)
		return trimEOL(raw), true, nil
	}

	if !errors.Is(err, io.EOF) {
		return nil, false, fmt.Errorf("failed to read %s: %w", c.path, err)
	}

	if len(raw) > 0 {
		if err := c.rewind(); err != nil {
			return nil, false, err
		}
	}
	return nil, false, nil
}

// rewind moves the file back to the start of the unfinished line
func (c *Cursor) rewind() error {
	if _, err := c.file.Seek(c.offset, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind %s to %d: %w", c.path, c.offset, err)
	}
	c.reader.Reset(c.file)
	return nil
}

// Reset switches the cursor to the beginning of path and persists offset 0.
// If path cannot be opened the current file stays open and the error is returned.
func (c *Cursor) Reset(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}

	old := c.file
	c.file = file
	c.path = path
	c.offset = 0
	c.id = c.identify(file)
	c.reader.Reset(file)

	if err := old.Close(); err != nil {
		log.Debug().Err(err).Str("file", old.Name()).Msg("Failed to close previous file")
	}

	c.persist(ctx)
	return nil
}

// persist writes the current offset. Failures are counted and logged, never returned.
func (c *Cursor) persist(ctx context.Context) {
	if c.store == nil {
		return
	}

	state := domain.TailState{
		Offset:    c.offset,
		Path:      c.path,
		Dev:       c.id.Dev,
		Ino:       c.id.Ino,
		UpdatedAt: c.clock.Now(),
	}
	if err := c.store.Set(ctx, c.key, state); err != nil {
		c.stats.StateWriteErrors++
		log.Debug().
			Err(err).
			Str("file", c.path).
			Int64("offset", c.offset).
			Msg("Failed to save offset")
	}
}

func (c *Cursor) identify(f *os.File) fileid.Identity {
	id, err := fileid.Of(f)
	if err != nil {
		log.Debug().Err(err).Msg("File identity unavailable")
	}
	return id
}

// Identity returns the identity of the open file
func (c *Cursor) Identity() fileid.Identity { return c.id }

// Path returns the path the open file was opened under
func (c *Cursor) Path() string { return c.path }

// Offset returns the offset of the next unread line
func (c *Cursor) Offset() int64 { return c.offset }

// Stat returns metadata of the open file, even if it has been unlinked
func (c *Cursor) Stat() (os.FileInfo, error) { return c.file.Stat() }

// Close closes the open file
func (c *Cursor) Close() error { return c.file.Close() }

func trimEOL(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte("\n"))
	return bytes.TrimSuffix(b, []byte("\r"))
}

// modTime of the open file, zero when unavailable
func (c *Cursor) modTime() time.Time {
	info, err := c.Stat()
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
