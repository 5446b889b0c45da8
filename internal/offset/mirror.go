package offset

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/SteelMorgan/autometrics-agent/internal/clock"
	"github.com/SteelMorgan/autometrics-agent/internal/domain"
	"github.com/rs/zerolog/log"
)

// ProgressWriter receives mirrored reading progress
type ProgressWriter interface {
	WriteFileReadingProgress(ctx context.Context, progress *domain.FileReadingProgress) error
	Close() error
}

// MirrorStore wraps a StateStore and mirrors writes to a ProgressWriter.
// The wrapped store stays authoritative: mirror failures are logged and
// never returned. Mirror writes are throttled to one per interval, except
// resets (offset 0) which are always mirrored.
type MirrorStore struct {
	StateStore

	writer   ProgressWriter
	agentID  string
	interval time.Duration
	clock    clock.Clock
	last     time.Time
}

// NewMirrorStore creates a mirroring decorator around primary
func NewMirrorStore(primary StateStore, writer ProgressWriter, agentID string, interval time.Duration, clk clock.Clock) *MirrorStore {
	if clk == nil {
		clk = clock.Real()
	}
	return &MirrorStore{
		StateStore: primary,
		writer:     writer,
		agentID:    agentID,
		interval:   interval,
		clock:      clk,
	}
}

// Set stores the state in the primary store, then mirrors it
func (m *MirrorStore) Set(ctx context.Context, key string, state domain.TailState) error {
	if err := m.StateStore.Set(ctx, key, state); err != nil {
		return err
	}

	now := m.clock.Now()
	if state.Offset != 0 && !m.last.IsZero() && now.Sub(m.last) < m.interval {
		return nil
	}
	m.last = now

	progress := &domain.FileReadingProgress{
		Timestamp:     now,
		AgentID:       m.agentID,
		FilePath:      state.Path,
		FileName:      filepath.Base(state.Path),
		OffsetBytes:   uint64(state.Offset),
		Inode:         state.Ino,
		LastTimestamp: state.UpdatedAt,
	}
	if info, err := os.Stat(state.Path); err == nil {
		progress.FileSizeBytes = uint64(info.Size())
	}

	if err := m.writer.WriteFileReadingProgress(ctx, progress); err != nil {
		log.Warn().
			Err(err).
			Str("file", state.Path).
			Msg("Failed to mirror reading progress")
	}
	return nil
}

// Close closes the mirror writer and the primary store
func (m *MirrorStore) Close() error {
	if err := m.writer.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close progress mirror")
	}
	return m.StateStore.Close()
}
