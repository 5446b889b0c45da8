package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/SteelMorgan/autometrics-agent/internal/domain"
)

const createProgressTable = `
CREATE TABLE IF NOT EXISTS file_reading_progress (
    timestamp       DateTime64(3),
    agent_id        String,
    file_path       String,
    file_name       String,
    file_size_bytes UInt64,
    offset_bytes    UInt64,
    inode           UInt64,
    last_timestamp  DateTime64(3)
) ENGINE = ReplacingMergeTree(timestamp)
ORDER BY (agent_id, file_path)
TTL toDateTime(timestamp) + INTERVAL %d DAY`

const insertProgress = `
INSERT INTO file_reading_progress
    (timestamp, agent_id, file_path, file_name, file_size_bytes, offset_bytes, inode, last_timestamp)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// executor is the subset of Client used by ProgressWriter
type executor interface {
	Exec(ctx context.Context, query string, args ...any) error
	Close() error
}

// ProgressWriter mirrors tail positions into the file_reading_progress table
type ProgressWriter struct {
	exec    executor
	timeout time.Duration
}

// NewProgressWriter ensures the progress table exists and returns a writer for it
func NewProgressWriter(ctx context.Context, client *Client, retentionDays int) (*ProgressWriter, error) {
	return newProgressWriter(ctx, client, retentionDays)
}

func newProgressWriter(ctx context.Context, exec executor, retentionDays int) (*ProgressWriter, error) {
	if retentionDays < 1 {
		retentionDays = 30
	}
	if err := exec.Exec(ctx, fmt.Sprintf(createProgressTable, retentionDays)); err != nil {
		return nil, fmt.Errorf("failed to create file_reading_progress table: %w", err)
	}
	return &ProgressWriter{exec: exec, timeout: 5 * time.Second}, nil
}

// WriteFileReadingProgress inserts one progress row
func (w *ProgressWriter) WriteFileReadingProgress(ctx context.Context, p *domain.FileReadingProgress) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	err := w.exec.Exec(ctx, insertProgress,
		p.Timestamp,
		p.AgentID,
		p.FilePath,
		p.FileName,
		p.FileSizeBytes,
		p.OffsetBytes,
		p.Inode,
		p.LastTimestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reading progress: %w", err)
	}
	return nil
}

// Close closes the underlying connection
func (w *ProgressWriter) Close() error {
	return w.exec.Close()
}
