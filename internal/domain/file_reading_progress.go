package domain

import "time"

// FileReadingProgress represents the current reading position of the tailed file.
// Mirrors TailState with extra metadata for monitoring
type FileReadingProgress struct {
	Timestamp     time.Time
	AgentID       string    // Instance id of the agent that wrote the row
	FilePath      string    // Full path to the file
	FileName      string    // Just filename for easier queries
	FileSizeBytes uint64    // Total file size
	OffsetBytes   uint64    // Current reading position
	Inode         uint64
	LastTimestamp time.Time // When the offset was last persisted
}
