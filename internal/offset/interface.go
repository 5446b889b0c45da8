package offset

import (
	"context"
	"errors"

	"github.com/SteelMorgan/autometrics-agent/internal/domain"
)

// ErrCorruptState is returned by Get when a stored value cannot be decoded.
// The cursor treats it like any other unreadable position and starts at end of file.
var ErrCorruptState = errors.New("corrupt tail state")

// StateStore stores and retrieves tail positions.
// Implementations: BoltDB (primary), Memory (fallback/tests), Mirror (ClickHouse decorator)
type StateStore interface {
	// Get retrieves the state stored under key.
	// Returns nil, nil if nothing is stored.
	Get(ctx context.Context, key string) (*domain.TailState, error)

	// Set overwrites the state stored under key
	Set(ctx context.Context, key string, state domain.TailState) error

	// Close closes the store
	Close() error
}
