package offset

import (
	"context"

	"github.com/SteelMorgan/autometrics-agent/internal/domain"
)

// MemoryStore keeps states in process memory only.
// Used when the state database cannot be opened and in tests.
type MemoryStore struct {
	states map[string]domain.TailState

	// SetErr, when non-nil, is returned by every Set
	SetErr error
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]domain.TailState)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*domain.TailState, error) {
	state, ok := s.states[key]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, state domain.TailState) error {
	if s.SetErr != nil {
		return s.SetErr
	}
	state.Version = domain.TailStateVersion
	s.states[key] = state
	return nil
}

func (s *MemoryStore) Close() error { return nil }
