package offset

import (
	"context"
	"fmt"
	"time"

	"github.com/SteelMorgan/autometrics-agent/internal/domain"
	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

const (
	bucketName = "tail_state"
)

// BoltDBStore implements StateStore using BoltDB.
// Values are CBOR-encoded TailState records.
type BoltDBStore struct {
	db *bbolt.DB
}

// NewBoltDBStore opens (or creates) the state database at dbPath
func NewBoltDBStore(dbPath string) (*BoltDBStore, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		// A lock timeout means another agent instance holds the file
		return nil, fmt.Errorf("failed to open boltdb (file may be locked by another process): %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	log.Debug().
		Str("db_path", dbPath).
		Msg("BoltDB state store initialized")

	return &BoltDBStore{db: db}, nil
}

// Get retrieves the state for key
func (s *BoltDBStore) Get(ctx context.Context, key string) (*domain.TailState, error) {
	var state *domain.TailState

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		val := b.Get([]byte(key))
		if val == nil {
			return nil
		}

		decoded, err := decodeState(val)
		if err != nil {
			return err
		}
		state = decoded
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to get tail state: %w", err)
	}

	return state, nil
}

// Set stores the state for key
func (s *BoltDBStore) Set(ctx context.Context, key string, state domain.TailState) error {
	val, err := encodeState(state)
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Put([]byte(key), val)
	})

	if err != nil {
		return fmt.Errorf("failed to set tail state: %w", err)
	}

	return nil
}

// Close closes the BoltDB database
func (s *BoltDBStore) Close() error {
	log.Debug().Msg("Closing BoltDB state store")
	return s.db.Close()
}

func encodeState(state domain.TailState) ([]byte, error) {
	state.Version = domain.TailStateVersion
	val, err := cbor.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tail state: %w", err)
	}
	return val, nil
}

// decodeState rejects anything that is not a well-formed TailState of a known version
func decodeState(val []byte) (*domain.TailState, error) {
	var state domain.TailState
	if err := cbor.Unmarshal(val, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if state.Version != domain.TailStateVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptState, state.Version)
	}
	if state.Offset < 0 {
		return nil, fmt.Errorf("%w: negative offset %d", ErrCorruptState, state.Offset)
	}
	return &state, nil
}
