package domain

import "time"

// TailStateVersion is written into every persisted TailState
const TailStateVersion = 1

// TailState is the durable read position of the tailed file.
// Offset always points at the start of a line.
type TailState struct {
	Version   int       `cbor:"v"`
	Offset    int64     `cbor:"offset"`
	Path      string    `cbor:"path"`
	Dev       uint64    `cbor:"dev,omitempty"`
	Ino       uint64    `cbor:"ino,omitempty"`
	UpdatedAt time.Time `cbor:"updated_at"`
}
