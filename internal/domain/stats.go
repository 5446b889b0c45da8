package domain

// Stats holds the running counters reported by the self-metrics emitter.
// A single instance is shared by pointer between the reader, the translator
// and the emitter; all of them run on the read loop goroutine.
type Stats struct {
	LinesRead        uint64
	RecordsRead      uint64
	RecordsSent      uint64
	RecordsDiscarded uint64

	StateWriteErrors uint64 // Failed TailState writes
	Rotations        uint64 // Cursor switches performed by the rotation tracker
}

// Reset zeroes all counters
func (s *Stats) Reset() {
	*s = Stats{}
}
