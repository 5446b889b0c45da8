// Package selfmetrics reports the agent's own health through the metric stream.
package selfmetrics

import (
	"bytes"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/SteelMorgan/autometrics-agent/internal/clock"
	"github.com/SteelMorgan/autometrics-agent/internal/domain"
	"github.com/SteelMorgan/autometrics-agent/internal/translator"
	"github.com/rs/zerolog/log"
)

const DefaultSampleRate = 0.1

// Layouts accepted for the timestamp prefix of a log line
var prefixLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
}

// Writer emits self metrics
type Writer interface {
	Counter(name string, timestamp int64, value uint64) error
	Timer(name string, timestamp int64, value int64) error
}

// Options configures an Emitter
type Options struct {
	SampleRate   float64       // Probability that a line triggers a report; 0 disables sampling
	EmitInterval time.Duration // Report at least this often via Tick; 0 disables
	Clock        clock.Clock
	Rand         func() float64 // Uniform in [0, 1)
}

// Emitter reports the ingestion delay and the running counters, then resets them
type Emitter struct {
	out       Writer
	stats     *domain.Stats
	opts      Options
	lastFlush time.Time
}

// New creates an emitter
func New(out Writer, stats *domain.Stats, opts Options) *Emitter {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}
	return &Emitter{
		out:       out,
		stats:     stats,
		opts:      opts,
		lastFlush: opts.Clock.Now(),
	}
}

// Observe is called for every line read. On a sampled line it emits the
// ingestion delay of that line followed by the counters.
func (e *Emitter) Observe(line []byte) error {
	if e.opts.SampleRate <= 0 || e.opts.Rand() >= e.opts.SampleRate {
		return nil
	}

	if err := e.writeDelay(line); err != nil {
		return err
	}
	return e.Flush()
}

// Tick flushes the counters when EmitInterval has passed since the last flush.
// The reader calls it while idle so quiet periods still report.
func (e *Emitter) Tick() error {
	if e.opts.EmitInterval <= 0 {
		return nil
	}
	if e.opts.Clock.Now().Sub(e.lastFlush) < e.opts.EmitInterval {
		return nil
	}
	return e.Flush()
}

// Flush emits and resets the counters
func (e *Emitter) Flush() error {
	now := e.opts.Clock.Now()
	ts := now.Unix()
	s := *e.stats

	counters := []struct {
		name  string
		value uint64
	}{
		{"lines.read", s.LinesRead},
		{"metrics.read", s.RecordsRead},
		{"metrics.sent", s.RecordsSent},
		{"metrics.discarded", s.RecordsDiscarded},
		{"state.write_errors", s.StateWriteErrors},
		{"reader.rotations", s.Rotations},
	}
	for _, c := range counters {
		if err := e.out.Counter(c.name, ts, c.value); err != nil {
			return err
		}
	}

	e.stats.Reset()
	e.lastFlush = now
	return nil
}

func (e *Emitter) writeDelay(line []byte) error {
	now := e.opts.Clock.Now()
	logTime, err := LineTime(line)
	if err != nil {
		log.Warn().Err(err).Msg("An error occurred while recording reader delay metrics")
		return nil
	}
	return e.out.Timer("reader.delay", now.Unix(), now.Sub(logTime).Milliseconds())
}

// LineTime returns the time a log line was written: the timestamp prefix
// before the JSON object, or else the record's "timestamp" field
func LineTime(line []byte) (time.Time, error) {
	prefix := line
	if i := bytes.IndexByte(line, '{'); i >= 0 {
		prefix = line[:i]
	}
	if fields := strings.Fields(string(prefix)); len(fields) > 0 {
		candidate := fields[0]
		if len(fields) > 1 {
			// "2006-01-02 15:04:05" style prefixes span two fields
			candidate = fields[0] + " " + fields[1]
		}
		for _, s := range []string{fields[0], candidate} {
			if len(s) > 30 {
				s = s[:30]
			}
			for _, layout := range prefixLayouts {
				if t, err := time.Parse(layout, s); err == nil {
					return t, nil
				}
			}
		}
	}

	obj, err := translator.Decode(line)
	if err != nil {
		return time.Time{}, fmt.Errorf("no timestamp in line: %w", err)
	}
	v, ok := obj["timestamp"]
	if !ok {
		return time.Time{}, fmt.Errorf("no timestamp in line")
	}
	secs, err := translator.ParseTimestamp(v)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(secs, 0), nil
}
