// Package translator maps JSON log records to autometrics metric lines.
package translator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/SteelMorgan/autometrics-agent/internal/clock"
	"github.com/SteelMorgan/autometrics-agent/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	defaultName = "unidentified"
	defaultTags = " env=unknown"
	categoryTag = " category=metrics"
	meterFields = " unit=SECONDS event_type=events"
)

// Record keys, primary name first, then the legacy alias
var (
	nameKeys  = []string{"name", "metric_name"}
	typeKeys  = []string{"type", "metric_type"}
	valueKeys = []string{"value", "metric_value"}
	tagsKeys  = []string{"tags", "metric_tags"}
)

// forbiddenTags are host-identifying tags added by producers; the collector sets its own
var forbiddenTags = map[string]bool{
	"server_type": true,
	"dc":          true,
	"host":        true,
}

var tagValueReplacer = strings.NewReplacer(
	":", "_",
	" ", "_",
	"<", "",
	">", "",
	"'", "",
)

// LineWriter emits a formatted metric line
type LineWriter interface {
	Write(category, name string, timestamp int64, value, suffix string) error
}

// Translator converts raw lines to metric lines
type Translator struct {
	out   LineWriter
	stats *domain.Stats
	clock clock.Clock
}

// New creates a translator writing to out and counting into stats
func New(out LineWriter, stats *domain.Stats, clk clock.Clock) *Translator {
	if clk == nil {
		clk = clock.Real()
	}
	return &Translator{out: out, stats: stats, clock: clk}
}

// Handle translates one raw line. Malformed or unsupported records are
// counted as discarded; the only returned error is a failed output write.
func (t *Translator) Handle(line []byte) error {
	obj, err := Decode(line)
	if err != nil {
		t.discard(line, err)
		return nil
	}
	t.stats.RecordsRead++

	rec, err := BuildRecord(obj, t.clock.Now().Unix())
	if err != nil {
		t.discard(line, err)
		return nil
	}
	if rec.Type == domain.MetricUnknown {
		t.discard(line, fmt.Errorf("unsupported metric type"))
		return nil
	}

	if err := t.out.Write(rec.Type.Category(), rec.Name, rec.Timestamp, rec.Value, Suffix(rec)); err != nil {
		return err
	}
	t.stats.RecordsSent++
	return nil
}

func (t *Translator) discard(line []byte, reason error) {
	t.stats.RecordsDiscarded++
	log.Debug().
		Err(reason).
		Str("line", string(line[:min(len(line), 100)])).
		Msg("Discarding record")
}

// BuildRecord extracts a MetricRecord from a decoded JSON object.
// Missing fields take defaults; now is used when no timestamp is given.
func BuildRecord(obj map[string]any, now int64) (*domain.MetricRecord, error) {
	rec := &domain.MetricRecord{
		Name:      defaultName,
		Type:      domain.MetricUnknown,
		Value:     "0",
		Timestamp: now,
	}

	if v, ok := lookup(obj, nameKeys); ok {
		rec.Name = formatValue(v)
	}
	if v, ok := lookup(obj, typeKeys); ok {
		if s, isString := v.(string); isString {
			rec.Type = domain.ParseMetricType(s)
		}
	}
	if v, ok := lookup(obj, valueKeys); ok {
		rec.Value = formatValue(v)
	}
	if v, ok := obj["timestamp"]; ok && v != nil {
		ts, err := ParseTimestamp(v)
		if err != nil {
			return nil, err
		}
		rec.Timestamp = ts
	}
	if v, ok := lookup(obj, tagsKeys); ok {
		tags, isMap := v.(map[string]any)
		if !isMap {
			return nil, fmt.Errorf("tags must be an object, got %T", v)
		}
		rec.HasTags = true
		rec.Tags = make(map[string]string, len(tags))
		for k, tv := range tags {
			if tv == nil || forbiddenTags[k] {
				continue
			}
			rec.Tags[k] = SanitizeTagValue(formatValue(tv))
		}
	}

	return rec, nil
}

// lookup returns the first non-null value among keys
func lookup(obj map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// SanitizeTagValue makes a tag value safe for the whitespace-delimited protocol
func SanitizeTagValue(v string) string {
	return tagValueReplacer.Replace(v)
}

// Suffix renders everything after the value for rec's type
func Suffix(rec *domain.MetricRecord) string {
	tags := renderTags(rec)
	if rec.Type == domain.MetricMeter {
		return meterFields + tags
	}
	return " " + tags
}

func renderTags(rec *domain.MetricRecord) string {
	if !rec.HasTags {
		return defaultTags
	}

	keys := make([]string, 0, len(rec.Tags))
	for k := range rec.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(categoryTag)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(rec.Tags[k])
	}
	return b.String()
}
