// Package metricline writes the autometrics line protocol:
//
//	<namespace>.<category>.<name> <unix_timestamp> <value>[<suffix>]
package metricline

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/SteelMorgan/autometrics-agent/internal/domain"
)

// Writer emits one metric per line and flushes after every line so the
// consuming process sees metrics as soon as they are produced
type Writer struct {
	out *bufio.Writer
}

// NewWriter creates a line writer over w
func NewWriter(w io.Writer) *Writer {
	return &Writer{out: bufio.NewWriter(w)}
}

// Write emits a single metric line. suffix is appended verbatim after the
// value; callers include any leading separator.
func (w *Writer) Write(category, name string, timestamp int64, value, suffix string) error {
	out := w.out
	out.WriteString(domain.Namespace)
	out.WriteByte('.')
	out.WriteString(category)
	out.WriteByte('.')
	out.WriteString(name)
	out.WriteByte(' ')
	out.WriteString(strconv.FormatInt(timestamp, 10))
	out.WriteByte(' ')
	out.WriteString(value)
	out.WriteString(suffix)
	out.WriteByte('\n')

	if err := out.Flush(); err != nil {
		return fmt.Errorf("failed to write metric %s.%s: %w", category, name, err)
	}
	return nil
}

// Counter emits an untagged counter
func (w *Writer) Counter(name string, timestamp int64, value uint64) error {
	return w.Write("counters", name, timestamp, strconv.FormatUint(value, 10), "")
}

// Timer emits an untagged timer
func (w *Writer) Timer(name string, timestamp int64, value int64) error {
	return w.Write("timers", name, timestamp, strconv.FormatInt(value, 10), "")
}
