package metricline

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("broken pipe") }

func TestWriterFormats(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.Write("counters", "x", 100, "5", "  env=unknown"))
	require.NoError(t, w.Counter("lines.read", 200, 7))
	require.NoError(t, w.Timer("reader.delay", 300, 1500))

	assert.Equal(t,
		"autometrics.counters.x 100 5  env=unknown\n"+
			"autometrics.counters.lines.read 200 7\n"+
			"autometrics.timers.reader.delay 300 1500\n",
		buf.String())
}

func TestWriterReportsErrors(t *testing.T) {
	w := NewWriter(failingWriter{})
	assert.Error(t, w.Counter("lines.read", 1, 1))
}
