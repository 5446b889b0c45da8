package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunExitCodes(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "json_metrics.log")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	state := filepath.Join(dir, "autometrics.position")

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		args []string
		want int
	}{
		{
			name: "missing file is a no-op",
			ctx:  context.Background(),
			args: []string{"--file", filepath.Join(dir, "absent.log"), "--state", state},
			want: 0,
		},
		{
			name: "missing directory is a no-op",
			ctx:  context.Background(),
			args: []string{"--dir", filepath.Join(dir, "nope"), "--file", file, "--state", state},
			want: 0,
		},
		{
			name: "interrupt stops cleanly",
			ctx:  cancelled,
			args: []string{"--file", file, "--state", state},
			want: 0,
		},
		{
			name: "invalid configuration",
			ctx:  context.Background(),
			args: []string{"--file", file, "--sample-rate=2"},
			want: 1,
		},
		{
			name: "help",
			ctx:  context.Background(),
			args: []string{"--help"},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout bytes.Buffer
			got := run(tt.ctx, append(tt.args, "--log-level=error"), &stdout)
			assert.Equal(t, tt.want, got)
			assert.Empty(t, stdout.String())
		})
	}
}
