package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "", want: slog.LevelInfo},
		{in: "DEBUG", want: slog.LevelDebug},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "loud", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLogger_ConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogger(Options{Level: "info", Output: &buf})
	require.NoError(t, err)
	defer l.Close()

	l.Debug("hidden")
	l.Info("visible", "endpoint", "/api/me")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible")
	assert.Contains(t, buf.String(), "/api/me")
}

func TestNewLogger_WritesFile(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	l, err := NewLogger(Options{Level: "debug", LogDir: dir, Output: &buf})
	require.NoError(t, err)

	l.With("run", "r1").Info("hello")
	require.NoError(t, l.Close())

	files, err := filepath.Glob(filepath.Join(dir, "probe_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"run":"r1"`)
	assert.Contains(t, buf.String(), "hello")
}
