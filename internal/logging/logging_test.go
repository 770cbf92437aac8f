package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eytandecker/skytour/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"chatty", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	l, closer := New(config.LogConfig{Level: "warn"}, &buf)
	defer closer.Close()

	l.Info("hidden")
	l.With("component", "voice").Warn("shown", "state", "IDLE")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "component=voice")
}

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skytour.log")
	var buf bytes.Buffer
	l, closer := New(config.LogConfig{Level: "debug", File: path, MaxSizeMB: 1}, &buf)

	l.With("component", "dialogue").Debug("responding", "intent", "question")
	require.NoError(t, closer.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var found bool
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		if rec["msg"] == "responding" {
			found = true
			assert.Equal(t, "dialogue", rec["component"])
			assert.Equal(t, "question", rec["intent"])
			assert.Equal(t, "DEBUG", rec["level"])
		}
	}
	require.NoError(t, sc.Err())
	assert.True(t, found)
	assert.Contains(t, buf.String(), "msg=responding")
}
