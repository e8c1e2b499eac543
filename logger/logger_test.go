package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		level, err := ParseLevel(tt.input)
		require.NoError(t, err)
		assert.Equal(t, tt.want, level, "input %q", tt.input)
	}
}

func TestSimpleFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelDebug, &buf, "simple")

	Get().Info("agent started", "agent", "assistant")

	out := buf.String()
	assert.Contains(t, out, "INFO agent started")
	assert.Contains(t, out, "agent=assistant")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelWarn, &buf, "simple")

	Get().Debug("hidden")
	Get().Warn("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN visible")
}

func TestForComponent(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelInfo, &buf, "simple")

	ForComponent("workflow").Info("step complete")
	assert.Contains(t, buf.String(), "component=workflow")
}
