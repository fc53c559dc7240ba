package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The logger is package state; these tests cannot run in parallel.

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestWithComponent_AddsAttribute(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, slog.LevelDebug)
	t.Cleanup(Close)

	ctx := WithComponent(context.Background(), "workflow")
	Info(ctx, "phase transition", slog.String("to", "suggested"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "workflow", lines[0]["component"])
	assert.Equal(t, "suggested", lines[0]["to"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, slog.LevelWarn)
	t.Cleanup(Close)

	ctx := context.Background()
	Debug(ctx, "hidden")
	Info(ctx, "hidden too")
	Warn(ctx, "shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["msg"])
}

func TestRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, slog.LevelDebug)
	t.Cleanup(Close)

	Error(context.Background(), "request failed",
		slog.String("header", "Bearer supersecrettoken"),
		slog.Any("error", errors.New("auth Bearer othersecret rejected")),
	)

	out := buf.String()
	assert.NotContains(t, out, "supersecrettoken")
	assert.NotContains(t, out, "othersecret")
}

func TestLogDuration(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, slog.LevelDebug)
	t.Cleanup(Close)

	LogDuration(context.Background(), slog.LevelInfo, "done", time.Now().Add(-time.Second))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	ms, ok := lines[0]["duration_ms"].(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, ms, float64(1000))
}

func TestInit_WritesLogFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv(LogLevelEnvVar, "debug")
	require.NoError(t, Init(context.Background(), home))

	Debug(context.Background(), "hello file")
	Close()

	data, err := os.ReadFile(filepath.Join(home, "logs", "voyagepal.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello file")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
