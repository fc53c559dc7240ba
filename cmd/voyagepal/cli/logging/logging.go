// Package logging wraps log/slog for the CLI. Logs go to a file under the
// CLI home so they never interleave with command output; when the file cannot
// be opened, logging falls back to stderr.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/voyagepal/cli/cmd/voyagepal/cli/paths"
	"github.com/voyagepal/cli/cmd/voyagepal/cli/redact"
)

// LogLevelEnvVar overrides the configured log level.
const LogLevelEnvVar = "VOYAGEPAL_LOG_LEVEL"

type componentKey struct{}

var (
	mu          sync.RWMutex
	logger      = slog.New(slog.NewTextHandler(io.Discard, nil))
	logFile     *os.File
	levelGetter func() string
)

// SetLogLevelGetter installs a callback that reads the configured level
// (typically from settings). The env var still takes precedence.
func SetLogLevelGetter(fn func() string) {
	mu.Lock()
	defer mu.Unlock()
	levelGetter = fn
}

// Init opens <home>/logs/voyagepal.log and installs a JSON handler on it.
// On error the logger writes to stderr and the error is returned so the
// caller can decide whether to care.
func Init(_ context.Context, home string) error {
	level := resolveLevel()

	dir := paths.LogsDir(home)
	if err := paths.EnsureDir(dir); err != nil {
		install(os.Stderr, nil, level)
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, paths.LogFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		install(os.Stderr, nil, level)
		return fmt.Errorf("failed to open log file: %w", err)
	}
	install(f, f, level)
	return nil
}

// InitWriter installs a handler writing to w. Used by tests and by commands
// that want logs on an explicit stream.
func InitWriter(w io.Writer, level slog.Level) {
	install(w, nil, level)
}

func install(w io.Writer, f *os.File, level slog.Level) {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactAttr,
	})
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil && logFile != f {
		_ = logFile.Close()
	}
	logFile = f
	logger = slog.New(h)
}

// Close flushes and closes the log file, if any.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func resolveLevel() slog.Level {
	raw := os.Getenv(LogLevelEnvVar)
	if raw == "" {
		mu.RLock()
		get := levelGetter
		mu.RUnlock()
		if get != nil {
			raw = get()
		}
	}
	return ParseLevel(raw)
}

// ParseLevel maps a settings string to a slog level. Unknown values fall
// back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, redact.String(a.Value.String()))
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, redact.String(err.Error()))
		}
	}
	return a
}

// WithComponent tags ctx so log lines emitted with it carry component=name.
func WithComponent(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, componentKey{}, name)
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func log(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	l := current()
	if !l.Enabled(ctx, level) {
		return
	}
	if c, ok := ctx.Value(componentKey{}).(string); ok && c != "" {
		attrs = append([]any{slog.String("component", c)}, attrs...)
	}
	l.Log(ctx, level, redact.String(msg), attrs...)
}

// Debug logs at debug level.
func Debug(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelDebug, msg, attrs...) }

// Info logs at info level.
func Info(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelInfo, msg, attrs...) }

// Warn logs at warn level.
func Warn(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelWarn, msg, attrs...) }

// Error logs at error level.
func Error(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelError, msg, attrs...) }

// LogDuration logs msg at level with a duration_ms attribute measured from start.
func LogDuration(ctx context.Context, level slog.Level, msg string, start time.Time, attrs ...any) {
	attrs = append(attrs, slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	log(ctx, level, msg, attrs...)
}
