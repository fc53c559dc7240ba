package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/voyagepal/cli/cmd/voyagepal/cli/logging"
)

// commandContext carries the logging state of one command invocation.
type commandContext struct {
	name  string
	ctx   context.Context
	start time.Time
}

func newCommandContext(ctx context.Context, name string) *commandContext {
	return &commandContext{
		name:  name,
		start: time.Now(),
		ctx:   logging.WithComponent(ctx, "cli"),
	}
}

func (c *commandContext) logInvoked(extraAttrs ...any) {
	attrs := []any{slog.String("command", c.name)}
	logging.Debug(c.ctx, c.name+" invoked", append(attrs, extraAttrs...)...)
}

// logCompleted logs completion with duration. Failures are logged at WARN.
func (c *commandContext) logCompleted(err error, extraAttrs ...any) {
	attrs := []any{
		slog.String("command", c.name),
		slog.Bool("success", err == nil),
	}
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	logging.LogDuration(c.ctx, level, c.name+" completed", c.start, append(attrs, extraAttrs...)...)
}

// run wraps fn with invocation and completion logging.
func (c *commandContext) run(fn func(ctx context.Context) error, extraAttrs ...any) error {
	c.logInvoked(extraAttrs...)
	err := fn(c.ctx)
	c.logCompleted(err, extraAttrs...)
	return err
}
