// Package log is smith's structured logger. It writes to stderr only:
// stdout is the agent's.
package log

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"

	"github.com/felixgeelhaar/smith/internal/errors"
)

// Logger wraps a slog.Logger.
type Logger struct {
	slog *slog.Logger
}

// New builds a Logger from config. A nil Output discards.
func New(config Config) *Logger {
	out := config.Output
	if out == nil {
		out = io.Discard
	}
	opts := &slog.HandlerOptions{
		Level:     config.Level.ToSlogLevel(),
		AddSource: config.AddSource,
	}

	var handler slog.Handler = slog.NewTextHandler(out, opts)
	if config.Format == FormatJSON {
		handler = slog.NewJSONHandler(out, opts)
	}

	l := slog.New(handler)
	if config.ServiceVersion != "" {
		l = l.With("smith_version", config.ServiceVersion)
	}
	return &Logger{slog: l}
}

// Default is New(DefaultConfig()).
func Default() *Logger { return New(DefaultConfig()) }

// Discard returns a Logger that writes nowhere.
func Discard() *Logger {
	return New(Config{Level: LevelError})
}

// With returns a Logger that adds args to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...)}
}

// WithError attaches err. For a *errors.SmithError anywhere in the chain the
// code, suggestions and cause are attached as separate attributes.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.With(errorAttrs(err)...)
}

func errorAttrs(err error) []any {
	var se *errors.SmithError
	if !stderrors.As(err, &se) {
		return []any{"error", err.Error()}
	}

	attrs := []any{"error", se.Message, "error_code", string(se.Code)}
	if len(se.Suggestions) > 0 {
		attrs = append(attrs, "suggestions", se.Suggestions)
	}
	if se.Cause != nil {
		attrs = append(attrs, "cause", se.Cause.Error())
	}
	return attrs
}

func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

// Enabled reports whether a record at level would be written. Use it to skip
// building expensive attributes.
func (l *Logger) Enabled(ctx context.Context, level Level) bool {
	return l.slog.Enabled(ctx, level.ToSlogLevel())
}
