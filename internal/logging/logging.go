// Package logging provides the narrow {log} capability the design
// notes ask for (spec §9): a thin adapter over log/slog, the same
// leveled structured logging the teacher uses throughout
// (internal/cron, internal/tracing, internal/config). It never
// introduces a second logging framework.
package logging

import "log/slog"

// Logger is the capability narrow components depend on — never the
// full *slog.Logger surface, just the four levels the scheduler core
// uses.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type slogLogger struct {
	*slog.Logger
}

// New wraps the default slog.Logger.
func New() Logger {
	return slogLogger{slog.Default()}
}

// WithGroup returns a Logger whose records are nested under name,
// useful for separating e.g. "gitstore" from "scheduler" output.
func WithGroup(l Logger, name string) Logger {
	if sl, ok := l.(slogLogger); ok {
		return slogLogger{sl.Logger.WithGroup(name)}
	}
	return l
}
