package logging

import (
	"log/slog"
	"os"
)

// Logger is the minimal logging surface the library needs. It exists so that
// callers can plug their own logging stack in; the default implementation
// writes through log/slog.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type defaultLogger struct {
	logger *slog.Logger
}

// NewDefaultLogger returns a Logger backed by a slog text handler on stderr.
func NewDefaultLogger(level slog.Level) Logger {
	return &defaultLogger{
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})),
	}
}

// FromSlog wraps an existing slog.Logger.
func FromSlog(logger *slog.Logger) Logger {
	return &defaultLogger{logger: logger}
}

func (d *defaultLogger) Debug(msg string, args ...any) { d.logger.Debug(msg, args...) }
func (d *defaultLogger) Info(msg string, args ...any)  { d.logger.Info(msg, args...) }
func (d *defaultLogger) Warn(msg string, args ...any)  { d.logger.Warn(msg, args...) }
func (d *defaultLogger) Error(msg string, args ...any) { d.logger.Error(msg, args...) }

type nopLogger struct{}

// Nop returns a Logger that discards everything. Useful in tests and as the
// fallback when a component is constructed without a logger.
func Nop() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
