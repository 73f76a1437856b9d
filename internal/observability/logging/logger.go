package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewJSONLogger builds the process logger. Every record carries the service name.
func NewJSONLogger(service, level string) *slog.Logger {
	return newJSONLogger(os.Stdout, service, level)
}

// Install builds the logger and makes it the slog default.
func Install(service, level string) *slog.Logger {
	logger := NewJSONLogger(service, level)
	slog.SetDefault(logger)
	return logger
}

// InstallTo is Install with an explicit writer. Stdio transports log to stderr.
func InstallTo(w io.Writer, service, level string) *slog.Logger {
	logger := newJSONLogger(w, service, level)
	slog.SetDefault(logger)
	return logger
}

func newJSONLogger(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler).With("service", service)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
