package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the JSON logger every process in this service
// shares. slog keeps the standard library feel while still emitting
// structured records, and the service attr lets one log pipeline tell
// the api and the consumer mirror apart.
func NewLogger(service, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: true,
	}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler).With("service", service)
}

// ParseLevel maps a config string to a slog level, defaulting to info
// on anything unrecognized.
func ParseLevel(level string) slog.Level {
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
