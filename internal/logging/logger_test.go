package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"  WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, c := range cases {
		if got := ParseLevel(c.in); got != c.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestNewLoggerHonorsLevel(t *testing.T) {
	logger := NewLogger("api", "error")
	if logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be suppressed at error level")
	}
	if !logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled at error level")
	}
}
