package logger

import (
	"io"
	"log/slog"
)

// NewTestHandler discards everything at or above level.
func NewTestHandler(level slog.Level) slog.Handler {
	return slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: level})
}
