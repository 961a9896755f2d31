package helpers

import (
	"context"
	"io"
	"log/slog"

	"github.com/GregMSThompson/dashboard-backend/pkg/logger"
)

// TestCtx returns a context whose logger drops everything.
func TestCtx() context.Context {
	log := slog.New(logger.NewTestHandler(slog.LevelInfo))
	return logger.ToContext(context.Background(), log)
}

// LogCtx returns a context whose logger writes Cloud Run entries to w at
// debug level, for tests that assert on log output.
func LogCtx(w io.Writer) context.Context {
	log := logger.New("debug", logger.CloudRunHandlerTo(w))
	return logger.ToContext(context.Background(), log)
}
