package accel

import (
	"context"
	"log/slog"
)

// LevelTrace sits just above Info so that command traces are kept by the
// JSON run logs without enabling Debug output.
const LevelTrace slog.Level = slog.LevelInfo + 1

// Trace logs a structured record at LevelTrace on the default logger.
func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}
