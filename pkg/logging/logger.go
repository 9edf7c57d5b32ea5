// Package logging provides the process-wide structured logger: a
// package-level *slog.Logger configured once at startup from an
// env-overridable level, defaulting to a text handler on stdout.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Log is the process-wide logger. It is safe to read from multiple
// goroutines once Init has returned; Init itself must be called once,
// before any worker or acceptor goroutine starts.
var Log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

// Init reconfigures Log from the given level string ("debug", "info",
// "warn", "error"); unrecognized or empty values fall back to info.
func Init(level string) {
	Log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(level)}))
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
