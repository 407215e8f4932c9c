package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Init sets up the global logger with JSON handler.
// LOG_LEVEL (debug, info, warn, error) adjusts verbosity; default is info.
func Init() {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}
