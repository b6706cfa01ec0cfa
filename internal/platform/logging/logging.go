// Package logging builds the process-wide slog.Logger from config: a
// level/format switch over the stdlib text and JSON handlers.
package logging

import (
	"log/slog"
	"os"
)

// Config controls format and verbosity. Mirrors config.LogConfig.
type Config struct {
	Level  string // debug | info | warn | error
	Format string // text | json
}

// New builds a logger per cfg. Unknown level defaults to info; unknown
// format defaults to text.
func New(cfg Config) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
