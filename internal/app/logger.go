package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide slog.Logger, emitting JSON when the
// config asks for it and human-readable text otherwise.
func NewLogger(cfg *Config) *slog.Logger {
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))
}
