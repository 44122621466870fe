package main

import (
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/framegrid/queued/internal/config"
)

// setupLogger builds the root logger. Local environments get console
// output; anything else logs JSON for the collector.
func setupLogger(cfg *config.Config, verbose bool) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}

	var logger zerolog.Logger
	switch cfg.Env {
	case "", "dev", "local":
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	default:
		logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", "queued").Logger()
	}

	return logger.Level(level)
}
