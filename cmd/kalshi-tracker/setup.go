package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rickgao/kalshi-tracker/internal/app"
	"github.com/rickgao/kalshi-tracker/internal/config"
)

// newLogger builds the process logger from the log config.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
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
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// loadConfig reads, overrides and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		return nil, err
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openApp loads config, sets the default logger and opens the store. With
// connect set it also loads credentials and builds the venue client.
func openApp(ctx context.Context, connect bool) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)
	logger.Debug("configuration loaded", "config", cfg.Redacted())

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if connect {
		if err := a.Connect(); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}
