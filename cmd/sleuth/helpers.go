package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/germanamz/sleuth/pkg/engine"
	"github.com/germanamz/sleuth/pkg/telemetry"
	"github.com/joho/godotenv"
)

const defaultConfigPath = "sleuth.yaml"

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// resolveConfigPath returns the config file to use: the explicit flag when
// set, otherwise $SLEUTH_CONFIG, otherwise sleuth.yaml.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv("SLEUTH_CONFIG"); env != "" {
		return env
	}
	return defaultConfigPath
}

// newLogger builds the process logger from the log config. verbose forces
// debug level.
func newLogger(w io.Writer, cfg engine.LogConfig, verbose bool) *slog.Logger {
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func flushTelemetry(shutdown telemetry.ShutdownFunc, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdown(ctx); err != nil {
		log.Warn("telemetry shutdown", "error", err)
	}
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
