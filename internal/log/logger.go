// Package log wires slog with per-component loggers shared by both
// binaries.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Standard component names used across the app.
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentQueue   = "queue"
	ComponentSync    = "sync"
	ComponentMonitor = "monitor"
	ComponentRouter  = "router"
	ComponentAMQP    = "amqp"
	ComponentRemote  = "remote"
	ComponentWorker  = "worker"
	ComponentAI      = "ai"
)

// Setup installs a text handler at the level named by LOG_LEVEL (debug,
// info, warn, error; default info) as the process default and returns it.
func Setup() *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: LevelFromEnv(),
	}))
	slog.SetDefault(logger)
	return logger
}

// LevelFromEnv resolves LOG_LEVEL to a slog.Level, defaulting to Info.
func LevelFromEnv() slog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent returns a logger carrying the component attribute.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}
