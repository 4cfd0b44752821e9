package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kharcha/internal/amqp"
	"kharcha/internal/backend"
	"kharcha/internal/config"
	applog "kharcha/internal/log"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.Setup()
	logger.Info("Starting kharcha-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := backend.Build(ctx, cfg)
	if err != nil {
		logger.Error("Failed to build backend", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	// On startup, drain anything queued while the worker was down.
	logger.Info("Performing startup drain check...")
	if pending, err := b.Queue.Count(ctx); err != nil {
		logger.Error("Startup pending count failed", "error", err)
	} else if pending > 0 {
		logger.Info("Pending items found on startup, draining", "count", pending)
		if report, err := b.Engine.Drain(ctx); err != nil {
			logger.Error("Startup drain failed", "error", err)
		} else {
			logger.Info("Startup drain complete",
				"succeeded", report.Succeeded(),
				"failed", report.Failed())
		}
	}

	// Consume queued-write notifications; each one triggers a drain pass.
	// The engine coalesces a burst of notifications into one pass.
	go func() {
		err := b.AMQP.ConsumeQueuedWrites(ctx, func(msg *amqp.QueuedWriteMessage) error {
			logger.Info("Queued-write notification received",
				"item_id", msg.ItemID,
				"kind", msg.Kind)
			report, err := b.Engine.Drain(ctx)
			if err != nil {
				return err
			}
			logger.Info("Drain complete",
				"succeeded", report.Succeeded(),
				"failed", report.Failed())
			return nil
		})
		if err != nil && err != context.Canceled {
			logger.Error("Message consumption failed", "error", err)
		}
		cancel()
	}()

	// Periodic drain covers notifications lost while AMQP was down.
	ticker := time.NewTicker(cfg.ProbeInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pending, err := b.Queue.Count(ctx)
				if err != nil {
					logger.Error("Periodic pending count failed", "error", err)
					continue
				}
				if pending == 0 {
					continue
				}
				if _, err := b.Engine.Drain(ctx); err != nil {
					logger.Error("Periodic drain failed", "error", err)
				}
			}
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down worker...")
	cancel()

	select {
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached")
	case <-time.After(2 * time.Second):
		logger.Info("Worker shutdown complete")
	}
}
