package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kharcha/internal/ai"
	"kharcha/internal/backend"
	"kharcha/internal/config"
	apphttp "kharcha/internal/http"
	applog "kharcha/internal/log"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.Setup()
	logger.Info("Starting kharcha")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
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

	// Start the connectivity monitor: it seeds the online state, runs the
	// startup catch-up check, and drains on the offline-to-online flip.
	if err := b.Monitor.Start(ctx); err != nil {
		logger.Error("Failed to start connectivity monitor", "error", err)
		os.Exit(1)
	}

	var parser *ai.Parser
	if cfg.AIAPIKey != "" {
		parser = ai.NewParser(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel)
		logger.Info("AI parser enabled", "model", cfg.AIModel)
	} else {
		logger.Info("AI parser disabled - no AI_API_KEY provided")
	}

	srv := apphttp.NewServer(":"+cfg.Port, b.Router, b.Lister, b.Queue, b.Monitor, b.Engine, parser, cfg.OwnerID)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := b.Monitor.Stop(shutdownCtx); err != nil {
			logger.Error("Monitor shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting kharcha server",
		"port", cfg.Port,
		"remote", cfg.RemoteBackend,
		"queue_db", cfg.QueueDBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
