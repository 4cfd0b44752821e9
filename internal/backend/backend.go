// Package backend assembles the storage, sync, and routing components from
// configuration. Both binaries build the same backend and pick the pieces
// they need.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"kharcha/internal/amqp"
	"kharcha/internal/config"
	"kharcha/internal/queue"
	"kharcha/internal/remote"
	"kharcha/internal/remote/memory"
	"kharcha/internal/remote/sheets"
	"kharcha/internal/router"
	syncpkg "kharcha/internal/sync"
)

// remoteStore is what every remote backend must provide.
type remoteStore interface {
	remote.Gateway
	remote.Lister
	remote.Prober
}

// Backend is the assembled component graph.
type Backend struct {
	Config  *config.Config
	Queue   *queue.Store
	Gateway remote.Gateway
	Lister  remote.Lister
	Prober  remote.Prober
	Engine  *syncpkg.Engine
	Monitor *syncpkg.Monitor
	Router  *router.Router

	// AMQP is nil when no AMQP URL is configured; the periodic probe and
	// the startup check then carry the drain triggers alone.
	AMQP *amqp.Client
}

// Build constructs the backend from configuration.
func Build(ctx context.Context, cfg *config.Config) (*Backend, error) {
	store, err := buildRemote(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build remote backend: %w", err)
	}

	q, err := queue.Open(cfg.QueueDBPath)
	if err != nil {
		return nil, fmt.Errorf("open sync queue: %w", err)
	}

	engine := syncpkg.NewEngine(q, store, syncpkg.Config{
		CallTimeout: cfg.SyncCallTimeout,
		MaxAttempts: int64(cfg.SyncMaxAttempts),
	})

	monitor := syncpkg.NewMonitor(engine, q, store, syncpkg.MonitorConfig{
		ProbeInterval: cfg.ProbeInterval,
		StartupDelay:  cfg.StartupDelay,
	})

	b := &Backend{
		Config:  cfg,
		Queue:   q,
		Gateway: store,
		Lister:  store,
		Prober:  store,
		Engine:  engine,
		Monitor: monitor,
	}

	var notifier router.Notifier
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			q.Close()
			return nil, fmt.Errorf("connect AMQP: %w", err)
		}
		b.AMQP = client
		notifier = client
	}

	b.Router = router.New(monitor, store, q, notifier)

	slog.InfoContext(ctx, "Backend assembled",
		"remote", cfg.RemoteBackend,
		"queue_db", cfg.QueueDBPath,
		"amqp", cfg.AMQPURL != "")

	return b, nil
}

func buildRemote(ctx context.Context, cfg *config.Config) (remoteStore, error) {
	switch cfg.RemoteBackend {
	case "sheets":
		return sheets.NewFromEnv(ctx)
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown remote backend %q", cfg.RemoteBackend)
	}
}

// Close releases held resources. The monitor must already be stopped.
func (b *Backend) Close() error {
	if b.AMQP != nil {
		if err := b.AMQP.Close(); err != nil {
			slog.Error("Failed to close AMQP client", "error", err)
		}
	}
	if b.Queue != nil {
		return b.Queue.Close()
	}
	return nil
}
