package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"kharcha/internal/queue"
	"kharcha/internal/remote"
)

// MonitorConfig holds connectivity monitor tuning knobs.
type MonitorConfig struct {
	// ProbeInterval is how often the remote store's reachability is checked
	// (default: 15s).
	ProbeInterval time.Duration

	// ProbeTimeout bounds a single reachability check (default: 5s).
	ProbeTimeout time.Duration

	// StartupDelay is how long after Start the one-time catch-up check runs
	// (default: 500ms, matching the app's first-paint settle time).
	StartupDelay time.Duration
}

// DefaultMonitorConfig returns sensible defaults.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		ProbeInterval: 15 * time.Second,
		ProbeTimeout:  5 * time.Second,
		StartupDelay:  500 * time.Millisecond,
	}
}

// Monitor tracks the online/offline state and triggers drains on the
// offline-to-online transition. The engine's coalescing guard makes
// overlapping triggers from the probe loop, the startup check, and manual
// "sync now" actions safe.
type Monitor struct {
	engine *Engine
	queue  *queue.Store
	prober remote.Prober
	config MonitorConfig

	// OnReport, when set, receives the report of every drain the monitor
	// triggers. The HTTP layer uses it to surface sync toasts.
	OnReport func(Report)

	mu      sync.Mutex
	online  bool
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewMonitor(engine *Engine, q *queue.Store, prober remote.Prober, config MonitorConfig) *Monitor {
	if config.ProbeInterval <= 0 {
		config.ProbeInterval = DefaultMonitorConfig().ProbeInterval
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = DefaultMonitorConfig().ProbeTimeout
	}
	if config.StartupDelay < 0 {
		config.StartupDelay = 0
	}
	return &Monitor{
		engine: engine,
		queue:  q,
		prober: prober,
		config: config,
	}
}

// Online reports the last observed connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Syncing reports whether a drain pass is in flight.
func (m *Monitor) Syncing() bool {
	return m.engine.Syncing()
}

// Start probes once to seed the state and launches the watch loop. Returns
// an error if already running.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("connectivity monitor is already running")
	}
	m.running = true
	m.online = m.probe(ctx)
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	online := m.online
	m.mu.Unlock()

	go m.watch(ctx)

	slog.InfoContext(ctx, "Connectivity monitor started",
		"online", online,
		"probe_interval", m.config.ProbeInterval)

	return nil
}

// Stop halts the watch loop and waits for it, bounded by ctx.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopCh)

	select {
	case <-m.doneCh:
		slog.InfoContext(ctx, "Connectivity monitor stopped")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Connectivity monitor stop timed out")
		return ctx.Err()
	}
}

// SetOnline applies an explicit connectivity signal, e.g. from a runtime
// network-status event. An offline-to-online flip triggers one drain.
func (m *Monitor) SetOnline(ctx context.Context, online bool) {
	m.mu.Lock()
	was := m.online
	m.online = online
	m.mu.Unlock()

	if online == was {
		return
	}
	if !online {
		slog.InfoContext(ctx, "Network went offline")
		return
	}
	slog.InfoContext(ctx, "Network came online, draining sync queue")
	m.drain(ctx)
}

func (m *Monitor) watch(ctx context.Context) {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.config.ProbeInterval)
	defer ticker.Stop()

	startup := time.NewTimer(m.config.StartupDelay)
	defer startup.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-startup.C:
			m.startupCheck(ctx)
		case <-ticker.C:
			m.SetOnline(ctx, m.probe(ctx))
		}
	}
}

// startupCheck covers items queued in a previous session when connectivity
// is already restored on startup: no transition event will ever fire for
// them, so drain once if online and the queue is non-empty.
func (m *Monitor) startupCheck(ctx context.Context) {
	if !m.Online() {
		return
	}
	n, err := m.queue.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Startup pending count failed", "error", err)
		return
	}
	if n == 0 {
		return
	}
	slog.InfoContext(ctx, "Pending items found on startup, draining", "count", n)
	m.drain(ctx)
}

func (m *Monitor) probe(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
	defer cancel()
	return m.prober.Probe(pctx) == nil
}

func (m *Monitor) drain(ctx context.Context) {
	report, err := m.engine.Drain(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Drain failed", "error", err)
		return
	}
	if m.OnReport != nil && len(report) > 0 {
		m.OnReport(report)
	}
}
