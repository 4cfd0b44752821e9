// Package sync drains the local durable queue against the remote store.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"kharcha/internal/core"
	"kharcha/internal/queue"
	"kharcha/internal/remote"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Outcome is the per-item result of one drain attempt.
type Outcome struct {
	ID     int64
	Status string
	Err    error
}

// Report is the ordered sequence of outcomes of one drain pass.
type Report []Outcome

// Succeeded returns the number of successful outcomes.
func (r Report) Succeeded() int {
	n := 0
	for _, o := range r {
		if o.Status == StatusSuccess {
			n++
		}
	}
	return n
}

// Failed returns the number of error outcomes.
func (r Report) Failed() int {
	return len(r) - r.Succeeded()
}

// Config holds drain tuning knobs.
type Config struct {
	// CallTimeout bounds each remote gateway call; a hung call becomes a
	// transport failure for that one item (default: 10s).
	CallTimeout time.Duration

	// MaxAttempts is the number of delivery attempts before a transport
	// failure dead-letters the item (default: 5).
	MaxAttempts int64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		CallTimeout: 10 * time.Second,
		MaxAttempts: 5,
	}
}

// Engine delivers queued mutations to the remote gateway: snapshot the
// pending items, dispatch strictly sequentially in enqueue order, remove on
// success, retain on failure. At most one drain pass is in flight at a
// time; concurrent triggers coalesce into the running pass and share its
// report.
type Engine struct {
	queue   *queue.Store
	gateway remote.Gateway
	config  Config

	group   singleflight.Group
	syncing atomic.Bool
}

func NewEngine(q *queue.Store, gw remote.Gateway, config Config) *Engine {
	if config.CallTimeout <= 0 {
		config.CallTimeout = DefaultConfig().CallTimeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultConfig().MaxAttempts
	}
	return &Engine{
		queue:   q,
		gateway: gw,
		config:  config,
	}
}

// Syncing reports whether a drain pass is currently in flight.
func (e *Engine) Syncing() bool {
	return e.syncing.Load()
}

// Drain runs one full delivery pass and returns the per-item outcomes in
// enqueue order. If a pass is already running the call joins it and
// receives that pass's report instead of starting a second one.
func (e *Engine) Drain(ctx context.Context) (Report, error) {
	v, err, shared := e.group.Do("drain", func() (interface{}, error) {
		e.syncing.Store(true)
		defer e.syncing.Store(false)
		return e.drain(ctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.DebugContext(ctx, "Drain trigger coalesced into running pass")
	}
	return v.(Report), nil
}

func (e *Engine) drain(ctx context.Context) (Report, error) {
	// Snapshot: arrivals during the pass wait for the next trigger.
	items, err := e.queue.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	if len(items) == 0 {
		return Report{}, nil
	}

	slog.InfoContext(ctx, "Drain started", "pending", len(items))

	report := make(Report, 0, len(items))
	halted := false // set on auth failure; remaining items short-circuit

	for _, item := range items {
		if halted {
			report = append(report, Outcome{ID: item.ID, Status: StatusError, Err: remote.ErrAuth})
			continue
		}
		if err := ctx.Err(); err != nil {
			report = append(report, Outcome{ID: item.ID, Status: StatusError, Err: err})
			continue
		}

		err := e.dispatch(ctx, item)
		if err == nil {
			if err := e.queue.Remove(ctx, item.ID); err != nil {
				// Delivered but not removed: the next pass may redeliver.
				// The idempotency key keeps the remote side from
				// duplicating the insert.
				slog.ErrorContext(ctx, "Failed to remove delivered item",
					"id", item.ID, "error", err)
			}
			report = append(report, Outcome{ID: item.ID, Status: StatusSuccess})
			slog.InfoContext(ctx, "Queue item delivered",
				"id", item.ID,
				"kind", item.Mutation.Kind)
			continue
		}

		report = append(report, Outcome{ID: item.ID, Status: StatusError, Err: err})
		e.handleFailure(ctx, item, err)

		if errors.Is(err, remote.ErrAuth) {
			slog.WarnContext(ctx, "Auth failure, short-circuiting remaining items",
				"id", item.ID)
			halted = true
		}
	}

	slog.InfoContext(ctx, "Drain finished",
		"total", len(report),
		"succeeded", report.Succeeded(),
		"failed", report.Failed())

	return report, nil
}

// dispatch sends one mutation to the gateway with a per-call timeout. A
// deadline expiry is reported as a transport failure.
func (e *Engine) dispatch(ctx context.Context, item queue.Item) error {
	cctx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
	defer cancel()

	var err error
	switch item.Mutation.Kind {
	case core.MutationAdd:
		_, err = e.gateway.Insert(cctx, remote.InsertRequest{
			OwnerID:        item.OwnerID,
			IdempotencyKey: item.IdempotencyKey,
			Fields:         item.Mutation.Fields,
		})
	case core.MutationUpdate:
		_, err = e.gateway.Update(cctx, item.OwnerID, item.Mutation.RemoteID, item.Mutation.Fields)
	case core.MutationDelete:
		err = e.gateway.Delete(cctx, item.OwnerID, item.Mutation.RemoteID)
	default:
		return core.ErrUnknownMutationKind
	}
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: call timed out after %v", remote.ErrTransport, e.config.CallTimeout)
	}
	return err
}

// handleFailure applies the retry policy: permanent rejections dead-letter
// immediately, transport failures dead-letter after MaxAttempts, auth
// failures keep the item untouched for after re-login.
func (e *Engine) handleFailure(ctx context.Context, item queue.Item, dispatchErr error) {
	slog.WarnContext(ctx, "Queue item delivery failed",
		"id", item.ID,
		"kind", item.Mutation.Kind,
		"attempt", item.Attempts+1,
		"error", dispatchErr)

	switch {
	case errors.Is(dispatchErr, remote.ErrAuth):
		// Not the item's fault; leave attempts alone.
	case remote.Permanent(dispatchErr):
		if err := e.queue.MarkDead(ctx, item.ID, dispatchErr.Error()); err != nil {
			slog.ErrorContext(ctx, "Failed to dead-letter item", "id", item.ID, "error", err)
		}
	case item.Attempts+1 >= e.config.MaxAttempts:
		if err := e.queue.MarkDead(ctx, item.ID, dispatchErr.Error()); err != nil {
			slog.ErrorContext(ctx, "Failed to dead-letter item", "id", item.ID, "error", err)
		}
		slog.ErrorContext(ctx, "Queue item failed permanently after max attempts",
			"id", item.ID,
			"attempts", item.Attempts+1)
	default:
		if err := e.queue.IncrementAttempt(ctx, item.ID, dispatchErr.Error()); err != nil {
			slog.ErrorContext(ctx, "Failed to record attempt", "id", item.ID, "error", err)
		}
	}
}
