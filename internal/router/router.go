// Package router decides, per user-authored mutation, between a direct
// remote write and a locally queued one.
package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"kharcha/internal/core"
	"kharcha/internal/queue"
	"kharcha/internal/remote"
)

type SaveStatus string

const (
	// SavedRemotely: the mutation was applied to the authoritative store.
	SavedRemotely SaveStatus = "saved_remotely"

	// SavedLocally: the mutation was enqueued and awaits synchronization.
	SavedLocally SaveStatus = "saved_locally"
)

// SaveResult reports where a mutation landed. Expense is set for remote
// add/update; Item is set for locally queued saves.
type SaveResult struct {
	Status  SaveStatus
	Expense core.Expense
	Item    queue.Item
}

// Connectivity is the router's view of the monitor.
type Connectivity interface {
	Online() bool
}

// Notifier publishes queued-write notifications for the drain worker.
// Optional; a nil notifier skips publication.
type Notifier interface {
	PublishQueuedWrite(ctx context.Context, itemID int64, kind string) error
}

type Router struct {
	connectivity Connectivity
	gateway      remote.Gateway
	queue        *queue.Store
	notifier     Notifier
}

func New(connectivity Connectivity, gateway remote.Gateway, q *queue.Store, notifier Notifier) *Router {
	return &Router{
		connectivity: connectivity,
		gateway:      gateway,
		queue:        q,
		notifier:     notifier,
	}
}

// Save routes one mutation. Online, the gateway is called directly and a
// failure surfaces to the caller immediately — a failed online attempt is
// never silently re-queued. Offline, the mutation is enqueued durably.
func (r *Router) Save(ctx context.Context, ownerID string, m core.Mutation) (SaveResult, error) {
	if err := m.Validate(); err != nil {
		return SaveResult{}, fmt.Errorf("validate mutation: %w", err)
	}

	if r.connectivity.Online() {
		return r.saveRemote(ctx, ownerID, m)
	}
	return r.saveLocal(ctx, ownerID, m)
}

func (r *Router) saveRemote(ctx context.Context, ownerID string, m core.Mutation) (SaveResult, error) {
	var (
		expense core.Expense
		err     error
	)
	switch m.Kind {
	case core.MutationAdd:
		expense, err = r.gateway.Insert(ctx, remote.InsertRequest{
			OwnerID:        ownerID,
			IdempotencyKey: uuid.NewString(),
			Fields:         m.Fields,
		})
	case core.MutationUpdate:
		expense, err = r.gateway.Update(ctx, ownerID, m.RemoteID, m.Fields)
	case core.MutationDelete:
		err = r.gateway.Delete(ctx, ownerID, m.RemoteID)
	default:
		return SaveResult{}, core.ErrUnknownMutationKind
	}
	if err != nil {
		return SaveResult{}, fmt.Errorf("remote %s: %w", m.Kind, err)
	}

	slog.InfoContext(ctx, "Mutation saved remotely",
		"kind", m.Kind,
		"expense_id", expense.ID)

	return SaveResult{Status: SavedRemotely, Expense: expense}, nil
}

func (r *Router) saveLocal(ctx context.Context, ownerID string, m core.Mutation) (SaveResult, error) {
	item, err := r.queue.Enqueue(ctx, ownerID, m)
	if err != nil {
		return SaveResult{}, fmt.Errorf("enqueue mutation: %w", err)
	}

	// Best effort: the periodic probe and the startup check cover a lost
	// notification, so a publish failure never fails the save.
	if r.notifier != nil {
		if err := r.notifier.PublishQueuedWrite(ctx, item.ID, string(m.Kind)); err != nil {
			slog.ErrorContext(ctx, "Failed to publish queued-write notification",
				"item_id", item.ID, "error", err)
		}
	}

	slog.InfoContext(ctx, "Mutation saved locally, pending sync",
		"kind", m.Kind,
		"item_id", item.ID)

	return SaveResult{Status: SavedLocally, Item: item}, nil
}
