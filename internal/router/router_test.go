package router

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"kharcha/internal/core"
	"kharcha/internal/queue"
	"kharcha/internal/remote"
	"kharcha/internal/remote/memory"
)

type fixedConnectivity bool

func (c fixedConnectivity) Online() bool { return bool(c) }

type recordingNotifier struct {
	mu    sync.Mutex
	calls []int64
	err   error
}

func (n *recordingNotifier) PublishQueuedWrite(_ context.Context, itemID int64, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.calls = append(n.calls, itemID)
	return nil
}

func openTestQueue(t *testing.T) *queue.Store {
	t.Helper()
	q, err := queue.Open(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	t.Cleanup(func() { q.Close() })
	return q
}

func addFields() core.ExpenseFields {
	return core.ExpenseFields{
		Amount:      core.Money{Cents: 750},
		Currency:    "INR",
		Category:    "Transport",
		Description: "auto fare",
		Date:        core.NewDate(2026, 8, 28),
	}
}

func TestSaveOnlineGoesRemote(t *testing.T) {
	store := memory.New()
	q := openTestQueue(t)
	r := New(fixedConnectivity(true), store, q, nil)
	ctx := context.Background()

	result, err := r.Save(ctx, "local", core.AddMutation(addFields()))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if result.Status != SavedRemotely {
		t.Fatalf("expected SavedRemotely, got %s", result.Status)
	}
	if result.Expense.ID == "" {
		t.Error("expected remote-assigned expense id")
	}

	if store.Count() != 1 {
		t.Errorf("expected 1 remote expense, got %d", store.Count())
	}
	n, err := q.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("online save must not enqueue, count=%d", n)
	}
}

func TestSaveOfflineEnqueues(t *testing.T) {
	store := memory.New()
	q := openTestQueue(t)
	notifier := &recordingNotifier{}
	r := New(fixedConnectivity(false), store, q, notifier)
	ctx := context.Background()

	result, err := r.Save(ctx, "local", core.AddMutation(addFields()))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if result.Status != SavedLocally {
		t.Fatalf("expected SavedLocally, got %s", result.Status)
	}
	if result.Item.IdempotencyKey == "" {
		t.Error("queued item must carry an idempotency key")
	}

	if store.Count() != 0 {
		t.Errorf("offline save must not reach the remote store, got %d", store.Count())
	}
	n, err := q.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 queued item, count=%d", n)
	}
	if len(notifier.calls) != 1 || notifier.calls[0] != result.Item.ID {
		t.Errorf("expected one notification for item %d, got %v", result.Item.ID, notifier.calls)
	}
}

func TestSaveOnlineFailureSurfacesWithoutFallback(t *testing.T) {
	store := memory.New()
	q := openTestQueue(t)
	r := New(fixedConnectivity(true), store, q, nil)
	ctx := context.Background()

	// Updating a nonexistent expense fails remotely.
	_, err := r.Save(ctx, "local", core.UpdateMutation("no-such-id", addFields()))
	if !errors.Is(err, remote.ErrNotFoundOrUnauthorized) {
		t.Fatalf("expected remote failure to surface, got %v", err)
	}

	n, cerr := q.Count(ctx)
	if cerr != nil {
		t.Fatalf("count: %v", cerr)
	}
	if n != 0 {
		t.Errorf("a failed online save must never be silently queued, count=%d", n)
	}
}

func TestSaveRejectsInvalidMutation(t *testing.T) {
	store := memory.New()
	q := openTestQueue(t)
	r := New(fixedConnectivity(false), store, q, nil)

	_, err := r.Save(context.Background(), "local", core.DeleteMutation(""))
	if !errors.Is(err, core.ErrMissingRemoteID) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSaveOfflineNotifierFailureDoesNotFailSave(t *testing.T) {
	store := memory.New()
	q := openTestQueue(t)
	notifier := &recordingNotifier{err: errors.New("broker down")}
	r := New(fixedConnectivity(false), store, q, notifier)
	ctx := context.Background()

	result, err := r.Save(ctx, "local", core.AddMutation(addFields()))
	if err != nil {
		t.Fatalf("save must succeed despite notifier failure: %v", err)
	}
	if result.Status != SavedLocally {
		t.Fatalf("expected SavedLocally, got %s", result.Status)
	}
	n, err := q.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected item queued, count=%d", n)
	}
}

func TestSaveOfflineDeleteQueues(t *testing.T) {
	store := memory.New()
	q := openTestQueue(t)
	r := New(fixedConnectivity(false), store, q, nil)
	ctx := context.Background()

	result, err := r.Save(ctx, "local", core.DeleteMutation("remote-42"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if result.Status != SavedLocally {
		t.Fatalf("expected SavedLocally, got %s", result.Status)
	}
	if result.Item.Mutation.RemoteID != "remote-42" {
		t.Errorf("queued delete must keep its remote id, got %q", result.Item.Mutation.RemoteID)
	}
}
