package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	gosync "sync"
	"testing"

	"kharcha/internal/core"
	"kharcha/internal/queue"
	"kharcha/internal/remote/memory"
	"kharcha/internal/router"
	syncpkg "kharcha/internal/sync"
)

// fakeControl is a settable connectivity state standing in for the monitor.
type fakeControl struct {
	mu     gosync.Mutex
	online bool
}

func (c *fakeControl) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

func (c *fakeControl) Syncing() bool { return false }

func (c *fakeControl) SetOnline(_ context.Context, online bool) {
	c.mu.Lock()
	c.online = online
	c.mu.Unlock()
}

type testApp struct {
	srv     *Server
	store   *memory.Store
	queue   *queue.Store
	control *fakeControl
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	q, err := queue.Open(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	t.Cleanup(func() { q.Close() })

	store := memory.New()
	control := &fakeControl{online: true}
	engine := syncpkg.NewEngine(q, store, syncpkg.DefaultConfig())
	rt := router.New(control, store, q, nil)

	srv := NewServer(":0", rt, store, q, control, engine, nil, "local")
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	return &testApp{srv: srv, store: store, queue: q, control: control}
}

func (a *testApp) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	a.srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	a.srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func expenseForm() url.Values {
	return url.Values{
		"amount":      {"12.50"},
		"category":    {"Food"},
		"description": {"lunch"},
		"date":        {"2026-08-28"},
	}
}

func TestSaveExpenseOnline(t *testing.T) {
	app := newTestApp(t)

	rec := app.postForm(t, "/expenses", expenseForm())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Saved") {
		t.Errorf("expected saved confirmation, got %q", rec.Body.String())
	}
	if app.store.Count() != 1 {
		t.Errorf("expected remote write, store count=%d", app.store.Count())
	}
	n, _ := app.queue.Count(context.Background())
	if n != 0 {
		t.Errorf("online save must not queue, count=%d", n)
	}
}

func TestSaveExpenseOfflineQueuesAndSyncDrains(t *testing.T) {
	app := newTestApp(t)
	app.control.SetOnline(context.Background(), false)

	rec := app.postForm(t, "/expenses", expenseForm())
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "sync") {
		t.Errorf("offline response should mention pending sync, got %q", rec.Body.String())
	}
	if app.store.Count() != 0 {
		t.Errorf("offline save must not reach the remote, count=%d", app.store.Count())
	}

	// Back online: manual sync drains the queue.
	app.control.SetOnline(context.Background(), true)
	rec = app.postForm(t, "/sync", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sync: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Synced 1") {
		t.Errorf("expected one synced item, got %q", rec.Body.String())
	}
	if app.store.Count() != 1 {
		t.Errorf("expected drained expense in store, count=%d", app.store.Count())
	}
	n, _ := app.queue.Count(context.Background())
	if n != 0 {
		t.Errorf("queue should be empty after sync, count=%d", n)
	}
}

func TestSaveExpenseRejectsBadAmount(t *testing.T) {
	app := newTestApp(t)

	form := expenseForm()
	form.Set("amount", "-3")
	rec := app.postForm(t, "/expenses", form)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if app.store.Count() != 0 {
		t.Error("invalid expense must not be stored")
	}
}

func TestUpdateExpenseRequiresID(t *testing.T) {
	app := newTestApp(t)

	rec := app.postForm(t, "/expenses/update", expenseForm())
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without id, got %d", rec.Code)
	}
}

func TestDeleteExpenseOnline(t *testing.T) {
	app := newTestApp(t)

	app.postForm(t, "/expenses", expenseForm())
	exps, err := app.store.List(context.Background(), "local", core.DateRange{})
	if err != nil || len(exps) != 1 {
		t.Fatalf("seed expense: %v (%d)", err, len(exps))
	}

	rec := app.postForm(t, "/expenses/delete", url.Values{"id": {exps[0].ID}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if app.store.Count() != 0 {
		t.Errorf("expected expense deleted, count=%d", app.store.Count())
	}
}

func TestSyncStatusPartial(t *testing.T) {
	app := newTestApp(t)

	rec := app.get(t, "/ui/sync-status")
	if !strings.Contains(rec.Body.String(), "online") {
		t.Errorf("expected online status, got %q", rec.Body.String())
	}

	app.control.SetOnline(context.Background(), false)
	app.postForm(t, "/expenses", expenseForm())

	rec = app.get(t, "/ui/sync-status")
	if !strings.Contains(rec.Body.String(), "offline") || !strings.Contains(rec.Body.String(), "1 pending") {
		t.Errorf("expected offline with pending count, got %q", rec.Body.String())
	}
}

func TestParseWithoutParserReturnsNotImplemented(t *testing.T) {
	app := newTestApp(t)

	rec := app.postForm(t, "/ai/parse", url.Values{"text": {"coffee 120"}})
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 without parser, got %d", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t)

	if rec := app.get(t, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("healthz: expected 200, got %d", rec.Code)
	}
	if rec := app.get(t, "/readyz"); rec.Code != http.StatusOK {
		t.Errorf("readyz: expected 200, got %d", rec.Code)
	}
}
