package http

import (
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
)

// handleSyncNow runs one drain pass on demand and reports the outcome. The
// engine coalesces the trigger into a running pass if one is in flight.
func (s *Server) handleSyncNow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	report, err := s.drainer.Drain(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Manual sync failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<div class="error">Sync failed: ` + template.HTMLEscapeString(err.Error()) + `</div>`))
		return
	}

	s.invalidateSummaries()
	w.Header().Set("HX-Trigger", `{"sync:finished": {}}`)

	if len(report) == 0 {
		_, _ = w.Write([]byte(`<div class="success">Nothing to sync</div>`))
		return
	}
	if report.Failed() == 0 {
		_, _ = w.Write([]byte(`<div class="success">Synced ` + strconv.Itoa(report.Succeeded()) + ` pending changes</div>`))
		return
	}
	_, _ = w.Write([]byte(`<div class="pending">Synced ` + strconv.Itoa(report.Succeeded()) +
		`, failed ` + strconv.Itoa(report.Failed()) + `; failed items remain queued</div>`))
}

// handleRetryDead resurrects dead-lettered items and drains immediately.
func (s *Server) handleRetryDead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	n, err := s.queue.RetryDead(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Retry dead-letters failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<div class="error">Could not retry failed items</div>`))
		return
	}
	if n == 0 {
		_, _ = w.Write([]byte(`<div class="success">No failed items to retry</div>`))
		return
	}

	slog.InfoContext(r.Context(), "Dead-lettered items requeued", "count", n)
	s.handleSyncNow(w, r)
}

// handleConnectivity applies the browser's online/offline signal. The
// monitor drains on the offline-to-online flip; the periodic probe still
// corrects a wrong client signal.
func (s *Server) handleConnectivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid request format", http.StatusBadRequest)
		return
	}

	online := r.Form.Get("online") == "true"
	s.control.SetOnline(r.Context(), online)
	s.handleSyncStatus(w, r)
}

// handleSyncStatus renders the connectivity and pending-count partial the
// page header polls.
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	pending, err := s.queue.Count(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Pending count error", "error", err)
		_, _ = w.Write([]byte(`<span class="sync-status error">storage error</span>`))
		return
	}

	switch {
	case s.control.Syncing():
		_, _ = w.Write([]byte(`<span class="sync-status syncing">syncing…</span>`))
	case !s.control.Online():
		_, _ = w.Write([]byte(`<span class="sync-status offline">offline, ` + strconv.FormatInt(pending, 10) + ` pending</span>`))
	case pending > 0:
		_, _ = w.Write([]byte(`<span class="sync-status pending">` + strconv.FormatInt(pending, 10) + ` pending</span>`))
	default:
		_, _ = w.Write([]byte(`<span class="sync-status online">online</span>`))
	}
}

// handleDeadLetters renders the list of permanently failed items.
func (s *Server) handleDeadLetters(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	items, err := s.queue.ListDead(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List dead-letters error", "error", err)
		_, _ = w.Write([]byte(`<div class="error">Could not load failed items</div>`))
		return
	}
	if len(items) == 0 {
		_, _ = w.Write([]byte(`<div class="placeholder">No failed items</div>`))
		return
	}

	type row struct {
		Kind        string
		Description string
		Amount      string
		Attempts    int64
		LastError   string
	}
	data := struct{ Rows []row }{}
	for _, it := range items {
		data.Rows = append(data.Rows, row{
			Kind:        string(it.Mutation.Kind),
			Description: template.HTMLEscapeString(it.Mutation.Fields.Description),
			Amount:      formatINR(it.Mutation.Fields.Amount.Cents),
			Attempts:    it.Attempts,
			LastError:   template.HTMLEscapeString(it.LastError),
		})
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<div class="placeholder">` + strconv.Itoa(len(items)) + ` failed items</div>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "dead_letters.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "dead_letters.html")
		_, _ = w.Write([]byte(`<div class="error">Could not render failed items</div>`))
	}
}
