package http

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"kharcha/internal/core"
	"kharcha/internal/queue"
	"kharcha/internal/router"
)

// fieldsFromForm builds the expense fields from a submitted form. The form
// was already parsed by the caller.
func fieldsFromForm(r *http.Request) (core.ExpenseFields, error) {
	cents, err := core.ParseDecimalToCents(r.Form.Get("amount"))
	if err != nil {
		return core.ExpenseFields{}, err
	}

	dateStr := strings.TrimSpace(r.Form.Get("date"))
	if dateStr == "" {
		dateStr = time.Now().Format("2006-01-02")
	}
	date, err := core.ParseDate(dateStr)
	if err != nil {
		return core.ExpenseFields{}, err
	}

	var tags []string
	for _, t := range strings.Split(r.Form.Get("tags"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}

	f := core.ExpenseFields{
		Amount:      core.Money{Cents: cents},
		Currency:    sanitizeInput(r.Form.Get("currency")),
		Category:    sanitizeInput(r.Form.Get("category")),
		Description: sanitizeInput(r.Form.Get("description")),
		Merchant:    sanitizeInput(r.Form.Get("merchant")),
		Date:        date,
		Time:        strings.TrimSpace(r.Form.Get("time")),
		IsRecurring: r.Form.Get("recurring") == "on" || r.Form.Get("recurring") == "true",
		Period:      core.RecurrencePeriod(strings.TrimSpace(r.Form.Get("period"))),
		Tags:        tags,
	}
	f.Normalize()
	return f, f.Validate()
}

func (s *Server) handleSaveExpense(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "method", r.Method, "url", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`<div class="error">Invalid request format</div>`))
		return
	}

	fields, err := fieldsFromForm(r)
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Invalid expense: ` + template.HTMLEscapeString(err.Error()) + `</div>`))
		return
	}

	s.saveMutation(w, r, core.AddMutation(fields))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`<div class="error">Invalid request format</div>`))
		return
	}

	id := strings.TrimSpace(r.Form.Get("id"))
	if id == "" {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Missing expense id</div>`))
		return
	}

	fields, err := fieldsFromForm(r)
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Invalid expense: ` + template.HTMLEscapeString(err.Error()) + `</div>`))
		return
	}

	s.saveMutation(w, r, core.UpdateMutation(id, fields))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`<div class="error">Invalid request format</div>`))
		return
	}

	id := strings.TrimSpace(r.Form.Get("id"))
	if id == "" {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Missing expense id</div>`))
		return
	}

	s.saveMutation(w, r, core.DeleteMutation(id))
}

// saveMutation routes the mutation and renders the outcome. A locally queued
// save is a success from the user's point of view; the response says so
// explicitly instead of pretending the remote write happened.
func (s *Server) saveMutation(w http.ResponseWriter, r *http.Request, m core.Mutation) {
	result, err := s.router.Save(r.Context(), s.ownerID, m)
	if err != nil {
		if errors.Is(err, queue.ErrStorage) {
			slog.ErrorContext(r.Context(), "Local queue unavailable, mutation lost", "error", err, "kind", m.Kind)
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`<div class="error">Could not save: local storage unavailable</div>`))
			return
		}
		slog.ErrorContext(r.Context(), "Save error", "error", err, "kind", m.Kind)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<div class="error">Could not save: ` + template.HTMLEscapeString(err.Error()) + `</div>`))
		return
	}

	s.invalidateSummaries()

	switch result.Status {
	case router.SavedRemotely:
		w.Header().Set("HX-Trigger", `{"expense:saved": {"status": "remote"}}`)
		w.WriteHeader(http.StatusOK)
		switch m.Kind {
		case core.MutationDelete:
			_, _ = w.Write([]byte(`<div class="success">Expense deleted</div>`))
		default:
			_, _ = w.Write([]byte(`<div class="success">Saved: ` +
				template.HTMLEscapeString(result.Expense.Fields.Description) +
				` — ` + template.HTMLEscapeString(formatINR(result.Expense.Fields.Amount.Cents)) + `</div>`))
		}
	case router.SavedLocally:
		w.Header().Set("HX-Trigger", `{"expense:saved": {"status": "local"}}`)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`<div class="pending">Saved locally, will sync when back online</div>`))
	}
}
