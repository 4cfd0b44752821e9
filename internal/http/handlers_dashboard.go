package http

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"kharcha/internal/core"
)

func (s *Server) getSummary(ctx context.Context, period string) (core.Summary, error) {
	if data, found := s.summaryCache.Get(period); found {
		slog.DebugContext(ctx, "Summary cache hit", "period", period)
		return data, nil
	}

	// Add a small timeout to avoid hanging partials
	cctx, cancel := context.WithTimeout(ctx, 7*time.Second)
	defer cancel()

	rng := core.PeriodRange(period, time.Now())
	expenses, err := s.lister.List(cctx, s.ownerID, rng)
	if err != nil {
		return core.Summary{}, fmt.Errorf("list expenses (period=%s): %w", period, err)
	}

	data := core.Summarize(expenses, rng)
	s.summaryCache.Set(period, data)
	slog.DebugContext(ctx, "Summary cached",
		"period", period,
		"total_cents", data.Total.Cents,
		"categories", len(data.ByCategory))
	return data, nil
}

// handleSummary renders the dashboard summary partial for one period.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	period := strings.TrimSpace(r.URL.Query().Get("period"))
	switch period {
	case core.PeriodDay, core.PeriodWeek, core.PeriodMonth:
	default:
		period = core.PeriodMonth
	}

	sum, err := s.getSummary(r.Context(), period)
	if err != nil {
		slog.ErrorContext(r.Context(), "Summary error", "error", err, "period", period)
		_, _ = w.Write([]byte(`<section id="summary" class="summary"><div class="placeholder">Could not load summary</div></section>`))
		return
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<section id="summary" class="summary"><div class="placeholder">Total: ` + formatINR(sum.Total.Cents) + `</div></section>`))
		return
	}

	// Compute max category for progress scaling
	var maxCents int64
	for _, c := range sum.ByCategory {
		if c.Amount.Cents > maxCents {
			maxCents = c.Amount.Cents
		}
	}

	type row struct {
		Name, Amount string
		Width        int
	}
	data := struct {
		Period string
		Total  string
		Count  int
		Rows   []row
	}{Period: period, Total: formatINR(sum.Total.Cents), Count: sum.Count}

	for _, c := range sum.ByCategory {
		width := 0
		if maxCents > 0 && c.Amount.Cents > 0 {
			width = int((c.Amount.Cents*100 + maxCents/2) / maxCents) // rounded percent
			if width > 0 && width < 2 {
				width = 2
			}
			if width > 100 {
				width = 100
			}
		}
		data.Rows = append(data.Rows, row{
			Name:   template.HTMLEscapeString(c.Name),
			Amount: formatINR(c.Amount.Cents),
			Width:  width,
		})
	}

	if err := s.templates.ExecuteTemplate(w, "summary.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "summary.html", "period", period)
		_, _ = w.Write([]byte(`<section id="summary" class="summary"><div class="placeholder">Could not render summary</div></section>`))
	}
}
