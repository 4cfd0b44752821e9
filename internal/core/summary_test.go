package core

import (
	"testing"
	"time"
)

func expenseOn(date Date, category string, cents int64) Expense {
	return Expense{
		ID:      "e-" + category,
		OwnerID: "local",
		Fields: ExpenseFields{
			Amount:      Money{Cents: cents},
			Currency:    "INR",
			Category:    category,
			Description: "x",
			Date:        date,
		},
	}
}

func TestPeriodRange(t *testing.T) {
	ref := time.Date(2026, 8, 28, 14, 30, 0, 0, time.UTC)

	day := PeriodRange(PeriodDay, ref)
	if day.From.String() != "2026-08-28" || day.To.String() != "2026-08-28" {
		t.Errorf("day range: %s..%s", day.From, day.To)
	}

	week := PeriodRange(PeriodWeek, ref)
	if week.From.String() != "2026-08-22" || week.To.String() != "2026-08-28" {
		t.Errorf("week range: %s..%s", week.From, week.To)
	}

	month := PeriodRange(PeriodMonth, ref)
	if month.From.String() != "2026-08-01" || month.To.String() != "2026-08-31" {
		t.Errorf("month range: %s..%s", month.From, month.To)
	}

	// Unknown period falls back to month
	other := PeriodRange("quarter", ref)
	if other != month {
		t.Errorf("unknown period should fall back to month, got %s..%s", other.From, other.To)
	}
}

func TestSummarize(t *testing.T) {
	r := DateRange{From: NewDate(2026, 8, 1), To: NewDate(2026, 8, 31)}
	expenses := []Expense{
		expenseOn(NewDate(2026, 8, 5), "Food", 500),
		expenseOn(NewDate(2026, 8, 10), "Transport", 1200),
		expenseOn(NewDate(2026, 8, 12), "Food", 300),
		expenseOn(NewDate(2026, 7, 30), "Food", 9999), // outside range
	}

	s := Summarize(expenses, r)
	if s.Count != 3 {
		t.Fatalf("expected 3 expenses counted, got %d", s.Count)
	}
	if s.Total.Cents != 2000 {
		t.Errorf("expected total 2000, got %d", s.Total.Cents)
	}
	if len(s.ByCategory) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(s.ByCategory))
	}
	// Sorted by descending amount
	if s.ByCategory[0].Name != "Transport" || s.ByCategory[0].Amount.Cents != 1200 {
		t.Errorf("unexpected first category: %+v", s.ByCategory[0])
	}
	if s.ByCategory[1].Name != "Food" || s.ByCategory[1].Amount.Cents != 800 {
		t.Errorf("unexpected second category: %+v", s.ByCategory[1])
	}
}

func TestSummarizeTiesSortedByName(t *testing.T) {
	r := DateRange{}
	expenses := []Expense{
		expenseOn(NewDate(2026, 8, 5), "Zoo", 500),
		expenseOn(NewDate(2026, 8, 6), "Arcade", 500),
	}
	s := Summarize(expenses, r)
	if s.ByCategory[0].Name != "Arcade" {
		t.Errorf("equal amounts should sort by name, got %q first", s.ByCategory[0].Name)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, DateRange{})
	if s.Count != 0 || s.Total.Cents != 0 || len(s.ByCategory) != 0 {
		t.Errorf("empty input should produce zero summary: %+v", s)
	}
}
