package core

import (
	"sort"
	"time"
)

type (
	CategoryAmount struct {
		Name   string
		Amount Money
	}

	// Summary aggregates a slice of expenses for one dashboard period.
	Summary struct {
		Range      DateRange
		Total      Money
		ByCategory []CategoryAmount
		Count      int
	}
)

// Dashboard periods offered by the UI.
const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

// PeriodRange resolves a named period to the date range ending at ref.
// Unknown names fall back to the current month.
func PeriodRange(period string, ref time.Time) DateRange {
	day := NewDate(ref.Year(), int(ref.Month()), ref.Day())
	switch period {
	case PeriodDay:
		return DateRange{From: day, To: day}
	case PeriodWeek:
		from := Date{Time: day.AddDate(0, 0, -6)}
		return DateRange{From: from, To: day}
	default:
		first := NewDate(ref.Year(), int(ref.Month()), 1)
		last := Date{Time: first.AddDate(0, 1, -1)}
		return DateRange{From: first, To: last}
	}
}

// Summarize totals the expenses that fall inside the range, grouped by
// category and sorted by descending amount.
func Summarize(expenses []Expense, r DateRange) Summary {
	sums := map[string]int64{}
	s := Summary{Range: r}
	for _, e := range expenses {
		if !r.Contains(e.Fields.Date) {
			continue
		}
		s.Total.Cents += e.Fields.Amount.Cents
		sums[e.Fields.Category] += e.Fields.Amount.Cents
		s.Count++
	}
	for name, cents := range sums {
		s.ByCategory = append(s.ByCategory, CategoryAmount{Name: name, Amount: Money{Cents: cents}})
	}
	sort.Slice(s.ByCategory, func(i, j int) bool {
		if s.ByCategory[i].Amount.Cents != s.ByCategory[j].Amount.Cents {
			return s.ByCategory[i].Amount.Cents > s.ByCategory[j].Amount.Cents
		}
		return s.ByCategory[i].Name < s.ByCategory[j].Name
	})
	return s
}
