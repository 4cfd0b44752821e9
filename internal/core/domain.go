package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Daily   RecurrencePeriod = "daily"
	Weekly  RecurrencePeriod = "weekly"
	Monthly RecurrencePeriod = "monthly"
	Yearly  RecurrencePeriod = "yearly"
)

// DefaultCurrency is applied when a parsed or submitted expense carries none.
const DefaultCurrency = "INR"

type (
	RecurrencePeriod string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// ExpenseFields is the user-authored field set of a mutation. It is what
	// the write router receives, what queue items carry as payload, and what
	// the remote gateway persists.
	ExpenseFields struct {
		Amount      Money
		Currency    string
		Category    string
		Description string
		Merchant    string // optional
		Date        Date
		Time        string // optional, HH:mm
		IsRecurring bool
		Period      RecurrencePeriod // set only when IsRecurring
		Tags        []string
	}

	// Expense is the authoritative remote record: the fields plus the
	// identity the remote store assigned and the owner it is scoped to.
	Expense struct {
		ID        string
		OwnerID   string
		Fields    ExpenseFields
		CreatedAt time.Time
	}

	// DateRange filters expense listings; zero bounds mean unbounded.
	DateRange struct {
		From Date
		To   Date
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidTime      = errors.New("invalid time")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidPeriod    = errors.New("invalid recurrence period")
)

// NewDate creates a Date from year, month, day at UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses the YYYY-MM-DD wire format used throughout the app.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String renders the YYYY-MM-DD wire format.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

// Contains reports whether the date falls inside the range.
func (r DateRange) Contains(d Date) bool {
	if !r.From.IsZero() && d.Before(r.From.Time) {
		return false
	}
	if !r.To.IsZero() && d.After(r.To.Time) {
		return false
	}
	return true
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (p RecurrencePeriod) Valid() bool {
	switch p {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// Normalize fills defaults and trims free-text fields in place.
func (f *ExpenseFields) Normalize() {
	f.Currency = strings.ToUpper(strings.TrimSpace(f.Currency))
	if f.Currency == "" {
		f.Currency = DefaultCurrency
	}
	f.Category = strings.TrimSpace(f.Category)
	f.Description = strings.TrimSpace(f.Description)
	f.Merchant = strings.TrimSpace(f.Merchant)
	f.Time = strings.TrimSpace(f.Time)
}

func (f ExpenseFields) Validate() error {
	if err := f.Amount.Validate(); err != nil {
		return err
	}
	if err := f.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(f.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(f.Description) == "" {
		return ErrEmptyDescription
	}
	if len(f.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if f.Time != "" {
		if _, err := time.Parse("15:04", f.Time); err != nil {
			return ErrInvalidTime
		}
	}
	if f.IsRecurring && !f.Period.Valid() {
		return ErrInvalidPeriod
	}
	return nil
}
