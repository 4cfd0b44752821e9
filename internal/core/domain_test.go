package core

import (
	"errors"
	"strings"
	"testing"
)

func validFields() ExpenseFields {
	return ExpenseFields{
		Amount:      Money{Cents: 1200},
		Currency:    "INR",
		Category:    "Food",
		Description: "lunch",
		Date:        NewDate(2026, 8, 28),
	}
}

func TestExpenseFieldsValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ExpenseFields)
		err    error
	}{
		{"valid", func(f *ExpenseFields) {}, nil},
		{"zero amount", func(f *ExpenseFields) { f.Amount.Cents = 0 }, ErrInvalidAmount},
		{"negative amount", func(f *ExpenseFields) { f.Amount.Cents = -5 }, ErrInvalidAmount},
		{"missing date", func(f *ExpenseFields) { f.Date = Date{} }, ErrInvalidDate},
		{"empty category", func(f *ExpenseFields) { f.Category = "  " }, ErrEmptyCategory},
		{"empty description", func(f *ExpenseFields) { f.Description = "" }, ErrEmptyDescription},
		{"bad time", func(f *ExpenseFields) { f.Time = "25:99" }, ErrInvalidTime},
		{"recurring without period", func(f *ExpenseFields) { f.IsRecurring = true }, ErrInvalidPeriod},
		{"recurring with period", func(f *ExpenseFields) { f.IsRecurring = true; f.Period = Monthly }, nil},
		{"valid time", func(f *ExpenseFields) { f.Time = "13:45" }, nil},
	}
	for _, tc := range cases {
		f := validFields()
		tc.mutate(&f)
		err := f.Validate()
		if tc.err == nil {
			if err != nil {
				t.Errorf("%s: unexpected error %v", tc.name, err)
			}
		} else if !errors.Is(err, tc.err) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.err, err)
		}
	}
}

func TestExpenseFieldsValidateLongDescription(t *testing.T) {
	f := validFields()
	f.Description = strings.Repeat("x", 201)
	if err := f.Validate(); err == nil {
		t.Error("expected error for description over 200 characters")
	}
}

func TestNormalize(t *testing.T) {
	f := ExpenseFields{
		Currency:    " inr ",
		Category:    " Food ",
		Description: " lunch ",
		Merchant:    " Cafe ",
		Time:        " 12:00 ",
	}
	f.Normalize()
	if f.Currency != "INR" {
		t.Errorf("expected INR, got %q", f.Currency)
	}
	if f.Category != "Food" || f.Description != "lunch" || f.Merchant != "Cafe" || f.Time != "12:00" {
		t.Errorf("fields not trimmed: %+v", f)
	}

	var empty ExpenseFields
	empty.Normalize()
	if empty.Currency != DefaultCurrency {
		t.Errorf("expected default currency %q, got %q", DefaultCurrency, empty.Currency)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-08-28")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "2026-08-28" {
		t.Errorf("round trip failed: %q", d.String())
	}

	if _, err := ParseDate("28/08/2026"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
	if _, err := ParseDate(""); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate for empty input, got %v", err)
	}
}

func TestDateRangeContains(t *testing.T) {
	r := DateRange{From: NewDate(2026, 8, 1), To: NewDate(2026, 8, 31)}
	if !r.Contains(NewDate(2026, 8, 15)) {
		t.Error("expected date inside range")
	}
	if !r.Contains(NewDate(2026, 8, 1)) || !r.Contains(NewDate(2026, 8, 31)) {
		t.Error("range bounds should be inclusive")
	}
	if r.Contains(NewDate(2026, 7, 31)) || r.Contains(NewDate(2026, 9, 1)) {
		t.Error("expected dates outside range to be excluded")
	}

	var unbounded DateRange
	if !unbounded.Contains(NewDate(1999, 1, 1)) {
		t.Error("zero range should contain everything")
	}
}

func TestMutationValidate(t *testing.T) {
	f := validFields()

	if err := AddMutation(f).Validate(); err != nil {
		t.Errorf("add: unexpected error %v", err)
	}
	if err := UpdateMutation("abc", f).Validate(); err != nil {
		t.Errorf("update: unexpected error %v", err)
	}
	if err := DeleteMutation("abc").Validate(); err != nil {
		t.Errorf("delete: unexpected error %v", err)
	}

	if err := UpdateMutation("", f).Validate(); !errors.Is(err, ErrMissingRemoteID) {
		t.Errorf("update without id: expected ErrMissingRemoteID, got %v", err)
	}
	if err := DeleteMutation("").Validate(); !errors.Is(err, ErrMissingRemoteID) {
		t.Errorf("delete without id: expected ErrMissingRemoteID, got %v", err)
	}
	if err := (Mutation{Kind: "upsert"}).Validate(); !errors.Is(err, ErrUnknownMutationKind) {
		t.Errorf("unknown kind: expected ErrUnknownMutationKind, got %v", err)
	}
}
