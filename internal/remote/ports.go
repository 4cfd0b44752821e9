// Package remote defines the port to the authoritative expense store and
// the failure taxonomy the sync engine keys its retry decisions on.
package remote

import (
	"context"
	"errors"

	"kharcha/internal/core"
)

// Ports for outbound adapters. Every call is scoped to an owner; an expense
// is never visible to, or mutable by, a non-owning caller.
type (
	// InsertRequest carries the mutation fields plus the idempotency key
	// assigned when the mutation was first accepted. A gateway that has
	// already applied the key returns the existing expense instead of
	// inserting a duplicate.
	InsertRequest struct {
		OwnerID        string
		IdempotencyKey string
		Fields         core.ExpenseFields
	}

	Gateway interface {
		Insert(ctx context.Context, req InsertRequest) (core.Expense, error)
		Update(ctx context.Context, ownerID, id string, fields core.ExpenseFields) (core.Expense, error)
		Delete(ctx context.Context, ownerID, id string) error
	}

	// Lister returns the owner's expenses ordered by descending date, then
	// by descending creation time.
	Lister interface {
		List(ctx context.Context, ownerID string, r core.DateRange) ([]core.Expense, error)
	}

	// Prober reports whether the remote store is currently reachable.
	// The connectivity monitor polls it.
	Prober interface {
		Probe(ctx context.Context) error
	}
)

var (
	// ErrTransport: the remote store is unreachable. Retryable.
	ErrTransport = errors.New("remote unreachable")

	// ErrAuth: the owner session is invalid. A drain seeing this
	// short-circuits its remaining items.
	ErrAuth = errors.New("authentication failed")

	// ErrValidation: the payload was rejected. Permanently undeliverable
	// without user correction.
	ErrValidation = errors.New("payload rejected")

	// ErrNotFoundOrUnauthorized: the target expense does not exist or does
	// not belong to the caller.
	ErrNotFoundOrUnauthorized = errors.New("expense not found or not owned")
)

// Permanent reports whether err can never succeed on retry.
func Permanent(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFoundOrUnauthorized)
}
