// Package memory provides an in-memory remote store. It backs local
// development and doubles as the authoritative store in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"kharcha/internal/core"
	"kharcha/internal/remote"
)

type Store struct {
	mu       sync.Mutex
	expenses map[string]core.Expense // id -> expense
	applied  map[string]string       // idempotency key -> expense id
	now      func() time.Time
}

func New() *Store {
	return &Store{
		expenses: make(map[string]core.Expense),
		applied:  make(map[string]string),
		now:      time.Now,
	}
}

// Insert stores a new expense for the owner. A request whose idempotency
// key was already applied returns the existing expense unchanged.
func (s *Store) Insert(_ context.Context, req remote.InsertRequest) (core.Expense, error) {
	if req.OwnerID == "" {
		return core.Expense{}, remote.ErrAuth
	}
	if err := req.Fields.Validate(); err != nil {
		return core.Expense{}, remote.ErrValidation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.IdempotencyKey != "" {
		if id, ok := s.applied[req.IdempotencyKey]; ok {
			return s.expenses[id], nil
		}
	}
	e := core.Expense{
		ID:        uuid.NewString(),
		OwnerID:   req.OwnerID,
		Fields:    req.Fields,
		CreatedAt: s.now(),
	}
	s.expenses[e.ID] = e
	if req.IdempotencyKey != "" {
		s.applied[req.IdempotencyKey] = e.ID
	}
	return e, nil
}

func (s *Store) Update(_ context.Context, ownerID, id string, fields core.ExpenseFields) (core.Expense, error) {
	if ownerID == "" {
		return core.Expense{}, remote.ErrAuth
	}
	if err := fields.Validate(); err != nil {
		return core.Expense{}, remote.ErrValidation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok || e.OwnerID != ownerID {
		return core.Expense{}, remote.ErrNotFoundOrUnauthorized
	}
	e.Fields = fields
	s.expenses[id] = e
	return e, nil
}

func (s *Store) Delete(_ context.Context, ownerID, id string) error {
	if ownerID == "" {
		return remote.ErrAuth
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok || e.OwnerID != ownerID {
		return remote.ErrNotFoundOrUnauthorized
	}
	delete(s.expenses, id)
	return nil
}

// List returns the owner's expenses in descending date order, ties broken
// by descending creation time.
func (s *Store) List(_ context.Context, ownerID string, r core.DateRange) ([]core.Expense, error) {
	if ownerID == "" {
		return nil, remote.ErrAuth
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.expenses {
		if e.OwnerID != ownerID {
			continue
		}
		if !r.Contains(e.Fields.Date) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].Fields.Date.Time, out[j].Fields.Date.Time
		if !di.Equal(dj) {
			return di.After(dj)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Probe always succeeds; the in-memory store is never unreachable.
func (s *Store) Probe(_ context.Context) error {
	return nil
}

// Count reports the number of stored expenses across all owners.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expenses)
}

var (
	_ remote.Gateway = (*Store)(nil)
	_ remote.Lister  = (*Store)(nil)
	_ remote.Prober  = (*Store)(nil)
)
