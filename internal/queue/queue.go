// Package queue implements the local durable queue of pending mutations.
//
// An item exists in the queue if and only if its mutation has not yet been
// confirmed applied to the remote store. Items are removed strictly after
// confirmed success; on failure they remain for retry. The mutation payload
// is never mutated in place — only the attempt/dead bookkeeping beside it.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"kharcha/internal/core"
)

// ErrStorage signals that the local queue store is unavailable or corrupted.
// A mutation that hits this is lost from durability unless the caller
// reports it to the user.
var ErrStorage = errors.New("queue storage failure")

// Item is one pending mutation awaiting delivery.
type Item struct {
	ID             int64
	OwnerID        string
	Mutation       core.Mutation
	IdempotencyKey string
	EnqueuedAt     time.Time
	Attempts       int64
	LastError      string
}

type Store struct {
	db *sql.DB

	// Serialize writes to avoid SQLite lock contention between the router
	// and a concurrent drain.
	writeMu sync.Mutex
}

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// payload is the JSON shape persisted in the payload column.
type payload struct {
	OwnerID     string   `json:"owner_id"`
	AmountCents int64    `json:"amount_cents"`
	Currency    string   `json:"currency"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Merchant    string   `json:"merchant,omitempty"`
	Date        string   `json:"date"`
	Time        string   `json:"time,omitempty"`
	IsRecurring bool     `json:"is_recurring,omitempty"`
	Period      string   `json:"period,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

func encodePayload(ownerID string, f core.ExpenseFields) ([]byte, error) {
	return json.Marshal(payload{
		OwnerID:     ownerID,
		AmountCents: f.Amount.Cents,
		Currency:    f.Currency,
		Category:    f.Category,
		Description: f.Description,
		Merchant:    f.Merchant,
		Date:        f.Date.String(),
		Time:        f.Time,
		IsRecurring: f.IsRecurring,
		Period:      string(f.Period),
		Tags:        f.Tags,
	})
}

func decodePayload(raw []byte) (string, core.ExpenseFields, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", core.ExpenseFields{}, err
	}
	f := core.ExpenseFields{
		Amount:      core.Money{Cents: p.AmountCents},
		Currency:    p.Currency,
		Category:    p.Category,
		Description: p.Description,
		Merchant:    p.Merchant,
		Time:        p.Time,
		IsRecurring: p.IsRecurring,
		Period:      core.RecurrencePeriod(p.Period),
		Tags:        p.Tags,
	}
	if p.Date != "" {
		d, err := core.ParseDate(p.Date)
		if err != nil {
			return "", core.ExpenseFields{}, err
		}
		f.Date = d
	}
	return p.OwnerID, f, nil
}

// Enqueue appends a mutation to the queue and assigns it an idempotency key.
func (s *Store) Enqueue(ctx context.Context, ownerID string, m core.Mutation) (Item, error) {
	if err := m.Validate(); err != nil {
		return Item{}, fmt.Errorf("validate mutation: %w", err)
	}

	raw, err := encodePayload(ownerID, m.Fields)
	if err != nil {
		return Item{}, fmt.Errorf("encode payload: %w", err)
	}

	key := uuid.NewString()
	now := time.Now().UTC()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_queue (kind, idempotency_key, remote_id, payload, enqueued_at)
		VALUES (?, ?, ?, ?, ?)`,
		string(m.Kind), key, m.RemoteID, string(raw), now)
	if err != nil {
		return Item{}, fmt.Errorf("%w: insert: %v", ErrStorage, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Item{}, fmt.Errorf("%w: last insert id: %v", ErrStorage, err)
	}

	slog.InfoContext(ctx, "Mutation enqueued",
		"id", id,
		"kind", m.Kind,
		"idempotency_key", key)

	return Item{
		ID:             id,
		OwnerID:        ownerID,
		Mutation:       m,
		IdempotencyKey: key,
		EnqueuedAt:     now,
	}, nil
}

// ListPending returns all live items in insertion order (ascending id).
// Dead-lettered items are excluded.
func (s *Store) ListPending(ctx context.Context) ([]Item, error) {
	return s.list(ctx, false)
}

// ListDead returns dead-lettered items awaiting manual resolution.
func (s *Store) ListDead(ctx context.Context) ([]Item, error) {
	return s.list(ctx, true)
}

func (s *Store) list(ctx context.Context, dead bool) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, idempotency_key, remote_id, payload, enqueued_at, attempts, last_error
		FROM sync_queue
		WHERE dead = ?
		ORDER BY id ASC`, boolToInt(dead))
	if err != nil {
		return nil, fmt.Errorf("%w: select: %v", ErrStorage, err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			it       Item
			kind     string
			remoteID string
			raw      string
		)
		if err := rows.Scan(&it.ID, &kind, &it.IdempotencyKey, &remoteID, &raw, &it.EnqueuedAt, &it.Attempts, &it.LastError); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrStorage, err)
		}
		ownerID, fields, err := decodePayload([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: decode payload for item %d: %v", ErrStorage, it.ID, err)
		}
		it.OwnerID = ownerID
		it.Mutation = core.Mutation{
			Kind:     core.MutationKind(kind),
			RemoteID: remoteID,
			Fields:   fields,
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate: %v", ErrStorage, err)
	}
	return items, nil
}

// Remove deletes one item by id. Removing an absent id is a no-op, to
// tolerate concurrent drains.
func (s *Store) Remove(ctx context.Context, id int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id); err != nil {
		return fmt.Errorf("%w: delete item %d: %v", ErrStorage, id, err)
	}
	return nil
}

// Count returns the number of live pending items.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue WHERE dead = 0`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrStorage, err)
	}
	return n, nil
}

// IncrementAttempt records a failed delivery attempt. The payload itself is
// untouched.
func (s *Store) IncrementAttempt(ctx context.Context, id int64, reason string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_queue SET attempts = attempts + 1, last_error = ? WHERE id = ?`,
		truncateReason(reason), id)
	if err != nil {
		return fmt.Errorf("%w: increment attempt for item %d: %v", ErrStorage, id, err)
	}
	return nil
}

// MarkDead moves an item to the dead-letter state. It stops appearing in
// ListPending and is skipped by drains until retried manually.
func (s *Store) MarkDead(ctx context.Context, id int64, reason string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_queue SET dead = 1, attempts = attempts + 1, last_error = ? WHERE id = ?`,
		truncateReason(reason), id)
	if err != nil {
		return fmt.Errorf("%w: mark item %d dead: %v", ErrStorage, id, err)
	}

	slog.WarnContext(ctx, "Queue item dead-lettered", "id", id, "reason", reason)
	return nil
}

// RetryDead resurrects all dead-lettered items for the next drain, resetting
// their attempt counts.
func (s *Store) RetryDead(ctx context.Context) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_queue SET dead = 0, attempts = 0, last_error = '' WHERE dead = 1`)
	if err != nil {
		return 0, fmt.Errorf("%w: retry dead items: %v", ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: rows affected: %v", ErrStorage, err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func truncateReason(reason string) string {
	const max = 500
	if len(reason) > max {
		return reason[:max]
	}
	return reason
}
