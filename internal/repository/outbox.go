package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/canopyshop/storefront/internal/outbox"
)

const (
	insertOutboxSQL = `INSERT INTO outbox (kind, payload) VALUES ($1, $2)`

	fetchPendingSQL = `SELECT id, kind, payload, created_at, sent_at
		FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT $1`

	markSentSQL = `UPDATE outbox SET sent_at = now() WHERE id = $1 AND sent_at IS NULL`
)

// insertIntents persists intents inside the caller's transaction so that the
// side-effects commit or roll back together with the domain writes.
func insertIntents(ctx context.Context, tx pgx.Tx, intents []outbox.Intent) error {
	for _, in := range intents {
		if _, err := tx.Exec(ctx, insertOutboxSQL, string(in.Kind), in.Payload); err != nil {
			return fmt.Errorf("inserting outbox intent %q: %w", in.Kind, err)
		}
	}
	return nil
}

var _ outbox.Store = (*OutboxStore)(nil)

// OutboxStore implements outbox.Store backed by PostgreSQL.
type OutboxStore struct {
	pool *pgxpool.Pool
}

// NewOutboxStore returns an OutboxStore that uses the given pool.
func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{pool: pool}
}

// FetchPending returns up to limit unsent records oldest first.
func (s *OutboxStore) FetchPending(ctx context.Context, limit int) ([]outbox.Record, error) {
	rows, err := s.pool.Query(ctx, fetchPendingSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching pending outbox records: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (outbox.Record, error) {
		var (
			rec  outbox.Record
			kind string
		)
		err := row.Scan(&rec.ID, &kind, &rec.Payload, &rec.CreatedAt, &rec.SentAt)
		rec.Kind = outbox.Kind(kind)
		return rec, err
	})
}

// MarkSent stamps the record as dispatched. Already-sent records are left
// untouched, which makes redelivery after a crashed MarkSent harmless.
func (s *OutboxStore) MarkSent(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, markSentSQL, id); err != nil {
		return fmt.Errorf("marking outbox record %d sent: %w", id, err)
	}
	return nil
}
