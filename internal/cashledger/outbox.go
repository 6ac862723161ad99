package cashledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Status tracks an outbox entry through dispatch.
type Status string

const (
	StatusPending    Status = "pending"
	StatusDispatched Status = "dispatched"
	StatusFailed     Status = "failed"
)

// Entry is one pending cash inflow, written in the same transaction as its
// sale and dispatched to the external ledger afterwards. At-least-once: a
// crash between dispatch and the status update replays the entry.
type Entry struct {
	ID           int64
	SaleID       uuid.UUID
	Amount       float64
	Description  string
	SaleDate     time.Time
	Status       Status
	Attempts     int
	LastError    string
	CreatedAt    time.Time
	DispatchedAt *time.Time
}

// OutboxRepository persists outbox entries in PostgreSQL. Inserts happen in
// the sale's own transaction; this repository serves the dispatch side.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

// NewOutboxRepository constructs OutboxRepository.
func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

// ListPending returns pending entries, oldest first, capped at limit.
func (r *OutboxRepository) ListPending(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, sale_id, amount, description, sale_date, status, attempts, COALESCE(last_error, ''), created_at, dispatched_at
FROM cash_outbox
WHERE status=$1
ORDER BY created_at ASC, id ASC
LIMIT $2`, StatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SaleID, &e.Amount, &e.Description, &e.SaleDate, &e.Status, &e.Attempts, &e.LastError, &e.CreatedAt, &e.DispatchedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkDispatched closes an entry and backfills the sale with the external
// inflow id, in one transaction.
func (r *OutboxRepository) MarkDispatched(ctx context.Context, id int64, saleID uuid.UUID, inflowID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE cash_outbox SET status=$2, dispatched_at=$3, last_error=NULL WHERE id=$1`,
		id, StatusDispatched, now); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE sales SET cash_inflow_id=$2 WHERE id=$1`, saleID, inflowID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// MarkFailed bumps the attempt counter and records the error. Terminal entries
// move to failed and stop being picked up by the sweep.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64, attempts int, lastError string, terminal bool) error {
	status := StatusPending
	if terminal {
		status = StatusFailed
	}
	_, err := r.pool.Exec(ctx, `UPDATE cash_outbox SET status=$2, attempts=$3, last_error=$4 WHERE id=$1`,
		id, status, attempts, lastError)
	return err
}
