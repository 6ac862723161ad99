package process

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/filmledger/filmledger/internal/platform/db"
	"github.com/filmledger/filmledger/internal/stock"
)

// Repository persists cycles in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("process repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// List returns all cycles, newest first.
func (r *Repository) List(ctx context.Context) ([]RecyclingProcess, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, cycle_number, film_type, input_quantity, output_quantity, status, outsourced, COALESCE(outsourcing_partner, ''), start_date, end_date, expected_completion, yield_rate, source, created_at
FROM processes
ORDER BY created_at DESC, cycle_number DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	processes := []RecyclingProcess{}
	for rows.Next() {
		var p RecyclingProcess
		if err := rows.Scan(&p.ID, &p.CycleNumber, &p.FilmType, &p.InputQuantity, &p.OutputQuantity, &p.Status, &p.Outsourced, &p.OutsourcingPartner, &p.StartDate, &p.EndDate, &p.ExpectedCompletion, &p.YieldRate, &p.Source, &p.CreatedAt); err != nil {
			return nil, err
		}
		processes = append(processes, p)
	}
	return processes, rows.Err()
}

func (r *txRepository) Stock() stock.TxRepository {
	return stock.NewTxRepository(r.tx)
}

// NextCycleSeq bumps and returns the per-year counter backing cycle numbers.
// The counter row serialises concurrent starts, keeping numbers unique and
// strictly increasing.
func (r *txRepository) NextCycleSeq(ctx context.Context, year int) (int, error) {
	var seq int
	err := r.tx.QueryRow(ctx, `INSERT INTO process_cycle_counters (year, seq) VALUES ($1, 1)
ON CONFLICT (year) DO UPDATE SET seq = process_cycle_counters.seq + 1
RETURNING seq`, year).Scan(&seq)
	return seq, err
}

func (r *txRepository) InsertProcess(ctx context.Context, p RecyclingProcess) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO processes (id, cycle_number, film_type, input_quantity, output_quantity, status, outsourced, outsourcing_partner, start_date, end_date, expected_completion, yield_rate, source, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		p.ID, p.CycleNumber, p.FilmType, p.InputQuantity, p.OutputQuantity, p.Status, p.Outsourced, nullStr(p.OutsourcingPartner), p.StartDate, p.EndDate, p.ExpectedCompletion, p.YieldRate, p.Source, p.CreatedAt)
	return err
}

func (r *txRepository) GetProcessForUpdate(ctx context.Context, id uuid.UUID) (RecyclingProcess, error) {
	var p RecyclingProcess
	err := r.tx.QueryRow(ctx, `SELECT id, cycle_number, film_type, input_quantity, output_quantity, status, outsourced, COALESCE(outsourcing_partner, ''), start_date, end_date, expected_completion, yield_rate, source, created_at
FROM processes WHERE id=$1 FOR UPDATE`, id).
		Scan(&p.ID, &p.CycleNumber, &p.FilmType, &p.InputQuantity, &p.OutputQuantity, &p.Status, &p.Outsourced, &p.OutsourcingPartner, &p.StartDate, &p.EndDate, &p.ExpectedCompletion, &p.YieldRate, &p.Source, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RecyclingProcess{}, ErrProcessNotFound
		}
		return RecyclingProcess{}, err
	}
	return p, nil
}

func (r *txRepository) MarkCompleted(ctx context.Context, id uuid.UUID, outputQuantity float64, endDate time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE processes SET status=$2, output_quantity=$3, end_date=$4 WHERE id=$1`,
		id, StatusCompleted, outputQuantity, endDate)
	return err
}

func nullStr(value string) any {
	if value == "" {
		return nil
	}
	return value
}
