package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/filmledger/filmledger/internal/platform/db"
	"github.com/filmledger/filmledger/internal/shared"
)

// Repository persists the stock ledger in PostgreSQL.
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

// NewTxRepository binds ledger writes to an externally managed transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// Snapshot reads current levels for every pool. Missing rows read as zero.
func (r *Repository) Snapshot(ctx context.Context) (Snapshot, error) {
	if r == nil {
		return nil, errors.New("stock repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT pool, virgin, colored FROM stock_pools`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snap := Snapshot{}
	for _, p := range Pools {
		snap[p] = Levels{}
	}
	for rows.Next() {
		var pool Pool
		var levels Levels
		if err := rows.Scan(&pool, &levels.Virgin, &levels.Colored); err != nil {
			return nil, err
		}
		snap[pool] = levels
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snap, nil
}

// History lists a pool's history entries, newest first.
func (r *Repository) History(ctx context.Context, pool Pool, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, pool, virgin, colored, added_virgin, added_colored, kind, recorded_at
FROM stock_history
WHERE pool=$1
ORDER BY recorded_at DESC, id DESC
LIMIT $2`, pool, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []HistoryEntry{}
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.Pool, &e.Virgin, &e.Colored, &e.AddedVirgin, &e.AddedColored, &e.Kind, &e.RecordedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Movements lists the movement journal, newest first.
func (r *Repository) Movements(ctx context.Context, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, kind, quantity, description, film_type, COALESCE(from_section, ''), COALESCE(to_section, ''), COALESCE(process_id, ''), COALESCE(product_id, ''), occurred_at
FROM stock_movements
ORDER BY occurred_at DESC, id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.Kind, &m.Quantity, &m.Description, &m.FilmType, &m.FromSection, &m.ToSection, &m.ProcessID, &m.ProductID, &m.OccurredAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (r *txRepository) GetPoolForUpdate(ctx context.Context, pool Pool) (Levels, error) {
	var levels Levels
	err := r.tx.QueryRow(ctx, `SELECT virgin, colored FROM stock_pools WHERE pool=$1 FOR UPDATE`, pool).
		Scan(&levels.Virgin, &levels.Colored)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Levels{}, shared.ErrNotFound
		}
		return Levels{}, err
	}
	return levels, nil
}

func (r *txRepository) UpsertPool(ctx context.Context, pool Pool, levels Levels) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_pools (pool, virgin, colored, updated_at)
VALUES ($1,$2,$3,NOW())
ON CONFLICT (pool) DO UPDATE SET virgin=EXCLUDED.virgin, colored=EXCLUDED.colored, updated_at=NOW()`, pool, levels.Virgin, levels.Colored)
	return err
}

func (r *txRepository) InsertHistory(ctx context.Context, entry HistoryEntry) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_history (pool, virgin, colored, added_virgin, added_colored, kind, recorded_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, entry.Pool, entry.Virgin, entry.Colored, entry.AddedVirgin, entry.AddedColored, entry.Kind, entry.RecordedAt)
	return err
}

func (r *txRepository) InsertMovement(ctx context.Context, mv Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (kind, quantity, description, film_type, from_section, to_section, process_id, product_id, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		mv.Kind, mv.Quantity, mv.Description, mv.FilmType, nullStr(string(mv.FromSection)), nullStr(string(mv.ToSection)), nullStr(mv.ProcessID), nullStr(mv.ProductID), mv.OccurredAt).Scan(&id)
	return id, err
}

func nullStr(value string) any {
	if value == "" {
		return nil
	}
	return value
}
