package product

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/filmledger/filmledger/internal/platform/db"
	"github.com/filmledger/filmledger/internal/shared"
	"github.com/filmledger/filmledger/internal/stock"
)

// Repository persists batches and the price catalog in PostgreSQL.
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
		return errors.New("product repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// List returns all batches, newest first.
func (r *Repository) List(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, film_type, quantity, price_per_kg, COALESCE(process_id, ''), source, created_at
FROM products
ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.FilmType, &p.Quantity, &p.PricePerKg, &p.ProcessID, &p.Source, &p.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// Catalog returns the stored catalog entries.
func (r *Repository) Catalog(ctx context.Context) ([]CatalogProduct, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, film_type, price_per_kg, updated_at FROM catalog_products ORDER BY film_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []CatalogProduct{}
	for rows.Next() {
		var c CatalogProduct
		if err := rows.Scan(&c.Name, &c.FilmType, &c.PricePerKg, &c.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, c)
	}
	return entries, rows.Err()
}

// PriceHistory returns price changes, newest first.
func (r *Repository) PriceHistory(ctx context.Context, limit int) ([]PriceChange, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, film_type, old_value, new_value, changed_at
FROM product_price_history
ORDER BY changed_at DESC, id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	changes := []PriceChange{}
	for rows.Next() {
		var c PriceChange
		if err := rows.Scan(&c.ID, &c.FilmType, &c.OldValue, &c.NewValue, &c.ChangedAt); err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

func (r *txRepository) Stock() stock.TxRepository {
	return stock.NewTxRepository(r.tx)
}

func (r *txRepository) InsertProduct(ctx context.Context, p Product) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO products (id, name, film_type, quantity, price_per_kg, process_id, source, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.Name, p.FilmType, p.Quantity, p.PricePerKg, nullStr(p.ProcessID), p.Source, p.CreatedAt)
	return err
}

func (r *txRepository) GetProductForUpdate(ctx context.Context, id uuid.UUID) (Product, error) {
	var p Product
	err := r.tx.QueryRow(ctx, `SELECT id, name, film_type, quantity, price_per_kg, COALESCE(process_id, ''), source, created_at
FROM products WHERE id=$1 FOR UPDATE`, id).
		Scan(&p.ID, &p.Name, &p.FilmType, &p.Quantity, &p.PricePerKg, &p.ProcessID, &p.Source, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (r *txRepository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	return err
}

func (r *txRepository) GetCatalogForUpdate(ctx context.Context, v stock.Variant) (CatalogProduct, error) {
	var c CatalogProduct
	err := r.tx.QueryRow(ctx, `SELECT name, film_type, price_per_kg, updated_at FROM catalog_products WHERE film_type=$1 FOR UPDATE`, v).
		Scan(&c.Name, &c.FilmType, &c.PricePerKg, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CatalogProduct{}, shared.ErrNotFound
		}
		return CatalogProduct{}, err
	}
	return c, nil
}

func (r *txRepository) UpsertCatalog(ctx context.Context, c CatalogProduct) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO catalog_products (film_type, name, price_per_kg, updated_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (film_type) DO UPDATE SET name=EXCLUDED.name, price_per_kg=EXCLUDED.price_per_kg, updated_at=EXCLUDED.updated_at`,
		c.FilmType, c.Name, c.PricePerKg, c.UpdatedAt)
	return err
}

func (r *txRepository) InsertPriceChange(ctx context.Context, change PriceChange) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO product_price_history (film_type, old_value, new_value, changed_at)
VALUES ($1,$2,$3,$4)`,
		change.FilmType, change.OldValue, change.NewValue, change.ChangedAt)
	return err
}

func nullStr(value string) any {
	if value == "" {
		return nil
	}
	return value
}
