package sales

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/filmledger/filmledger/internal/cashledger"
	"github.com/filmledger/filmledger/internal/platform/db"
	"github.com/filmledger/filmledger/internal/product"
	"github.com/filmledger/filmledger/internal/shared"
	"github.com/filmledger/filmledger/internal/stock"
)

// Repository persists sales in PostgreSQL.
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
		return errors.New("sales repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// List returns all sales, newest first.
func (r *Repository) List(ctx context.Context) ([]Sale, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, product_name, film_type, quantity, unit_price, total_amount, COALESCE(customer_name, ''), sale_date, COALESCE(cash_inflow_id, ''), created_at
FROM sales
ORDER BY sale_date DESC, created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := []Sale{}
	for rows.Next() {
		var s Sale
		if err := rows.Scan(&s.ID, &s.ProductID, &s.ProductName, &s.FilmType, &s.Quantity, &s.UnitPrice, &s.TotalAmount, &s.CustomerName, &s.SaleDate, &s.CashInflowID, &s.CreatedAt); err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

func (r *txRepository) Stock() stock.TxRepository {
	return stock.NewTxRepository(r.tx)
}

func (r *txRepository) GetProductForUpdate(ctx context.Context, id uuid.UUID) (product.Product, error) {
	var p product.Product
	err := r.tx.QueryRow(ctx, `SELECT id, name, film_type, quantity, price_per_kg, COALESCE(process_id, ''), source, created_at
FROM products WHERE id=$1 FOR UPDATE`, id).
		Scan(&p.ID, &p.Name, &p.FilmType, &p.Quantity, &p.PricePerKg, &p.ProcessID, &p.Source, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return product.Product{}, product.ErrProductNotFound
		}
		return product.Product{}, err
	}
	return p, nil
}

func (r *txRepository) GetCatalog(ctx context.Context, v stock.Variant) (product.CatalogProduct, error) {
	var c product.CatalogProduct
	err := r.tx.QueryRow(ctx, `SELECT name, film_type, price_per_kg, updated_at FROM catalog_products WHERE film_type=$1`, v).
		Scan(&c.Name, &c.FilmType, &c.PricePerKg, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return product.CatalogProduct{}, shared.ErrNotFound
		}
		return product.CatalogProduct{}, err
	}
	return c, nil
}

func (r *txRepository) DecrementProductQuantity(ctx context.Context, id uuid.UUID, qty float64) error {
	_, err := r.tx.Exec(ctx, `UPDATE products SET quantity = GREATEST(quantity - $2, 0) WHERE id=$1`, id, qty)
	return err
}

func (r *txRepository) InsertSale(ctx context.Context, sale Sale) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO sales (id, product_id, product_name, film_type, quantity, unit_price, total_amount, customer_name, sale_date, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		sale.ID, sale.ProductID, sale.ProductName, sale.FilmType, sale.Quantity, sale.UnitPrice, sale.TotalAmount, nullStr(sale.CustomerName), sale.SaleDate, sale.CreatedAt)
	return err
}

func (r *txRepository) InsertCashOutbox(ctx context.Context, entry cashledger.Entry) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO cash_outbox (sale_id, amount, description, sale_date, status, attempts, created_at)
VALUES ($1,$2,$3,$4,$5,0,$6)`,
		entry.SaleID, entry.Amount, entry.Description, entry.SaleDate, entry.Status, entry.CreatedAt)
	return err
}

func nullStr(value string) any {
	if value == "" {
		return nil
	}
	return value
}
