package product

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/filmledger/filmledger/internal/shared"
	"github.com/filmledger/filmledger/internal/stock"
)

type memoryStockTx struct {
	pools map[stock.Pool]stock.Levels
}

func (m *memoryStockTx) GetPoolForUpdate(ctx context.Context, pool stock.Pool) (stock.Levels, error) {
	levels, ok := m.pools[pool]
	if !ok {
		return stock.Levels{}, shared.ErrNotFound
	}
	return levels, nil
}

func (m *memoryStockTx) UpsertPool(ctx context.Context, pool stock.Pool, levels stock.Levels) error {
	m.pools[pool] = levels
	return nil
}

func (m *memoryStockTx) InsertHistory(ctx context.Context, entry stock.HistoryEntry) error {
	return nil
}

func (m *memoryStockTx) InsertMovement(ctx context.Context, mv stock.Movement) (int64, error) {
	return 1, nil
}

type memoryRepo struct {
	stockTx  *memoryStockTx
	products map[uuid.UUID]Product
	catalog  map[stock.Variant]CatalogProduct
	changes  []PriceChange
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		stockTx:  &memoryStockTx{pools: make(map[stock.Pool]stock.Levels)},
		products: make(map[uuid.UUID]Product),
		catalog:  make(map[stock.Variant]CatalogProduct),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) List(ctx context.Context) ([]Product, error) {
	result := make([]Product, 0, len(r.products))
	for _, p := range r.products {
		result = append(result, p)
	}
	return result, nil
}

func (r *memoryRepo) Catalog(ctx context.Context) ([]CatalogProduct, error) {
	result := make([]CatalogProduct, 0, len(r.catalog))
	for _, c := range r.catalog {
		result = append(result, c)
	}
	return result, nil
}

func (r *memoryRepo) PriceHistory(ctx context.Context, limit int) ([]PriceChange, error) {
	return r.changes, nil
}

func (tx *memoryTx) Stock() stock.TxRepository {
	return tx.repo.stockTx
}

func (tx *memoryTx) InsertProduct(ctx context.Context, p Product) error {
	tx.repo.products[p.ID] = p
	return nil
}

func (tx *memoryTx) GetProductForUpdate(ctx context.Context, id uuid.UUID) (Product, error) {
	p, ok := tx.repo.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (tx *memoryTx) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	delete(tx.repo.products, id)
	return nil
}

func (tx *memoryTx) GetCatalogForUpdate(ctx context.Context, v stock.Variant) (CatalogProduct, error) {
	c, ok := tx.repo.catalog[v]
	if !ok {
		return CatalogProduct{}, shared.ErrNotFound
	}
	return c, nil
}

func (tx *memoryTx) UpsertCatalog(ctx context.Context, c CatalogProduct) error {
	tx.repo.catalog[c.FilmType] = c
	return nil
}

func (tx *memoryTx) InsertPriceChange(ctx context.Context, change PriceChange) error {
	tx.repo.changes = append(tx.repo.changes, change)
	return nil
}

func TestCreateMovesProcessingIntoFinished(t *testing.T) {
	repo := newMemoryRepo()
	repo.stockTx.pools[stock.PoolInProcess] = stock.Levels{Virgin: 40}
	svc := NewService(repo, nil, nil, nil)

	p, err := svc.Create(context.Background(), CreateInput{
		FilmType: stock.VariantVirgin,
		Quantity: 40,
	})
	require.NoError(t, err)
	require.Equal(t, "Virgin Films", p.Name)
	require.InDelta(t, DefaultPriceVirgin, p.PricePerKg, 0.0001)
	require.InDelta(t, 0, repo.stockTx.pools[stock.PoolInProcess].Virgin, 0.0001)
	require.InDelta(t, 40, repo.stockTx.pools[stock.PoolFinished].Virgin, 0.0001)
	require.Len(t, repo.products, 1)
}

func TestCreateFromOutsourcingPool(t *testing.T) {
	repo := newMemoryRepo()
	repo.stockTx.pools[stock.PoolOutsourcing] = stock.Levels{Colored: 25}
	svc := NewService(repo, nil, nil, nil)

	p, err := svc.Create(context.Background(), CreateInput{
		FilmType: stock.VariantColored,
		Quantity: 20,
		Source:   stock.PoolOutsourcing,
	})
	require.NoError(t, err)
	require.Equal(t, "Colored Films", p.Name)
	require.InDelta(t, DefaultPriceColored, p.PricePerKg, 0.0001)
	require.InDelta(t, 5, repo.stockTx.pools[stock.PoolOutsourcing].Colored, 0.0001)
	require.InDelta(t, 20, repo.stockTx.pools[stock.PoolFinished].Colored, 0.0001)
}

func TestCreateUsesCatalogPrice(t *testing.T) {
	repo := newMemoryRepo()
	repo.stockTx.pools[stock.PoolInProcess] = stock.Levels{Virgin: 10}
	repo.catalog[stock.VariantVirgin] = CatalogProduct{
		Name: "Virgin Film", FilmType: stock.VariantVirgin, PricePerKg: 1800,
	}
	svc := NewService(repo, nil, nil, nil)

	p, err := svc.Create(context.Background(), CreateInput{FilmType: stock.VariantVirgin, Quantity: 10})
	require.NoError(t, err)
	require.InDelta(t, 1800, p.PricePerKg, 0.0001)
}

func TestCreateExplicitPriceOverridesCatalog(t *testing.T) {
	repo := newMemoryRepo()
	repo.stockTx.pools[stock.PoolInProcess] = stock.Levels{Virgin: 10}
	svc := NewService(repo, nil, nil, nil)

	price := 1650.0
	p, err := svc.Create(context.Background(), CreateInput{
		FilmType:   stock.VariantVirgin,
		Quantity:   10,
		PricePerKg: &price,
	})
	require.NoError(t, err)
	require.InDelta(t, 1650, p.PricePerKg, 0.0001)
}

func TestCreateInsufficientProcessingStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.stockTx.pools[stock.PoolInProcess] = stock.Levels{Virgin: 5}
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.Create(context.Background(), CreateInput{FilmType: stock.VariantVirgin, Quantity: 10})
	require.ErrorIs(t, err, stock.ErrInsufficientStock)
	require.Empty(t, repo.products)
}

func TestCreateRejectsBadSource(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.Create(context.Background(), CreateInput{
		FilmType: stock.VariantVirgin,
		Quantity: 10,
		Source:   stock.PoolRawMaterial,
	})
	require.ErrorIs(t, err, ErrInvalidSource)
}

func TestSetPriceRecordsOldValue(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	entry, err := svc.SetPrice(ctx, stock.VariantColored, 1300)
	require.NoError(t, err)
	require.Equal(t, "Colored Film", entry.Name)
	require.InDelta(t, 1300, entry.PricePerKg, 0.0001)

	_, err = svc.SetPrice(ctx, stock.VariantColored, 1350)
	require.NoError(t, err)

	require.Len(t, repo.changes, 2)
	require.InDelta(t, DefaultPriceColored, repo.changes[0].OldValue, 0.0001)
	require.InDelta(t, 1300, repo.changes[0].NewValue, 0.0001)
	require.InDelta(t, 1300, repo.changes[1].OldValue, 0.0001)
	require.InDelta(t, 1350, repo.changes[1].NewValue, 0.0001)
}

func TestSetPriceRejectsNegative(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil)
	_, err := svc.SetPrice(context.Background(), stock.VariantVirgin, -1)
	require.ErrorIs(t, err, ErrInvalidPrice)
}

func TestSetPriceAllowsZero(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)

	entry, err := svc.SetPrice(context.Background(), stock.VariantVirgin, 0)
	require.NoError(t, err)
	require.InDelta(t, 0, entry.PricePerKg, 0.0001)

	require.Len(t, repo.changes, 1)
	require.InDelta(t, DefaultPriceVirgin, repo.changes[0].OldValue, 0.0001)
	require.InDelta(t, 0, repo.changes[0].NewValue, 0.0001)
}

func TestDeleteUnknownProduct(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil)
	err := svc.Delete(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestCatalogFillsDefaults(t *testing.T) {
	repo := newMemoryRepo()
	repo.catalog[stock.VariantVirgin] = CatalogProduct{
		Name: "Virgin Film", FilmType: stock.VariantVirgin, PricePerKg: 1700, UpdatedAt: time.Now(),
	}
	svc := NewService(repo, nil, nil, nil)

	entries, err := svc.Catalog(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byVariant := map[stock.Variant]CatalogProduct{}
	for _, e := range entries {
		byVariant[e.FilmType] = e
	}
	require.InDelta(t, 1700, byVariant[stock.VariantVirgin].PricePerKg, 0.0001)
	require.InDelta(t, DefaultPriceColored, byVariant[stock.VariantColored].PricePerKg, 0.0001)
}
