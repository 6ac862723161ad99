package product

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/filmledger/filmledger/internal/shared"
	"github.com/filmledger/filmledger/internal/stock"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context) ([]Product, error)
	Catalog(ctx context.Context) ([]CatalogProduct, error)
	PriceHistory(ctx context.Context, limit int) ([]PriceChange, error)
}

// TxRepository exposes transactional operations used by service. Stock writes
// share the transaction so a batch creation is atomic with its pool transfer.
type TxRepository interface {
	Stock() stock.TxRepository
	InsertProduct(ctx context.Context, p Product) error
	GetProductForUpdate(ctx context.Context, id uuid.UUID) (Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	GetCatalogForUpdate(ctx context.Context, v stock.Variant) (CatalogProduct, error)
	UpsertCatalog(ctx context.Context, c CatalogProduct) error
	InsertPriceChange(ctx context.Context, change PriceChange) error
}

// SnapshotInvalidator drops the read-side stock cache after a mutation.
type SnapshotInvalidator interface {
	InvalidateSnapshot(ctx context.Context)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages finished batches and the price catalog.
type Service struct {
	repo   RepositoryPort
	ledger SnapshotInvalidator
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, ledger SnapshotInvalidator, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, ledger: ledger, audit: audit, logger: logger}
}

// Create moves quantity from a processing pool into finished goods and records
// the batch, in one transaction. When no price is given the catalog price for
// the variant applies.
func (s *Service) Create(ctx context.Context, input CreateInput) (Product, error) {
	if input.Quantity <= 0 {
		return Product{}, stock.ErrInvalidQuantity
	}
	if !input.FilmType.Valid() {
		return Product{}, stock.ErrUnknownVariant
	}
	source := input.Source
	if source == "" {
		source = stock.PoolInProcess
	}
	if source != stock.PoolInProcess && source != stock.PoolOutsourcing {
		return Product{}, ErrInvalidSource
	}
	if input.PricePerKg != nil && *input.PricePerKg < 0 {
		return Product{}, ErrInvalidPrice
	}

	now := time.Now().UTC()
	p := Product{
		ID:        uuid.New(),
		Name:      BatchNameFor(input.FilmType),
		FilmType:  input.FilmType,
		Quantity:  input.Quantity,
		ProcessID: input.ProcessID,
		Source:    source,
		CreatedAt: now,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if input.PricePerKg != nil {
			p.PricePerKg = *input.PricePerKg
		} else {
			price, err := catalogPrice(ctx, tx, input.FilmType)
			if err != nil {
				return err
			}
			p.PricePerKg = price
		}

		_, err := stock.MoveTx(ctx, tx.Stock(), stock.MoveInput{
			From:     source,
			To:       stock.PoolFinished,
			Variant:  input.FilmType,
			Quantity: input.Quantity,
			Ref: stock.MovementRef{
				Description: fmt.Sprintf("%s batch created", p.Name),
				ProcessID:   input.ProcessID,
				ProductID:   p.ID.String(),
			},
		}, now)
		if err != nil {
			return err
		}
		return tx.InsertProduct(ctx, p)
	})
	if err != nil {
		return Product{}, err
	}

	if s.ledger != nil {
		s.ledger.InvalidateSnapshot(ctx)
	}
	if s.logger != nil {
		s.logger.Info("batch created",
			slog.String("product_id", p.ID.String()),
			slog.String("film_type", string(p.FilmType)),
			slog.Float64("quantity_kg", p.Quantity),
			slog.Float64("price_per_kg", p.PricePerKg))
	}
	return p, nil
}

// SetPrice updates the catalog price for a variant and appends a price change
// record carrying the previous value. Zero is a valid price; only negative
// values are refused.
func (s *Service) SetPrice(ctx context.Context, v stock.Variant, price float64) (CatalogProduct, error) {
	if !v.Valid() {
		return CatalogProduct{}, stock.ErrUnknownVariant
	}
	if price < 0 {
		return CatalogProduct{}, ErrInvalidPrice
	}

	now := time.Now().UTC()
	entry := CatalogProduct{
		Name:       CatalogNameFor(v),
		FilmType:   v,
		PricePerKg: price,
		UpdatedAt:  now,
	}
	var old float64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetCatalogForUpdate(ctx, v)
		switch {
		case err == nil:
			old = current.PricePerKg
		case errors.Is(err, shared.ErrNotFound):
			old = DefaultPriceFor(v)
		default:
			return err
		}
		if err := tx.UpsertCatalog(ctx, entry); err != nil {
			return err
		}
		return tx.InsertPriceChange(ctx, PriceChange{
			FilmType:  v,
			OldValue:  old,
			NewValue:  price,
			ChangedAt: now,
		})
	})
	if err != nil {
		return CatalogProduct{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "product:set_price",
			Entity:   "catalog_product",
			EntityID: string(v),
			Meta: map[string]any{
				"old_value": old,
				"new_value": price,
			},
		})
	}
	return entry, nil
}

// Delete removes a batch record. Admin operation; the pools are untouched, any
// correction goes through a stock adjustment.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetProductForUpdate(ctx, id); err != nil {
			return err
		}
		return tx.DeleteProduct(ctx, id)
	})
	if err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "product:delete",
			Entity:   "product",
			EntityID: id.String(),
		})
	}
	return nil
}

// catalogPrice resolves the current unit price for a variant, falling back to
// the default when the catalog has no entry yet.
func catalogPrice(ctx context.Context, tx TxRepository, v stock.Variant) (float64, error) {
	current, err := tx.GetCatalogForUpdate(ctx, v)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return DefaultPriceFor(v), nil
		}
		return 0, err
	}
	return current.PricePerKg, nil
}

// PriceFor resolves the current unit price for a variant.
func (s *Service) PriceFor(ctx context.Context, v stock.Variant) (float64, error) {
	if !v.Valid() {
		return 0, stock.ErrUnknownVariant
	}
	entries, err := s.repo.Catalog(ctx)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.FilmType == v {
			return e.PricePerKg, nil
		}
	}
	return DefaultPriceFor(v), nil
}

// List returns all batches, newest first.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.repo.List(ctx)
}

// Catalog returns catalog entries for both variants, filling defaults for
// variants never priced explicitly.
func (s *Service) Catalog(ctx context.Context) ([]CatalogProduct, error) {
	entries, err := s.repo.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[stock.Variant]bool{}
	for _, e := range entries {
		seen[e.FilmType] = true
	}
	for _, v := range []stock.Variant{stock.VariantVirgin, stock.VariantColored} {
		if !seen[v] {
			entries = append(entries, CatalogProduct{
				Name:       CatalogNameFor(v),
				FilmType:   v,
				PricePerKg: DefaultPriceFor(v),
			})
		}
	}
	return entries, nil
}

// PriceHistory returns catalog price changes, newest first.
func (s *Service) PriceHistory(ctx context.Context, limit int) ([]PriceChange, error) {
	return s.repo.PriceHistory(ctx, limit)
}
