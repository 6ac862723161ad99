package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/filmledger/filmledger/internal/cashledger"
	"github.com/filmledger/filmledger/internal/product"
	"github.com/filmledger/filmledger/internal/shared"
	"github.com/filmledger/filmledger/internal/stock"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context) ([]Sale, error)
}

// TxRepository exposes transactional operations used by service. The stock
// depletion, the batch decrement, the sale row and the cash outbox entry all
// commit or roll back together.
type TxRepository interface {
	Stock() stock.TxRepository
	GetProductForUpdate(ctx context.Context, id uuid.UUID) (product.Product, error)
	GetCatalog(ctx context.Context, v stock.Variant) (product.CatalogProduct, error)
	DecrementProductQuantity(ctx context.Context, id uuid.UUID, qty float64) error
	InsertSale(ctx context.Context, sale Sale) error
	InsertCashOutbox(ctx context.Context, entry cashledger.Entry) error
}

// SnapshotInvalidator drops the read-side stock cache after a mutation.
type SnapshotInvalidator interface {
	InvalidateSnapshot(ctx context.Context)
}

// DispatchEnqueuer kicks the background outbox dispatch after a sale commits.
// Best effort: the cron sweep picks up anything a failed enqueue leaves behind.
type DispatchEnqueuer interface {
	EnqueueDispatch(ctx context.Context) error
}

// Service records sales against finished stock and mirrors them to the
// external cash ledger through the outbox.
type Service struct {
	repo     RepositoryPort
	ledger   SnapshotInvalidator
	dispatch DispatchEnqueuer
	logger   *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, ledger SnapshotInvalidator, dispatch DispatchEnqueuer, logger *slog.Logger) *Service {
	return &Service{repo: repo, ledger: ledger, dispatch: dispatch, logger: logger}
}

// Record persists a sale in one transaction: the finished pool is depleted
// under lock, the batch quantity decremented when a batch was named, and the
// sale plus its pending cash outbox entry inserted. The external ledger is
// only contacted after commit, so its failure never rolls back the sale.
func (s *Service) Record(ctx context.Context, input RecordInput) (Sale, error) {
	if input.Quantity <= 0 {
		return Sale{}, stock.ErrInvalidQuantity
	}
	if input.ProductID == nil && !input.FilmType.Valid() {
		return Sale{}, ErrProductRequired
	}
	if input.UnitPrice != nil && *input.UnitPrice < 0 {
		return Sale{}, ErrInvalidPrice
	}

	now := time.Now().UTC()
	saleDate := input.SaleDate
	if saleDate.IsZero() {
		saleDate = now
	}
	sale := Sale{
		ID:           uuid.New(),
		Quantity:     input.Quantity,
		CustomerName: input.CustomerName,
		SaleDate:     saleDate,
		CreatedAt:    now,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if input.ProductID != nil {
			batch, err := tx.GetProductForUpdate(ctx, *input.ProductID)
			if err != nil {
				return err
			}
			id := batch.ID
			sale.ProductID = &id
			sale.ProductName = batch.Name
			sale.FilmType = batch.FilmType
			if input.UnitPrice != nil {
				sale.UnitPrice = *input.UnitPrice
			} else {
				sale.UnitPrice = batch.PricePerKg
			}
			if batch.Quantity+1e-4 < input.Quantity {
				return &stock.InsufficientStockError{
					Pool:      stock.PoolFinished,
					Variant:   batch.FilmType,
					Available: batch.Quantity,
					Requested: input.Quantity,
				}
			}
		} else {
			sale.FilmType = input.FilmType
			sale.ProductName = product.CatalogNameFor(input.FilmType)
			if input.UnitPrice != nil {
				sale.UnitPrice = *input.UnitPrice
			} else {
				entry, err := tx.GetCatalog(ctx, input.FilmType)
				switch {
				case err == nil:
					sale.UnitPrice = entry.PricePerKg
				case errors.Is(err, shared.ErrNotFound):
					sale.UnitPrice = product.DefaultPriceFor(input.FilmType)
				default:
					return err
				}
			}
		}
		sale.TotalAmount = sale.Quantity * sale.UnitPrice

		_, err := stock.DepleteTx(ctx, tx.Stock(), stock.DepleteInput{
			Pool:     stock.PoolFinished,
			Variant:  sale.FilmType,
			Quantity: sale.Quantity,
			Ref: stock.MovementRef{
				Description: fmt.Sprintf("Sale of %s", sale.ProductName),
				ProductID:   productRef(sale.ProductID),
			},
		}, now)
		if err != nil {
			return err
		}

		if sale.ProductID != nil {
			if err := tx.DecrementProductQuantity(ctx, *sale.ProductID, sale.Quantity); err != nil {
				return err
			}
		}
		if err := tx.InsertSale(ctx, sale); err != nil {
			return err
		}
		return tx.InsertCashOutbox(ctx, cashledger.Entry{
			SaleID:      sale.ID,
			Amount:      sale.TotalAmount,
			Description: fmt.Sprintf("Sale of %.2fkg %s", sale.Quantity, sale.ProductName),
			SaleDate:    sale.SaleDate,
			Status:      cashledger.StatusPending,
			CreatedAt:   now,
		})
	})
	if err != nil {
		return Sale{}, err
	}

	if s.ledger != nil {
		s.ledger.InvalidateSnapshot(ctx)
	}
	if s.dispatch != nil {
		if err := s.dispatch.EnqueueDispatch(ctx); err != nil && s.logger != nil {
			s.logger.Warn("enqueue cash outbox dispatch", slog.Any("error", err))
		}
	}
	if s.logger != nil {
		s.logger.Info("sale recorded",
			slog.String("sale_id", sale.ID.String()),
			slog.String("film_type", string(sale.FilmType)),
			slog.Float64("quantity_kg", sale.Quantity),
			slog.Float64("total_amount", sale.TotalAmount))
	}
	return sale, nil
}

// List returns all sales, newest first.
func (s *Service) List(ctx context.Context) ([]Sale, error) {
	return s.repo.List(ctx)
}

func productRef(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
