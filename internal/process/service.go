package process

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/filmledger/filmledger/internal/stock"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context) ([]RecyclingProcess, error)
}

// TxRepository exposes transactional operations used by service. The stock
// ledger writes share the same transaction so a cycle start is atomic with
// its raw-material deduction.
type TxRepository interface {
	Stock() stock.TxRepository
	NextCycleSeq(ctx context.Context, year int) (int, error)
	InsertProcess(ctx context.Context, p RecyclingProcess) error
	GetProcessForUpdate(ctx context.Context, id uuid.UUID) (RecyclingProcess, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, outputQuantity float64, endDate time.Time) error
}

// SnapshotInvalidator drops the read-side stock cache after a mutation.
type SnapshotInvalidator interface {
	InvalidateSnapshot(ctx context.Context)
}

// Service coordinates recycling and outsourcing cycles.
type Service struct {
	repo   RepositoryPort
	ledger SnapshotInvalidator
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, ledger SnapshotInvalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, ledger: ledger, logger: logger}
}

// Start verifies and deducts raw material, allocates the next cycle number and
// persists the cycle with status processing, all in one transaction.
func (s *Service) Start(ctx context.Context, input StartInput) (RecyclingProcess, error) {
	if input.InputQuantity <= 0 {
		return RecyclingProcess{}, stock.ErrInvalidQuantity
	}
	if !input.FilmType.Valid() {
		return RecyclingProcess{}, stock.ErrUnknownVariant
	}
	if input.Outsourced && input.Partner == "" {
		return RecyclingProcess{}, ErrPartnerRequired
	}

	startDate := input.StartDate
	if startDate.IsZero() {
		startDate = time.Now().UTC()
	}
	destination := stock.PoolInProcess
	if input.Outsourced {
		destination = stock.PoolOutsourcing
	}

	p := RecyclingProcess{
		ID:                 uuid.New(),
		FilmType:           input.FilmType,
		InputQuantity:      input.InputQuantity,
		Status:             StatusProcessing,
		Outsourced:         input.Outsourced,
		OutsourcingPartner: input.Partner,
		StartDate:          startDate,
		ExpectedCompletion: startDate.AddDate(0, 0, input.ExpectedDays),
		YieldRate:          YieldRateFor(input.FilmType),
		Source:             string(stock.PoolRawMaterial),
		CreatedAt:          time.Now().UTC(),
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		seq, err := tx.NextCycleSeq(ctx, startDate.Year())
		if err != nil {
			return err
		}
		p.CycleNumber = fmt.Sprintf("RC-%d-%03d", startDate.Year(), seq)

		_, err = stock.MoveTx(ctx, tx.Stock(), stock.MoveInput{
			From:     stock.PoolRawMaterial,
			To:       destination,
			Variant:  input.FilmType,
			Quantity: input.InputQuantity,
			Ref: stock.MovementRef{
				Description: fmt.Sprintf("Cycle %s started", p.CycleNumber),
				ProcessID:   p.ID.String(),
			},
		}, time.Now().UTC())
		if err != nil {
			return err
		}

		return tx.InsertProcess(ctx, p)
	})
	if err != nil {
		return RecyclingProcess{}, err
	}

	if s.ledger != nil {
		s.ledger.InvalidateSnapshot(ctx)
	}
	if s.logger != nil {
		s.logger.Info("cycle started",
			slog.String("cycle", p.CycleNumber),
			slog.String("film_type", string(p.FilmType)),
			slog.Float64("input_kg", p.InputQuantity),
			slog.Bool("outsourced", p.Outsourced))
	}
	return p, nil
}

// Complete moves a cycle from processing to completed, stamping the output
// quantity and end date. Stock pools are untouched: finished goods only enter
// the ledger through product creation.
func (s *Service) Complete(ctx context.Context, input CompleteInput) (RecyclingProcess, error) {
	if input.OutputQuantity <= 0 {
		return RecyclingProcess{}, stock.ErrInvalidQuantity
	}
	endDate := input.EndDate
	if endDate.IsZero() {
		endDate = time.Now().UTC()
	}

	var p RecyclingProcess
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		p, err = tx.GetProcessForUpdate(ctx, input.ID)
		if err != nil {
			return err
		}
		if p.Status != StatusProcessing {
			return ErrNotProcessing
		}
		if err := tx.MarkCompleted(ctx, input.ID, input.OutputQuantity, endDate); err != nil {
			return err
		}
		p.Status = StatusCompleted
		p.OutputQuantity = &input.OutputQuantity
		p.EndDate = &endDate
		return nil
	})
	if err != nil {
		return RecyclingProcess{}, err
	}
	return p, nil
}

// List returns all cycles, newest first.
func (s *Service) List(ctx context.Context) ([]RecyclingProcess, error) {
	return s.repo.List(ctx)
}
