package stock

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/filmledger/filmledger/internal/shared"
)

// Tolerance applied to float comparisons on kilogram quantities.
const qtyEpsilon = 1e-4

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Snapshot(ctx context.Context) (Snapshot, error)
	History(ctx context.Context, pool Pool, limit int) ([]HistoryEntry, error)
	Movements(ctx context.Context, limit int) ([]Movement, error)
}

// TxRepository exposes the ledger writes available inside one transaction.
// Cross-module flows obtain an instance bound to their own transaction via
// NewTxRepository so the pool rows are only ever mutated through this package.
type TxRepository interface {
	GetPoolForUpdate(ctx context.Context, pool Pool) (Levels, error)
	UpsertPool(ctx context.Context, pool Pool, levels Levels) error
	InsertHistory(ctx context.Context, entry HistoryEntry) error
	InsertMovement(ctx context.Context, mv Movement) (int64, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates ledger operations over the four stock pools.
type Service struct {
	repo      RepositoryPort
	snapshots *SnapshotCache
	audit     AuditPort
	logger    *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, snapshots *SnapshotCache, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, snapshots: snapshots, audit: audit, logger: logger}
}

// MoveInput describes a pool-to-pool transfer of one variant.
type MoveInput struct {
	From     Pool
	To       Pool
	Variant  Variant
	Quantity float64
	Ref      MovementRef
}

// DepleteInput describes an outbound removal from one pool.
type DepleteInput struct {
	Pool     Pool
	Variant  Variant
	Quantity float64
	Ref      MovementRef
}

// AdjustInput describes an administrative stock addition.
type AdjustInput struct {
	Pool     Pool
	Variant  Variant
	Added    float64
	Ref      MovementRef
}

// Snapshot returns current levels for all pools, zeros for uninitialised ones.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	if s.snapshots == nil {
		return s.repo.Snapshot(ctx)
	}
	return s.snapshots.Fetch(ctx, s.repo.Snapshot)
}

// History lists a pool's history entries, newest first.
func (s *Service) History(ctx context.Context, pool Pool, limit int) ([]HistoryEntry, error) {
	if !pool.Valid() {
		return nil, ErrUnknownPool
	}
	return s.repo.History(ctx, pool, limit)
}

// Movements lists the movement journal, newest first.
func (s *Service) Movements(ctx context.Context, limit int) ([]Movement, error) {
	return s.repo.Movements(ctx, limit)
}

// Move transfers quantity between two pools in its own transaction.
func (s *Service) Move(ctx context.Context, input MoveInput) (Movement, error) {
	var mv Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		mv, err = MoveTx(ctx, tx, input, time.Now().UTC())
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	s.InvalidateSnapshot(ctx)
	return mv, nil
}

// Adjust adds quantity to a pool. Admin operation; the delta is an amount
// added, so the result cannot go negative by construction.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (HistoryEntry, error) {
	if !input.Pool.Valid() {
		return HistoryEntry{}, ErrUnknownPool
	}
	if !input.Variant.Valid() {
		return HistoryEntry{}, ErrUnknownVariant
	}
	if input.Added < 0 {
		return HistoryEntry{}, ErrInvalidQuantity
	}

	now := time.Now().UTC()
	var entry HistoryEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		levels, err := getPoolOrZero(ctx, tx, input.Pool)
		if err != nil {
			return err
		}
		levels = levels.Add(input.Variant, input.Added)
		if err := tx.UpsertPool(ctx, input.Pool, levels); err != nil {
			return err
		}
		entry = HistoryEntry{
			Pool:         input.Pool,
			Virgin:       levels.Virgin,
			Colored:      levels.Colored,
			AddedVirgin:  addedFor(input.Variant, VariantVirgin, input.Added),
			AddedColored: addedFor(input.Variant, VariantColored, input.Added),
			Kind:         HistoryUpdate,
			RecordedAt:   now,
		}
		if err := tx.InsertHistory(ctx, entry); err != nil {
			return err
		}
		desc := input.Ref.Description
		if desc == "" {
			desc = "Stock added"
		}
		_, err = tx.InsertMovement(ctx, Movement{
			Kind:        MovementInput,
			Quantity:    input.Added,
			Description: desc,
			FilmType:    input.Variant,
			ToSection:   input.Pool,
			OccurredAt:  now,
		})
		return err
	})
	if err != nil {
		return HistoryEntry{}, err
	}
	s.InvalidateSnapshot(ctx)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "stock:adjust",
			Entity:   "stock_pool",
			EntityID: string(input.Pool),
			Meta: map[string]any{
				"film_type": input.Variant,
				"added":     input.Added,
			},
		})
	}
	return entry, nil
}

// InvalidateSnapshot drops the cached snapshot after a successful mutation.
// The cache is never the system of record, so failures are only logged.
func (s *Service) InvalidateSnapshot(ctx context.Context) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Invalidate(ctx); err != nil && s.logger != nil {
		s.logger.Warn("invalidate stock snapshot", slog.Any("error", err))
	}
}

// MoveTx applies a transfer inside the caller's transaction: the source pool is
// locked and re-validated against the persisted level immediately before the
// write, both pools are updated, a decrement and an increment history entry are
// appended, and one transfer movement record is written.
func MoveTx(ctx context.Context, tx TxRepository, input MoveInput, at time.Time) (Movement, error) {
	if !input.From.Valid() || !input.To.Valid() {
		return Movement{}, ErrUnknownPool
	}
	if input.From == input.To {
		return Movement{}, ErrSamePool
	}
	if !input.Variant.Valid() {
		return Movement{}, ErrUnknownVariant
	}
	if input.Quantity <= 0 {
		return Movement{}, ErrInvalidQuantity
	}

	if err := debitPool(ctx, tx, input.From, input.Variant, input.Quantity, at); err != nil {
		return Movement{}, err
	}
	if err := creditPool(ctx, tx, input.To, input.Variant, input.Quantity, at); err != nil {
		return Movement{}, err
	}

	mv := Movement{
		Kind:        MovementTransfer,
		Quantity:    input.Quantity,
		Description: input.Ref.Description,
		FilmType:    input.Variant,
		FromSection: input.From,
		ToSection:   input.To,
		ProcessID:   input.Ref.ProcessID,
		ProductID:   input.Ref.ProductID,
		OccurredAt:  at,
	}
	id, err := tx.InsertMovement(ctx, mv)
	if err != nil {
		return Movement{}, err
	}
	mv.ID = id
	return mv, nil
}

// DepleteTx removes quantity from a pool inside the caller's transaction and
// writes an output movement record. Used by the sales ledger.
func DepleteTx(ctx context.Context, tx TxRepository, input DepleteInput, at time.Time) (Movement, error) {
	if !input.Pool.Valid() {
		return Movement{}, ErrUnknownPool
	}
	if !input.Variant.Valid() {
		return Movement{}, ErrUnknownVariant
	}
	if input.Quantity <= 0 {
		return Movement{}, ErrInvalidQuantity
	}

	if err := debitPool(ctx, tx, input.Pool, input.Variant, input.Quantity, at); err != nil {
		return Movement{}, err
	}

	mv := Movement{
		Kind:        MovementOutput,
		Quantity:    input.Quantity,
		Description: input.Ref.Description,
		FilmType:    input.Variant,
		FromSection: input.Pool,
		ProcessID:   input.Ref.ProcessID,
		ProductID:   input.Ref.ProductID,
		OccurredAt:  at,
	}
	id, err := tx.InsertMovement(ctx, mv)
	if err != nil {
		return Movement{}, err
	}
	mv.ID = id
	return mv, nil
}

func debitPool(ctx context.Context, tx TxRepository, pool Pool, variant Variant, qty float64, at time.Time) error {
	levels, err := getPoolOrZero(ctx, tx, pool)
	if err != nil {
		return err
	}
	available := levels.Get(variant)
	if available+qtyEpsilon < qty {
		return &InsufficientStockError{Pool: pool, Variant: variant, Available: available, Requested: qty}
	}
	levels = levels.Add(variant, -qty)
	if levels.Get(variant) < 0 {
		levels = levels.Add(variant, -levels.Get(variant))
	}
	if err := tx.UpsertPool(ctx, pool, levels); err != nil {
		return err
	}
	return tx.InsertHistory(ctx, HistoryEntry{
		Pool:         pool,
		Virgin:       levels.Virgin,
		Colored:      levels.Colored,
		AddedVirgin:  addedFor(variant, VariantVirgin, -qty),
		AddedColored: addedFor(variant, VariantColored, -qty),
		Kind:         HistoryDecrement,
		RecordedAt:   at,
	})
}

func creditPool(ctx context.Context, tx TxRepository, pool Pool, variant Variant, qty float64, at time.Time) error {
	levels, err := getPoolOrZero(ctx, tx, pool)
	if err != nil {
		return err
	}
	levels = levels.Add(variant, qty)
	if err := tx.UpsertPool(ctx, pool, levels); err != nil {
		return err
	}
	return tx.InsertHistory(ctx, HistoryEntry{
		Pool:         pool,
		Virgin:       levels.Virgin,
		Colored:      levels.Colored,
		AddedVirgin:  addedFor(variant, VariantVirgin, qty),
		AddedColored: addedFor(variant, VariantColored, qty),
		Kind:         HistoryIncrement,
		RecordedAt:   at,
	})
}

// getPoolOrZero treats a missing singleton row as zero levels, initialised
// lazily on first write.
func getPoolOrZero(ctx context.Context, tx TxRepository, pool Pool) (Levels, error) {
	levels, err := tx.GetPoolForUpdate(ctx, pool)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Levels{}, nil
		}
		return Levels{}, err
	}
	return levels, nil
}

func addedFor(v, want Variant, delta float64) float64 {
	if v == want {
		return delta
	}
	return 0
}
