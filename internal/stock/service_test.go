package stock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/filmledger/filmledger/internal/shared"
)

type memoryRepo struct {
	pools     map[Pool]Levels
	history   []HistoryEntry
	movements []Movement
	nextID    int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{pools: make(map[Pool]Levels)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{}
	for _, p := range Pools {
		snap[p] = r.pools[p]
	}
	return snap, nil
}

func (r *memoryRepo) History(ctx context.Context, pool Pool, limit int) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	for i := len(r.history) - 1; i >= 0; i-- {
		if r.history[i].Pool == pool {
			entries = append(entries, r.history[i])
		}
	}
	return entries, nil
}

func (r *memoryRepo) Movements(ctx context.Context, limit int) ([]Movement, error) {
	result := make([]Movement, 0, len(r.movements))
	for i := len(r.movements) - 1; i >= 0; i-- {
		result = append(result, r.movements[i])
	}
	return result, nil
}

func (tx *memoryTx) GetPoolForUpdate(ctx context.Context, pool Pool) (Levels, error) {
	levels, ok := tx.repo.pools[pool]
	if !ok {
		return Levels{}, shared.ErrNotFound
	}
	return levels, nil
}

func (tx *memoryTx) UpsertPool(ctx context.Context, pool Pool, levels Levels) error {
	tx.repo.pools[pool] = levels
	return nil
}

func (tx *memoryTx) InsertHistory(ctx context.Context, entry HistoryEntry) error {
	tx.repo.history = append(tx.repo.history, entry)
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, mv Movement) (int64, error) {
	tx.repo.nextID++
	mv.ID = tx.repo.nextID
	tx.repo.movements = append(tx.repo.movements, mv)
	return mv.ID, nil
}

func variantTotal(snap Snapshot, v Variant) float64 {
	var total float64
	for _, levels := range snap {
		total += levels.Get(v)
	}
	return total
}

func TestAdjustInitialisesPoolLazily(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	entry, err := svc.Adjust(ctx, AdjustInput{Pool: PoolRawMaterial, Variant: VariantVirgin, Added: 100})
	require.NoError(t, err)
	require.Equal(t, HistoryUpdate, entry.Kind)
	require.InDelta(t, 100, entry.Virgin, qtyEpsilon)
	require.InDelta(t, 100, entry.AddedVirgin, qtyEpsilon)
	require.InDelta(t, 0, entry.AddedColored, qtyEpsilon)

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.InDelta(t, 100, snap[PoolRawMaterial].Virgin, qtyEpsilon)
	require.InDelta(t, 0, snap[PoolFinished].Virgin, qtyEpsilon)
}

func TestMoveConservesVariantTotal(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Adjust(ctx, AdjustInput{Pool: PoolRawMaterial, Variant: VariantColored, Added: 80})
	require.NoError(t, err)

	mv, err := svc.Move(ctx, MoveInput{From: PoolRawMaterial, To: PoolInProcess, Variant: VariantColored, Quantity: 30})
	require.NoError(t, err)
	require.Equal(t, MovementTransfer, mv.Kind)
	require.Equal(t, PoolRawMaterial, mv.FromSection)
	require.Equal(t, PoolInProcess, mv.ToSection)

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.InDelta(t, 50, snap[PoolRawMaterial].Colored, qtyEpsilon)
	require.InDelta(t, 30, snap[PoolInProcess].Colored, qtyEpsilon)
	require.InDelta(t, 80, variantTotal(snap, VariantColored), qtyEpsilon)
}

func TestMoveAppendsPairedHistory(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Adjust(ctx, AdjustInput{Pool: PoolRawMaterial, Variant: VariantVirgin, Added: 40})
	require.NoError(t, err)
	_, err = svc.Move(ctx, MoveInput{From: PoolRawMaterial, To: PoolOutsourcing, Variant: VariantVirgin, Quantity: 15})
	require.NoError(t, err)

	fromHistory, err := svc.History(ctx, PoolRawMaterial, 0)
	require.NoError(t, err)
	require.Equal(t, HistoryDecrement, fromHistory[0].Kind)
	require.InDelta(t, -15, fromHistory[0].AddedVirgin, qtyEpsilon)
	require.InDelta(t, 25, fromHistory[0].Virgin, qtyEpsilon)

	toHistory, err := svc.History(ctx, PoolOutsourcing, 0)
	require.NoError(t, err)
	require.Equal(t, HistoryIncrement, toHistory[0].Kind)
	require.InDelta(t, 15, toHistory[0].AddedVirgin, qtyEpsilon)
}

func TestMoveInsufficientStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Adjust(ctx, AdjustInput{Pool: PoolRawMaterial, Variant: VariantVirgin, Added: 10})
	require.NoError(t, err)

	_, err = svc.Move(ctx, MoveInput{From: PoolRawMaterial, To: PoolInProcess, Variant: VariantVirgin, Quantity: 25})
	require.ErrorIs(t, err, ErrInsufficientStock)

	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, PoolRawMaterial, insufficient.Pool)
	require.InDelta(t, 10, insufficient.Available, qtyEpsilon)
	require.InDelta(t, 25, insufficient.Requested, qtyEpsilon)

	// Nothing moved.
	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.InDelta(t, 10, snap[PoolRawMaterial].Virgin, qtyEpsilon)
	require.InDelta(t, 0, snap[PoolInProcess].Virgin, qtyEpsilon)
}

func TestMoveFromUninitialisedPoolFails(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.Move(context.Background(), MoveInput{From: PoolInProcess, To: PoolFinished, Variant: VariantVirgin, Quantity: 1})
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestMoveValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Move(ctx, MoveInput{From: PoolRawMaterial, To: PoolRawMaterial, Variant: VariantVirgin, Quantity: 5})
	require.ErrorIs(t, err, ErrSamePool)

	_, err = svc.Move(ctx, MoveInput{From: PoolRawMaterial, To: PoolInProcess, Variant: VariantVirgin, Quantity: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Move(ctx, MoveInput{From: Pool("warehouse"), To: PoolInProcess, Variant: VariantVirgin, Quantity: 5})
	require.ErrorIs(t, err, ErrUnknownPool)

	_, err = svc.Move(ctx, MoveInput{From: PoolRawMaterial, To: PoolInProcess, Variant: Variant("clear"), Quantity: 5})
	require.ErrorIs(t, err, ErrUnknownVariant)

	_, err = svc.Adjust(ctx, AdjustInput{Pool: PoolRawMaterial, Variant: VariantVirgin, Added: -1})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestDepleteTxWritesOutputMovement(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Adjust(ctx, AdjustInput{Pool: PoolFinished, Variant: VariantVirgin, Added: 50})
	require.NoError(t, err)

	err = repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		mv, err := DepleteTx(ctx, tx, DepleteInput{Pool: PoolFinished, Variant: VariantVirgin, Quantity: 20, Ref: MovementRef{Description: "Sale"}}, time.Now().UTC())
		if err != nil {
			return err
		}
		require.Equal(t, MovementOutput, mv.Kind)
		require.Equal(t, PoolFinished, mv.FromSection)
		return nil
	})
	require.NoError(t, err)

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.InDelta(t, 30, snap[PoolFinished].Virgin, qtyEpsilon)
}
