package stock

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *SnapshotCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSnapshotCache(client, time.Minute)
}

func TestSnapshotCacheServesCachedValue(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (Snapshot, error) {
		calls++
		return Snapshot{PoolRawMaterial: {Virgin: 42}}, nil
	}

	snap, err := cache.Fetch(ctx, loader)
	require.NoError(t, err)
	require.InDelta(t, 42, snap[PoolRawMaterial].Virgin, qtyEpsilon)
	require.Equal(t, 1, calls)

	snap, err = cache.Fetch(ctx, loader)
	require.NoError(t, err)
	require.InDelta(t, 42, snap[PoolRawMaterial].Virgin, qtyEpsilon)
	require.Equal(t, 1, calls)
}

func TestSnapshotCacheInvalidateForcesReload(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (Snapshot, error) {
		calls++
		return Snapshot{PoolFinished: {Colored: float64(calls)}}, nil
	}

	_, err := cache.Fetch(ctx, loader)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx))

	snap, err := cache.Fetch(ctx, loader)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.InDelta(t, 2, snap[PoolFinished].Colored, qtyEpsilon)
}

func TestSnapshotMutationInvalidatesCache(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, newTestCache(t), nil, nil)
	ctx := context.Background()

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.InDelta(t, 0, snap[PoolRawMaterial].Virgin, qtyEpsilon)

	_, err = svc.Adjust(ctx, AdjustInput{Pool: PoolRawMaterial, Variant: VariantVirgin, Added: 60})
	require.NoError(t, err)

	snap, err = svc.Snapshot(ctx)
	require.NoError(t, err)
	require.InDelta(t, 60, snap[PoolRawMaterial].Virgin, qtyEpsilon)
}
