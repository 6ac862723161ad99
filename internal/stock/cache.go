package stock

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const snapshotKey = "stock:snapshot"

// SnapshotCache is the read-side cache for the pool snapshot. It is dropped on
// every successful mutation; the pool rows stay the system of record.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewSnapshotCache instantiates the cache helper.
func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl}
}

// Fetch returns the cached snapshot or populates it using the loader.
// Concurrent misses collapse into a single load.
func (c *SnapshotCache) Fetch(ctx context.Context, loader func(context.Context) (Snapshot, error)) (Snapshot, error) {
	if loader == nil {
		return nil, errors.New("stock: snapshot loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}

	payload, err := c.client.Get(ctx, snapshotKey).Bytes()
	if err == nil {
		var snap Snapshot
		if err := json.Unmarshal(payload, &snap); err == nil {
			return snap, nil
		}
		// Corrupt entry: fall through and reload.
	} else if err != redis.Nil {
		return nil, err
	}

	value, err, _ := c.group.Do(snapshotKey, func() (any, error) {
		snap, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(snap)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, snapshotKey, raw, c.ttl).Err(); err != nil {
			return nil, err
		}
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(Snapshot), nil
}

// Invalidate drops the cached snapshot.
func (c *SnapshotCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, snapshotKey).Err()
}
