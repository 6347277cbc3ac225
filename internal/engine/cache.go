package engine

import (
	"context"
	"sync"
	"time"

	"github.com/factumhq/factum/pkg/types"
)

// cacheTTL is how long a whole-collection snapshot remains valid. Mutations
// invalidate the snapshot immediately regardless of age.
const cacheTTL = 5 * time.Minute

// snapshotCache is a whole-collection read cache for one engine instance.
// It holds exactly one snapshot plus its fetch time; there is no partial or
// paginated state. Every mutation calls Invalidate unconditionally even when
// the change could in principle be merged into the snapshot. The mutex
// exists because the dashboard reads concurrently with the protocol loop.
type snapshotCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	snapshot  []*types.Memory
	fetchedAt time.Time
}

func newSnapshotCache(ttl time.Duration) *snapshotCache {
	return &snapshotCache{ttl: ttl}
}

// get returns the cached snapshot when it is younger than the TTL, otherwise
// runs fetch and replaces snapshot and timestamp. The returned slice is
// shared; callers must not mutate it or the memories it points to.
func (c *snapshotCache) get(ctx context.Context, fetch func(context.Context) ([]*types.Memory, error)) ([]*types.Memory, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot != nil && time.Since(c.fetchedAt) < c.ttl {
		return c.snapshot, nil
	}

	fresh, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		fresh = []*types.Memory{}
	}
	c.snapshot = fresh
	c.fetchedAt = time.Now()
	return fresh, nil
}

// invalidate drops the snapshot so the next read re-fetches.
func (c *snapshotCache) invalidate() {
	c.mu.Lock()
	c.snapshot = nil
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}
