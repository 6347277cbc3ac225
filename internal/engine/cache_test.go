package engine

import (
	"context"
	"testing"
	"time"

	"github.com/factumhq/factum/pkg/types"
)

func TestSnapshotCacheReuse(t *testing.T) {
	c := newSnapshotCache(time.Minute)
	calls := 0
	fetch := func(context.Context) ([]*types.Memory, error) {
		calls++
		return []*types.Memory{{ID: "a"}}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := c.get(context.Background(), fetch)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if len(got) != 1 || got[0].ID != "a" {
			t.Fatalf("get returned %v", got)
		}
	}
	if calls != 1 {
		t.Errorf("fetch called %d times, want 1", calls)
	}
}

func TestSnapshotCacheExpiry(t *testing.T) {
	c := newSnapshotCache(10 * time.Millisecond)
	calls := 0
	fetch := func(context.Context) ([]*types.Memory, error) {
		calls++
		return nil, nil
	}

	if _, err := c.get(context.Background(), fetch); err != nil {
		t.Fatalf("get: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := c.get(context.Background(), fetch); err != nil {
		t.Fatalf("get: %v", err)
	}
	if calls != 2 {
		t.Errorf("fetch called %d times after expiry, want 2", calls)
	}
}

func TestSnapshotCacheInvalidate(t *testing.T) {
	c := newSnapshotCache(time.Minute)
	calls := 0
	fetch := func(context.Context) ([]*types.Memory, error) {
		calls++
		return []*types.Memory{}, nil
	}

	if _, err := c.get(context.Background(), fetch); err != nil {
		t.Fatalf("get: %v", err)
	}
	c.invalidate()
	if _, err := c.get(context.Background(), fetch); err != nil {
		t.Fatalf("get: %v", err)
	}
	if calls != 2 {
		t.Errorf("fetch called %d times after invalidate, want 2", calls)
	}
}

func TestSnapshotCacheFetchError(t *testing.T) {
	c := newSnapshotCache(time.Minute)
	wantErr := context.DeadlineExceeded
	_, err := c.get(context.Background(), func(context.Context) ([]*types.Memory, error) {
		return nil, wantErr
	})
	if err != wantErr {
		t.Fatalf("get error = %v, want %v", err, wantErr)
	}

	// A failed fetch must not poison the cache with an empty snapshot.
	calls := 0
	got, err := c.get(context.Background(), func(context.Context) ([]*types.Memory, error) {
		calls++
		return []*types.Memory{{ID: "b"}}, nil
	})
	if err != nil {
		t.Fatalf("get after error: %v", err)
	}
	if calls != 1 || len(got) != 1 {
		t.Errorf("recovery fetch: calls=%d len=%d", calls, len(got))
	}
}
