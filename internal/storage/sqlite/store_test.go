package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/factumhq/factum/internal/storage"
	"github.com/factumhq/factum/pkg/types"
)

// newTestStore creates an in-memory SQLite store for testing.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestInsertAssignsIDAndTimestamps(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	m := &types.Memory{Fact: "the capital of France is Paris"}
	id, err := store.Insert(ctx, m)
	if err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	if id == "" || m.ID != id {
		t.Fatalf("Insert() id = %q, memory id = %q", id, m.ID)
	}
	if m.CreatedAt.IsZero() || m.UpdatedAt.IsZero() {
		t.Error("Insert() did not stamp timestamps")
	}

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Fact != m.Fact {
		t.Errorf("Fact: got %q, want %q", got.Fact, m.Fact)
	}
}

func TestRoundTripAllFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	exp := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)
	m := &types.Memory{
		Fact:      "remember to water the plants",
		Tags:      []string{"home", "chores"},
		Pinned:    true,
		RelatedTo: []string{"other-id"},
		ExpiresAt: &exp,
		Embedding: []float32{0.25, -0.5, 0.75},
	}
	id, err := store.Insert(ctx, m)
	if err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "home" || got.Tags[1] != "chores" {
		t.Errorf("Tags: got %v", got.Tags)
	}
	if !got.Pinned {
		t.Error("Pinned: got false, want true")
	}
	if len(got.RelatedTo) != 1 || got.RelatedTo[0] != "other-id" {
		t.Errorf("RelatedTo: got %v", got.RelatedTo)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt: got %v, want %v", got.ExpiresAt, exp)
	}
	if len(got.Embedding) != 3 || got.Embedding[2] != 0.75 {
		t.Errorf("Embedding: got %v", got.Embedding)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), "no-such-id")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestPutMissingReturnsNotFound(t *testing.T) {
	store := newTestStore(t)
	err := store.Put(context.Background(), &types.Memory{ID: "ghost", Fact: "x"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Put() error = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Insert(ctx, &types.Memory{Fact: "ephemeral"})
	if err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if err := store.Delete(ctx, id); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestFindByAnyTag(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mustInsert(t, store, &types.Memory{Fact: "a", Tags: []string{"work", "go"}})
	mustInsert(t, store, &types.Memory{Fact: "b", Tags: []string{"home"}})
	mustInsert(t, store, &types.Memory{Fact: "c"})

	got, err := store.FindByAnyTag(ctx, []string{"go", "gardening"})
	if err != nil {
		t.Fatalf("FindByAnyTag() failed: %v", err)
	}
	if len(got) != 1 || got[0].Fact != "a" {
		t.Errorf("FindByAnyTag: got %d results, want the single tagged memory", len(got))
	}

	got, err = store.FindByAnyTag(ctx, nil)
	if err != nil {
		t.Fatalf("FindByAnyTag(nil) failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("FindByAnyTag(nil): got %d results, want 0", len(got))
	}
}

func TestNearestNeighborsOrdersByDistance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mustInsert(t, store, &types.Memory{Fact: "identical", Embedding: []float32{1, 0, 0}})
	mustInsert(t, store, &types.Memory{Fact: "orthogonal", Embedding: []float32{0, 1, 0}})
	mustInsert(t, store, &types.Memory{Fact: "close", Embedding: []float32{0.9, 0.1, 0}})
	mustInsert(t, store, &types.Memory{Fact: "no embedding"})
	// Different dimensionality from an older provider config is skipped.
	mustInsert(t, store, &types.Memory{Fact: "wrong dims", Embedding: []float32{1, 0}})

	matches, err := store.NearestNeighbors(ctx, []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatalf("NearestNeighbors() failed: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("NearestNeighbors: got %d matches, want 3", len(matches))
	}
	if matches[0].Memory.Fact != "identical" || matches[1].Memory.Fact != "close" {
		t.Errorf("order: got %q then %q", matches[0].Memory.Fact, matches[1].Memory.Fact)
	}
	if matches[0].Distance > 1e-6 {
		t.Errorf("identical vector distance = %v, want ~0", matches[0].Distance)
	}

	matches, err = store.NearestNeighbors(ctx, []float32{1, 0, 0}, 1)
	if err != nil {
		t.Fatalf("NearestNeighbors(limit=1) failed: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("limit: got %d matches, want 1", len(matches))
	}
}

func TestFindExpired(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	expired := mustInsert(t, store, &types.Memory{Fact: "old", ExpiresAt: &past})
	mustInsert(t, store, &types.Memory{Fact: "fresh", ExpiresAt: &future})
	mustInsert(t, store, &types.Memory{Fact: "permanent"})

	ids, err := store.FindExpired(ctx, now)
	if err != nil {
		t.Fatalf("FindExpired() failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != expired {
		t.Errorf("FindExpired: got %v, want [%s]", ids, expired)
	}
}

func TestExists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id := mustInsert(t, store, &types.Memory{Fact: "here"})
	got, err := store.Exists(ctx, []string{id, "missing"})
	if err != nil {
		t.Fatalf("Exists() failed: %v", err)
	}
	if !got[id] || got["missing"] {
		t.Errorf("Exists: got %v", got)
	}
}

func TestCountAndCreatedBounds(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Empty collection: zero count, nil bounds.
	n, err := store.Count(ctx)
	if err != nil || n != 0 {
		t.Fatalf("Count() = %d, %v; want 0, nil", n, err)
	}
	oldest, newest, err := store.CreatedBounds(ctx)
	if err != nil {
		t.Fatalf("CreatedBounds() failed: %v", err)
	}
	if oldest != nil || newest != nil {
		t.Errorf("CreatedBounds on empty: got %v, %v; want nils", oldest, newest)
	}

	mustInsert(t, store, &types.Memory{Fact: "one"})
	mustInsert(t, store, &types.Memory{Fact: "two"})

	n, err = store.Count(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Count() = %d, %v; want 2, nil", n, err)
	}
	oldest, newest, err = store.CreatedBounds(ctx)
	if err != nil || oldest == nil || newest == nil {
		t.Fatalf("CreatedBounds() = %v, %v, %v", oldest, newest, err)
	}
	if newest.Before(*oldest) {
		t.Errorf("CreatedBounds: newest %v before oldest %v", newest, oldest)
	}
}

func TestBatchAtomicAndIDAssignment(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	victim := mustInsert(t, store, &types.Memory{Fact: "to be deleted"})

	put := &types.Memory{Fact: "batched"}
	imported := &types.Memory{
		ID:        "import-1",
		Fact:      "imported with client timestamps",
		CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
	}

	err := store.Batch(ctx, []storage.BatchOp{
		{Kind: storage.BatchPut, Memory: put},
		{Kind: storage.BatchPut, Memory: imported},
		{Kind: storage.BatchDelete, ID: victim},
		{Kind: storage.BatchDelete, ID: "never-existed"}, // no-op, not an error
	})
	if err != nil {
		t.Fatalf("Batch() failed: %v", err)
	}

	if put.ID == "" {
		t.Error("Batch did not assign an id to the new document")
	}
	if _, err := store.Get(ctx, victim); !errors.Is(err, storage.ErrNotFound) {
		t.Error("Batch delete did not remove the document")
	}

	got, err := store.Get(ctx, "import-1")
	if err != nil {
		t.Fatalf("Get(import-1) failed: %v", err)
	}
	if got.CreatedAt.Year() != 2024 {
		t.Errorf("import timestamps overwritten: got %v", got.CreatedAt)
	}
}

func TestBatchEmptyIsNoOp(t *testing.T) {
	store := newTestStore(t)
	if err := store.Batch(context.Background(), nil); err != nil {
		t.Errorf("Batch(nil) = %v, want nil", err)
	}
}

func mustInsert(t *testing.T, store *Store, m *types.Memory) string {
	t.Helper()
	id, err := store.Insert(context.Background(), m)
	if err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	return id
}
