// Package storage defines the document-store contract the memory engine is
// written against, plus the error classification and retry policy shared by
// all backend implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/factumhq/factum/pkg/types"
)

var (
	// ErrNotFound indicates the requested memory does not exist. Backends
	// return it raw; the engine wraps it with the offending id so callers can
	// match with errors.Is instead of scraping error text.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates invalid parameters reached the storage layer.
	ErrInvalidInput = errors.New("invalid input")
)

// MaxTagQuery is the backend limit on the number of tags in a single
// any-of tag query. Callers must drop excess tags before querying.
const MaxTagQuery = 30

// VectorMatch pairs a memory with its cosine distance from a query vector.
// Smaller distance means more similar.
type VectorMatch struct {
	Memory   *types.Memory
	Distance float64
}

// BatchKind discriminates batch operations.
type BatchKind int

const (
	// BatchPut upserts a full document. When Memory.ID is empty the backend
	// assigns one; when CreatedAt/UpdatedAt are zero the backend stamps them
	// with its own clock. Non-zero values (import) are kept as supplied.
	BatchPut BatchKind = iota

	// BatchDelete removes a document by ID. Deleting an absent document is
	// not an error inside a batch.
	BatchDelete
)

// BatchOp is one entry in an atomic batch write.
type BatchOp struct {
	Kind   BatchKind
	Memory *types.Memory // BatchPut only
	ID     string        // BatchDelete only
}

// DocumentStore is the backing document database for one namespace, one
// document per memory. Reads are raw: expired memories are returned and it is
// the engine's job to filter them. All-or-nothing atomicity holds within a
// single Batch call but not across calls.
type DocumentStore interface {
	// Insert creates a new document, assigning the id and both timestamps,
	// and returns the assigned id.
	Insert(ctx context.Context, m *types.Memory) (string, error)

	// Get returns the document with the given id, expired or not.
	// Returns ErrNotFound if no such document exists.
	Get(ctx context.Context, id string) (*types.Memory, error)

	// GetAll returns every document in the namespace, unordered.
	GetAll(ctx context.Context) ([]*types.Memory, error)

	// Put replaces an existing document, stamping UpdatedAt.
	// Returns ErrNotFound if no such document exists.
	Put(ctx context.Context, m *types.Memory) error

	// Delete removes a document. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id string) error

	// FindByAnyTag returns documents carrying at least one of the given
	// tags. Callers are responsible for the MaxTagQuery cap.
	FindByAnyTag(ctx context.Context, tags []string) ([]*types.Memory, error)

	// NearestNeighbors returns up to limit documents ordered by cosine
	// distance to the query vector, nearest first. Documents without an
	// embedding are skipped.
	NearestNeighbors(ctx context.Context, vector []float32, limit int) ([]VectorMatch, error)

	// FindExpired returns the ids of documents whose expiresAt is non-null
	// and at or before now. This is the raw existence check used by cleanup;
	// it deliberately sees documents every other read path hides.
	FindExpired(ctx context.Context, now time.Time) ([]string, error)

	// Exists reports, for each id, whether a document with that id exists
	// (expired documents count as existing).
	Exists(ctx context.Context, ids []string) (map[string]bool, error)

	// Count returns the total number of documents, expired included.
	Count(ctx context.Context) (int, error)

	// CreatedBounds returns the oldest and newest createdAt values, or
	// (nil, nil) for an empty collection.
	CreatedBounds(ctx context.Context) (oldest, newest *time.Time, err error)

	// Batch applies all operations atomically.
	Batch(ctx context.Context, ops []BatchOp) error

	// Close releases the underlying connection.
	Close() error
}
