// Package engine implements the memory store engine: a cache-accelerated,
// relevance-ranked fact repository on top of a backing document store, with
// best-effort embedding generation for semantic search.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/factumhq/factum/internal/embedding"
	"github.com/factumhq/factum/internal/storage"
	"github.com/factumhq/factum/pkg/types"
)

const (
	// DefaultListLimit and MaxListLimit bound GetAll pagination.
	DefaultListLimit = 50
	MaxListLimit     = 200

	// maxBatchItems caps one bulk add/delete call and one import chunk.
	// Excess bulk items are silently clamped.
	maxBatchItems = 20

	// similarityFloor is the minimum cosine similarity (1 - distance) a
	// semantic search hit must reach.
	similarityFloor = 0.3
)

// ImportMode selects how ImportAll treats existing records.
type ImportMode string

const (
	// ImportMerge skips (and reports) ids that already exist.
	ImportMerge ImportMode = "merge"

	// ImportReplace wipes every existing record before importing.
	ImportReplace ImportMode = "replace"
)

// ScoredMemory pairs a memory with its relevance or similarity score.
type ScoredMemory struct {
	Memory *types.Memory `json:"memory"`
	Score  float64       `json:"score"`
}

// BulkResult reports the outcome of a bulk or import operation. Individual
// item failures are data, never an error: the operation as a whole only
// fails when the backend does.
type BulkResult struct {
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
	IDs       []string `json:"ids,omitempty"` // ids written, in input order
}

// AddOptions carries the optional fields of Add.
type AddOptions struct {
	Tags     []string
	Pinned   bool
	TTLHours float64 // 0 = permanent
}

// AddBulkItem is one entry of a bulk add.
type AddBulkItem struct {
	Fact     string   `json:"fact"`
	Tags     []string `json:"tags,omitempty"`
	Pinned   bool     `json:"pinned,omitempty"`
	TTLHours float64  `json:"ttlHours,omitempty"`
}

// UpdateRequest carries the partial fields of Update. Nil pointers leave the
// field unchanged; Tags is applied only when non-nil.
type UpdateRequest struct {
	Fact     *string
	Tags     []string
	Pinned   *bool
	TTLHours *float64 // <= 0 clears the expiry
}

// Engine orchestrates the document store, snapshot cache, retry executor and
// embedding provider into the full memory store. One Engine owns one
// namespace; nothing is shared between instances.
type Engine struct {
	store    storage.DocumentStore
	retrier  *storage.Retrier
	cache    *snapshotCache
	embedder embedding.Provider // nil = lexical-only mode
	userID   string
	logger   *log.Logger
	notifier Notifier
}

// Option configures an Engine.
type Option func(*Engine)

// WithEmbedder attaches an embedding provider. Without one, semantic search
// is unavailable and writes carry no vectors.
func WithEmbedder(p embedding.Provider) Option {
	return func(e *Engine) { e.embedder = p }
}

// WithNotifier attaches a mutation event receiver.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithLogger replaces the default logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		e.logger = l
		e.retrier = storage.NewRetrier(l)
	}
}

// WithRetrier replaces the retry policy (used by tests to avoid real
// backoff sleeps).
func WithRetrier(r *storage.Retrier) Option {
	return func(e *Engine) { e.retrier = r }
}

// WithCacheTTL overrides the snapshot TTL (used by tests).
func WithCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.cache = newSnapshotCache(ttl) }
}

// New creates an Engine for one user namespace over the given store.
func New(store storage.DocumentStore, userID string, opts ...Option) *Engine {
	logger := log.Default().With("component", "engine", "user", userID)
	e := &Engine{
		store:   store,
		retrier: storage.NewRetrier(logger),
		cache:   newSnapshotCache(cacheTTL),
		userID:  userID,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// notFound wraps the sentinel with the offending id.
func notFound(id string) error {
	return fmt.Errorf("memory %s: %w", id, storage.ErrNotFound)
}

// expiresAt converts a TTL in hours to an absolute expiry, nil for zero.
func expiresAt(ttlHours float64) *time.Time {
	if ttlHours <= 0 {
		return nil
	}
	t := time.Now().UTC().Add(time.Duration(ttlHours * float64(time.Hour)))
	return &t
}

// embed computes a vector for the fact, best-effort: a provider failure is
// logged and the write proceeds without a vector.
func (e *Engine) embed(ctx context.Context, fact string) []float32 {
	if e.embedder == nil {
		return nil
	}
	vec, err := e.embedder.Embed(ctx, fact)
	if err != nil {
		e.logger.Warn("embedding failed, storing without vector",
			"provider", e.embedder.Name(), "error", err)
		return nil
	}
	return vec
}

// Add stores a new fact. Tags are normalized to lowercase, the expiry is
// derived from the optional TTL, and the embedding is computed best-effort.
func (e *Engine) Add(ctx context.Context, fact string, opts AddOptions) (*types.Memory, error) {
	m := &types.Memory{
		Fact:      fact,
		Tags:      types.NormalizeTags(opts.Tags),
		Pinned:    opts.Pinned,
		ExpiresAt: expiresAt(opts.TTLHours),
		Embedding: e.embed(ctx, fact),
	}

	_, err := storage.Retry(ctx, e.retrier, "add", func(ctx context.Context) (string, error) {
		return e.store.Insert(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	e.cache.invalidate()
	e.notifyAdded(m)
	return m, nil
}

// Get returns a memory by id, or nil when it is absent or expired: an
// expired memory is indistinguishable from a deleted one to read paths.
func (e *Engine) Get(ctx context.Context, id string) (*types.Memory, error) {
	m, err := storage.Retry(ctx, e.retrier, "get", func(ctx context.Context) (*types.Memory, error) {
		return e.store.Get(ctx, id)
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if m.Expired(time.Now()) {
		return nil, nil
	}
	return m, nil
}

// snapshot returns the live (non-expired) memories from the cache,
// re-fetching from the store when the snapshot is stale. Cache hits bypass
// the backend and therefore the retry executor.
func (e *Engine) snapshot(ctx context.Context) ([]*types.Memory, error) {
	all, err := e.cache.get(ctx, func(ctx context.Context) ([]*types.Memory, error) {
		return storage.Retry(ctx, e.retrier, "getAll", func(ctx context.Context) ([]*types.Memory, error) {
			return e.store.GetAll(ctx)
		})
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	live := make([]*types.Memory, 0, len(all))
	for _, m := range all {
		if !m.Expired(now) {
			live = append(live, m)
		}
	}
	return live, nil
}

// sortListing orders newest-first, then stably re-sorts pinned memories to
// the front so recency breaks ties within each group.
func sortListing(memories []*types.Memory) {
	sort.SliceStable(memories, func(i, j int) bool {
		return memories[i].CreatedAt.After(memories[j].CreatedAt)
	})
	sort.SliceStable(memories, func(i, j int) bool {
		return memories[i].Pinned && !memories[j].Pinned
	})
}

// GetAll lists memories with pagination. The limit is clamped to
// [1, MaxListLimit] with DefaultListLimit for zero; a negative offset is
// treated as zero.
func (e *Engine) GetAll(ctx context.Context, limit, offset int) ([]*types.Memory, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	live, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	sorted := make([]*types.Memory, len(live))
	copy(sorted, live)
	sortListing(sorted)

	if offset >= len(sorted) {
		return []*types.Memory{}, nil
	}
	end := offset + limit
	if end > len(sorted) {
		end = len(sorted)
	}

	page := make([]*types.Memory, 0, end-offset)
	for _, m := range sorted[offset:end] {
		page = append(page, m.Clone())
	}
	return page, nil
}

// Search performs a case-insensitive substring match over facts.
func (e *Engine) Search(ctx context.Context, query string) ([]*types.Memory, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, nil
	}

	live, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var matches []*types.Memory
	for _, m := range live {
		if strings.Contains(strings.ToLower(m.Fact), query) {
			matches = append(matches, m.Clone())
		}
	}
	return matches, nil
}

// SmartSearch scores every live memory against the query with the lexical
// relevance scorer and returns matches at or above MatchThreshold, sorted
// descending by score. Equal scores keep their prior relative order. An
// empty query yields an empty result, not an error.
func (e *Engine) SmartSearch(ctx context.Context, query string) ([]ScoredMemory, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	live, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var matches []ScoredMemory
	for _, m := range live {
		score := relevance(m.Fact, query, m.Tags)
		if score >= MatchThreshold {
			matches = append(matches, ScoredMemory{Memory: m.Clone(), Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches, nil
}

// SearchByTags returns live memories carrying at least one of the given
// tags. The backend caps any-of queries at storage.MaxTagQuery tags; excess
// tags are dropped. An empty list yields an empty result.
func (e *Engine) SearchByTags(ctx context.Context, tags []string) ([]*types.Memory, error) {
	tags = types.NormalizeTags(tags)
	if len(tags) == 0 {
		return nil, nil
	}
	if len(tags) > storage.MaxTagQuery {
		e.logger.Debug("tag query clamped to backend limit", "requested", len(tags), "limit", storage.MaxTagQuery)
		tags = tags[:storage.MaxTagQuery]
	}

	found, err := storage.Retry(ctx, e.retrier, "searchByTags", func(ctx context.Context) ([]*types.Memory, error) {
		return e.store.FindByAnyTag(ctx, tags)
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var live []*types.Memory
	for _, m := range found {
		if !m.Expired(now) {
			live = append(live, m)
		}
	}
	return live, nil
}

// SemanticSearch runs a nearest-neighbor query with the given vector and
// keeps hits whose cosine similarity (1 - distance) exceeds similarityFloor,
// excluding expired memories.
func (e *Engine) SemanticSearch(ctx context.Context, vector []float32, limit int) ([]ScoredMemory, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	matches, err := storage.Retry(ctx, e.retrier, "semanticSearch", func(ctx context.Context) ([]storage.VectorMatch, error) {
		return e.store.NearestNeighbors(ctx, vector, limit)
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var results []ScoredMemory
	for _, match := range matches {
		similarity := 1 - match.Distance
		if similarity <= similarityFloor {
			continue
		}
		if match.Memory.Expired(now) {
			continue
		}
		results = append(results, ScoredMemory{Memory: match.Memory, Score: similarity})
	}
	return results, nil
}

// SemanticSearchText embeds the query and runs SemanticSearch. It requires
// an embedding provider; unlike write-path embedding this is not
// best-effort, because there is no lexical vector to fall back to here.
func (e *Engine) SemanticSearchText(ctx context.Context, query string, limit int) ([]ScoredMemory, error) {
	if e.embedder == nil {
		return nil, fmt.Errorf("semantic search requires an embedding provider")
	}
	vector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return e.SemanticSearch(ctx, vector, limit)
}

// Update applies a partial update and returns the fresh record. A changed
// fact is re-embedded best-effort; on provider failure the stale vector is
// dropped rather than kept. Returns a not-found error for an unknown id.
func (e *Engine) Update(ctx context.Context, id string, req UpdateRequest) (*types.Memory, error) {
	m, err := storage.Retry(ctx, e.retrier, "update.get", func(ctx context.Context) (*types.Memory, error) {
		return e.store.Get(ctx, id)
	})
	if err != nil {
		if isNotFound(err) {
			return nil, notFound(id)
		}
		return nil, err
	}

	if req.Fact != nil && *req.Fact != m.Fact {
		m.Fact = *req.Fact
		m.Embedding = e.embed(ctx, m.Fact)
	}
	if req.Tags != nil {
		m.Tags = types.NormalizeTags(req.Tags)
	}
	if req.Pinned != nil {
		m.Pinned = *req.Pinned
	}
	if req.TTLHours != nil {
		m.ExpiresAt = expiresAt(*req.TTLHours)
	}

	err = storage.RetryVoid(ctx, e.retrier, "update.put", func(ctx context.Context) error {
		return e.store.Put(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	e.cache.invalidate()
	e.notifyUpdated(m)
	return m, nil
}

// Delete removes a memory, reporting whether it existed. A missing id is
// not an error.
func (e *Engine) Delete(ctx context.Context, id string) (bool, error) {
	err := storage.RetryVoid(ctx, e.retrier, "delete", func(ctx context.Context) error {
		return e.store.Delete(ctx, id)
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}

	e.cache.invalidate()
	e.notifyDeleted(id)
	return true, nil
}

// TogglePin flips the pinned flag and returns the fresh record.
func (e *Engine) TogglePin(ctx context.Context, id string) (*types.Memory, error) {
	m, err := storage.Retry(ctx, e.retrier, "togglePin.get", func(ctx context.Context) (*types.Memory, error) {
		return e.store.Get(ctx, id)
	})
	if err != nil {
		if isNotFound(err) {
			return nil, notFound(id)
		}
		return nil, err
	}

	m.Pinned = !m.Pinned
	err = storage.RetryVoid(ctx, e.retrier, "togglePin.put", func(ctx context.Context) error {
		return e.store.Put(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	e.cache.invalidate()
	e.notifyUpdated(m)
	return m, nil
}

// AddBulk stores up to maxBatchItems facts in one batch commit. Excess items
// are silently clamped. Embeddings are computed as a single batch call when
// possible; a provider failure degrades the whole chunk to vector-less
// writes. Per-item failures are collected, not thrown, and an empty input
// issues no backend write at all.
func (e *Engine) AddBulk(ctx context.Context, items []AddBulkItem) (*BulkResult, error) {
	result := &BulkResult{}
	if len(items) == 0 {
		return result, nil
	}
	if len(items) > maxBatchItems {
		e.logger.Debug("bulk add clamped", "requested", len(items), "limit", maxBatchItems)
		items = items[:maxBatchItems]
	}

	var memories []*types.Memory
	for i, item := range items {
		if strings.TrimSpace(item.Fact) == "" {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("item %d: fact is required", i))
			continue
		}
		memories = append(memories, &types.Memory{
			Fact:      item.Fact,
			Tags:      types.NormalizeTags(item.Tags),
			Pinned:    item.Pinned,
			ExpiresAt: expiresAt(item.TTLHours),
		})
	}
	if len(memories) == 0 {
		return result, nil
	}

	e.embedAll(ctx, memories)

	ops := make([]storage.BatchOp, len(memories))
	for i, m := range memories {
		ops[i] = storage.BatchOp{Kind: storage.BatchPut, Memory: m}
	}
	err := storage.RetryVoid(ctx, e.retrier, "addBulk", func(ctx context.Context) error {
		return e.store.Batch(ctx, ops)
	})
	if err != nil {
		return nil, err
	}

	e.cache.invalidate()
	for _, m := range memories {
		result.Succeeded++
		result.IDs = append(result.IDs, m.ID)
		e.notifyAdded(m)
	}
	return result, nil
}

// embedAll fills missing embeddings for a chunk with one batch call,
// best-effort: on failure the chunk is written without vectors.
func (e *Engine) embedAll(ctx context.Context, memories []*types.Memory) {
	if e.embedder == nil {
		return
	}

	var texts []string
	var targets []*types.Memory
	for _, m := range memories {
		if len(m.Embedding) == 0 {
			texts = append(texts, m.Fact)
			targets = append(targets, m)
		}
	}
	if len(texts) == 0 {
		return
	}

	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		e.logger.Warn("batch embedding failed, storing without vectors",
			"provider", e.embedder.Name(), "count", len(texts), "error", err)
		return
	}
	for i, vec := range vectors {
		targets[i].Embedding = vec
	}
}

// DeleteBulk removes up to maxBatchItems ids. Each id is existence-checked
// individually first; missing ids become per-item errors while the rest are
// deleted in one batch commit.
func (e *Engine) DeleteBulk(ctx context.Context, ids []string) (*BulkResult, error) {
	result := &BulkResult{}
	if len(ids) == 0 {
		return result, nil
	}
	if len(ids) > maxBatchItems {
		e.logger.Debug("bulk delete clamped", "requested", len(ids), "limit", maxBatchItems)
		ids = ids[:maxBatchItems]
	}

	var ops []storage.BatchOp
	var found []string
	for _, id := range ids {
		_, err := storage.Retry(ctx, e.retrier, "deleteBulk.get", func(ctx context.Context) (*types.Memory, error) {
			return e.store.Get(ctx, id)
		})
		if err != nil {
			if isNotFound(err) {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("memory %s not found", id))
				continue
			}
			return nil, err
		}
		ops = append(ops, storage.BatchOp{Kind: storage.BatchDelete, ID: id})
		found = append(found, id)
	}

	if len(ops) > 0 {
		err := storage.RetryVoid(ctx, e.retrier, "deleteBulk", func(ctx context.Context) error {
			return e.store.Batch(ctx, ops)
		})
		if err != nil {
			return nil, err
		}
		e.cache.invalidate()
		for _, id := range found {
			result.Succeeded++
			e.notifyDeleted(id)
		}
	}
	return result, nil
}

// Link records a symmetric relationship between two memories. Both ids must
// exist; both sides are updated in one batch commit.
func (e *Engine) Link(ctx context.Context, idA, idB string) error {
	if idA == idB {
		return fmt.Errorf("%w: cannot link a memory to itself", storage.ErrInvalidInput)
	}

	memA, err := e.getForLink(ctx, idA)
	if err != nil {
		return err
	}
	memB, err := e.getForLink(ctx, idB)
	if err != nil {
		return err
	}

	memA.RelatedTo = appendMissing(memA.RelatedTo, idB)
	memB.RelatedTo = appendMissing(memB.RelatedTo, idA)
	memA.UpdatedAt = time.Time{} // let the store stamp both sides
	memB.UpdatedAt = time.Time{}

	err = storage.RetryVoid(ctx, e.retrier, "link", func(ctx context.Context) error {
		return e.store.Batch(ctx, []storage.BatchOp{
			{Kind: storage.BatchPut, Memory: memA},
			{Kind: storage.BatchPut, Memory: memB},
		})
	})
	if err != nil {
		return err
	}

	e.cache.invalidate()
	e.notifyUpdated(memA)
	e.notifyUpdated(memB)
	return nil
}

func (e *Engine) getForLink(ctx context.Context, id string) (*types.Memory, error) {
	m, err := storage.Retry(ctx, e.retrier, "link.get", func(ctx context.Context) (*types.Memory, error) {
		return e.store.Get(ctx, id)
	})
	if err != nil {
		if isNotFound(err) {
			return nil, notFound(id)
		}
		return nil, err
	}
	return m, nil
}

// Unlink removes the symmetric relationship. Unlike Link it performs no
// existence check: the removal is issued for whichever side still exists and
// a fully absent pair is a silent no-op. This keeps unlink usable as
// idempotent cleanup after one side has been deleted.
func (e *Engine) Unlink(ctx context.Context, idA, idB string) error {
	var ops []storage.BatchOp
	var updated []*types.Memory

	for _, pair := range [][2]string{{idA, idB}, {idB, idA}} {
		m, err := storage.Retry(ctx, e.retrier, "unlink.get", func(ctx context.Context) (*types.Memory, error) {
			return e.store.Get(ctx, pair[0])
		})
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return err
		}
		m.RelatedTo = removeID(m.RelatedTo, pair[1])
		m.UpdatedAt = time.Time{}
		ops = append(ops, storage.BatchOp{Kind: storage.BatchPut, Memory: m})
		updated = append(updated, m)
	}

	if len(ops) == 0 {
		return nil
	}

	err := storage.RetryVoid(ctx, e.retrier, "unlink", func(ctx context.Context) error {
		return e.store.Batch(ctx, ops)
	})
	if err != nil {
		return err
	}

	e.cache.invalidate()
	for _, m := range updated {
		e.notifyUpdated(m)
	}
	return nil
}

// GetRelated resolves a memory's related set. The source must exist and be
// live; related entries that are missing or expired are silently dropped.
func (e *Engine) GetRelated(ctx context.Context, id string) ([]*types.Memory, error) {
	source, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, notFound(id)
	}

	now := time.Now()
	var related []*types.Memory
	for _, rid := range source.RelatedTo {
		m, err := storage.Retry(ctx, e.retrier, "getRelated.get", func(ctx context.Context) (*types.Memory, error) {
			return e.store.Get(ctx, rid)
		})
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if m.Expired(now) {
			continue
		}
		related = append(related, m)
	}
	return related, nil
}

// ExportAll produces the full live snapshot, newest-first, wrapped in the
// versioned export envelope.
func (e *Engine) ExportAll(ctx context.Context) (*types.Export, error) {
	live, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	memories := make([]*types.Memory, 0, len(live))
	for _, m := range live {
		memories = append(memories, m.Clone())
	}
	sort.SliceStable(memories, func(i, j int) bool {
		return memories[i].CreatedAt.After(memories[j].CreatedAt)
	})

	return &types.Export{
		Version:    types.ExportVersion,
		ExportedAt: time.Now().UTC(),
		UserID:     e.userID,
		Count:      len(memories),
		Memories:   memories,
	}, nil
}

// ImportAll loads an export blob. In replace mode every existing record is
// wiped in one batch commit first; in merge mode ids that already exist are
// skipped and reported. Memories are processed in chunks of maxBatchItems,
// one batch commit per chunk, with best-effort per-chunk embeddings. Chunk
// commits are independent: a mid-import failure leaves earlier chunks
// committed and later ones unprocessed.
func (e *Engine) ImportAll(ctx context.Context, data *types.Export, mode ImportMode) (*BulkResult, error) {
	result := &BulkResult{}
	if data == nil {
		return result, nil
	}

	switch mode {
	case ImportMerge, ImportReplace:
	default:
		return nil, fmt.Errorf("%w: unknown import mode %q", storage.ErrInvalidInput, mode)
	}

	if mode == ImportReplace {
		if err := e.wipeAll(ctx); err != nil {
			return nil, err
		}
	}

	if len(data.Memories) == 0 {
		return result, nil
	}

	skip := map[string]bool{}
	if mode == ImportMerge {
		var ids []string
		for _, m := range data.Memories {
			if m != nil && m.ID != "" {
				ids = append(ids, m.ID)
			}
		}
		existing, err := storage.Retry(ctx, e.retrier, "import.exists", func(ctx context.Context) (map[string]bool, error) {
			return e.store.Exists(ctx, ids)
		})
		if err != nil {
			return nil, err
		}
		skip = existing
	}

	var pending []*types.Memory
	for i, m := range data.Memories {
		if m == nil || strings.TrimSpace(m.Fact) == "" {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("item %d: fact is required", i))
			continue
		}
		if m.ID != "" && skip[m.ID] {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("memory %s already exists", m.ID))
			continue
		}
		c := m.Clone()
		c.Tags = types.NormalizeTags(c.Tags)
		pending = append(pending, c)
	}

	defer e.cache.invalidate()

	for start := 0; start < len(pending); start += maxBatchItems {
		end := start + maxBatchItems
		if end > len(pending) {
			end = len(pending)
		}
		chunk := pending[start:end]

		e.embedAll(ctx, chunk)

		ops := make([]storage.BatchOp, len(chunk))
		for i, m := range chunk {
			ops[i] = storage.BatchOp{Kind: storage.BatchPut, Memory: m}
		}
		err := storage.RetryVoid(ctx, e.retrier, "import.batch", func(ctx context.Context) error {
			return e.store.Batch(ctx, ops)
		})
		if err != nil {
			// Earlier chunks stay committed; that is accepted behavior.
			return result, err
		}
		for _, m := range chunk {
			result.Succeeded++
			result.IDs = append(result.IDs, m.ID)
			e.notifyAdded(m)
		}
	}
	return result, nil
}

// wipeAll deletes every record (expired included) in a single batch commit.
func (e *Engine) wipeAll(ctx context.Context) error {
	all, err := storage.Retry(ctx, e.retrier, "import.wipe.getAll", func(ctx context.Context) ([]*types.Memory, error) {
		return e.store.GetAll(ctx)
	})
	if err != nil {
		return err
	}
	if len(all) == 0 {
		return nil
	}

	ops := make([]storage.BatchOp, len(all))
	for i, m := range all {
		ops[i] = storage.BatchOp{Kind: storage.BatchDelete, ID: m.ID}
	}
	err = storage.RetryVoid(ctx, e.retrier, "import.wipe", func(ctx context.Context) error {
		return e.store.Batch(ctx, ops)
	})
	if err != nil {
		return err
	}

	e.cache.invalidate()
	for _, m := range all {
		e.notifyDeleted(m.ID)
	}
	return nil
}

// Stats returns collection aggregates, zeroed for an empty collection.
func (e *Engine) Stats(ctx context.Context) (*types.Stats, error) {
	count, err := storage.Retry(ctx, e.retrier, "stats.count", func(ctx context.Context) (int, error) {
		return e.store.Count(ctx)
	})
	if err != nil {
		return nil, err
	}

	stats := &types.Stats{
		Count:     count,
		UserID:    e.userID,
		Generated: time.Now().UTC(),
	}
	if count == 0 {
		return stats, nil
	}

	type bounds struct{ oldest, newest *time.Time }
	b, err := storage.Retry(ctx, e.retrier, "stats.bounds", func(ctx context.Context) (bounds, error) {
		oldest, newest, err := e.store.CreatedBounds(ctx)
		return bounds{oldest, newest}, err
	})
	if err != nil {
		return nil, err
	}
	stats.OldestAt = b.oldest
	stats.NewestAt = b.newest
	return stats, nil
}

// CleanupExpired sweeps every record whose expiry has passed and returns the
// number removed. When nothing is expired no batch commit is issued.
func (e *Engine) CleanupExpired(ctx context.Context) (int, error) {
	ids, err := storage.Retry(ctx, e.retrier, "cleanup.find", func(ctx context.Context) ([]string, error) {
		return e.store.FindExpired(ctx, time.Now())
	})
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	ops := make([]storage.BatchOp, len(ids))
	for i, id := range ids {
		ops[i] = storage.BatchOp{Kind: storage.BatchDelete, ID: id}
	}
	err = storage.RetryVoid(ctx, e.retrier, "cleanup.delete", func(ctx context.Context) error {
		return e.store.Batch(ctx, ops)
	})
	if err != nil {
		return 0, err
	}

	e.cache.invalidate()
	for _, id := range ids {
		e.notifyDeleted(id)
	}
	e.logger.Info("expired memories swept", "count", len(ids))
	return len(ids), nil
}

// HasEmbedder reports whether semantic search is available.
func (e *Engine) HasEmbedder() bool {
	return e.embedder != nil
}

// UserID returns the namespace this engine serves.
func (e *Engine) UserID() string {
	return e.userID
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}

func appendMissing(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
