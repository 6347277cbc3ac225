// Package sqlite implements storage.DocumentStore on an embedded SQLite
// database. It is the default backend for local single-user deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"github.com/factumhq/factum/internal/storage"
	"github.com/factumhq/factum/pkg/types"
)

// Store implements storage.DocumentStore using SQLite.
type Store struct {
	db *sql.DB
}

var _ storage.DocumentStore = (*Store)(nil)

// New opens (and if necessary creates) a SQLite-backed store at the given
// DSN. Pass ":memory:" for an ephemeral store in tests.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY under concurrent load; WAL
	// mode lets readers proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// classify maps SQLite driver errors onto the shared transient-error codes so
// the retry executor can tell a locked database from a constraint violation.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlitelib.SQLITE_BUSY, sqlitelib.SQLITE_LOCKED:
			return storage.Coded(storage.CodeUnavailable, err)
		case sqlitelib.SQLITE_INTERRUPT:
			return storage.Coded(storage.CodeDeadlineExceeded, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return storage.Coded(storage.CodeDeadlineExceeded, err)
	}
	return err
}

const insertSQL = `
	INSERT INTO memories (id, fact, tags, pinned, related_to, expires_at, created_at, updated_at, embedding)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		fact = excluded.fact,
		tags = excluded.tags,
		pinned = excluded.pinned,
		related_to = excluded.related_to,
		expires_at = excluded.expires_at,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at,
		embedding = excluded.embedding
`

const selectColumns = `id, fact, tags, pinned, related_to, expires_at, created_at, updated_at, embedding`

// Insert creates a new document, assigning the id and timestamps.
func (s *Store) Insert(ctx context.Context, m *types.Memory) (string, error) {
	if m == nil || m.Fact == "" {
		return "", fmt.Errorf("%w: fact is required", storage.ErrInvalidInput)
	}

	m.ID = uuid.NewString()
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	if err := s.exec(ctx, m); err != nil {
		return "", fmt.Errorf("sqlite: failed to insert memory: %w", classify(err))
	}
	return m.ID, nil
}

// Put replaces an existing document and stamps UpdatedAt.
func (s *Store) Put(ctx context.Context, m *types.Memory) error {
	if m == nil || m.ID == "" {
		return fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}

	exists, err := s.exists(ctx, m.ID)
	if err != nil {
		return err
	}
	if !exists {
		return storage.ErrNotFound
	}

	m.UpdatedAt = time.Now().UTC()
	if err := s.exec(ctx, m); err != nil {
		return fmt.Errorf("sqlite: failed to update memory: %w", classify(err))
	}
	return nil
}

// exec writes the full document via the shared upsert statement.
func (s *Store) exec(ctx context.Context, m *types.Memory) error {
	tagsJSON, relatedJSON, err := marshalLists(m)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, insertSQL,
		m.ID,
		m.Fact,
		tagsJSON,
		m.Pinned,
		relatedJSON,
		nullableTime(m.ExpiresAt),
		m.CreatedAt,
		m.UpdatedAt,
		encodeVector(m.Embedding),
	)
	return err
}

// Get returns the document with the given id, expired or not.
func (s *Store) Get(ctx context.Context, id string) (*types.Memory, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM memories WHERE id = ?`, id)

	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get memory: %w", classify(err))
	}
	return m, nil
}

// GetAll returns every document in the collection.
func (s *Store) GetAll(ctx context.Context) ([]*types.Memory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM memories`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list memories: %w", classify(err))
	}
	defer func() { _ = rows.Close() }()

	return scanMemories(rows)
}

// Delete removes a document, returning ErrNotFound when absent.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to delete memory: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// FindByAnyTag returns documents carrying at least one of the given tags.
// Tags are matched exactly against the stored (lowercase) values.
func (s *Store) FindByAnyTag(ctx context.Context, tags []string) ([]*types.Memory, error) {
	if len(tags) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tags)), ",")
	query := `SELECT ` + selectColumns + ` FROM memories m
		WHERE EXISTS (
			SELECT 1 FROM json_each(m.tags) jt WHERE jt.value IN (` + placeholders + `)
		)`

	args := make([]any, len(tags))
	for i, t := range tags {
		args[i] = t
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query by tags: %w", classify(err))
	}
	defer func() { _ = rows.Close() }()

	return scanMemories(rows)
}

// nearestNeighborMaxCandidates caps how many embeddings are loaded into Go
// memory for a vector search. Candidates are taken newest-first, so recent
// memories are always considered. Personal datasets stay far below this; for
// larger ones use the PostgreSQL backend's indexed pgvector search.
const nearestNeighborMaxCandidates = 10_000

// NearestNeighbors loads stored embeddings and ranks them by cosine distance
// in process. SQLite has no vector index, so this is a scan by design.
func (s *Store) NearestNeighbors(ctx context.Context, vector []float32, limit int) ([]storage.VectorMatch, error) {
	if len(vector) == 0 || limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM memories
		 WHERE embedding IS NOT NULL
		 ORDER BY created_at DESC
		 LIMIT ?`, nearestNeighborMaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to load embeddings: %w", classify(err))
	}
	defer func() { _ = rows.Close() }()

	candidates, err := scanMemories(rows)
	if err != nil {
		return nil, err
	}

	matches := make([]storage.VectorMatch, 0, len(candidates))
	for _, m := range candidates {
		if len(m.Embedding) != len(vector) {
			continue // dimension mismatch from an older provider configuration
		}
		matches = append(matches, storage.VectorMatch{
			Memory:   m,
			Distance: cosineDistance(vector, m.Embedding),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// FindExpired returns the ids of documents whose expiry is at or before now.
func (s *Store) FindExpired(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM memories WHERE expires_at IS NOT NULL AND expires_at <= ?`, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query expired memories: %w", classify(err))
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scan expired id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Exists reports which of the given ids have a document, expired included.
func (s *Store) Exists(ctx context.Context, ids []string) (map[string]bool, error) {
	result := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	for _, id := range ids {
		result[id] = false
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM memories WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to check existence: %w", classify(err))
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scan id: %w", err)
		}
		result[id] = true
	}
	return result, rows.Err()
}

// Count returns the total number of documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: failed to count memories: %w", classify(err))
	}
	return n, nil
}

// CreatedBounds returns the oldest and newest createdAt, or nils when empty.
func (s *Store) CreatedBounds(ctx context.Context) (*time.Time, *time.Time, error) {
	var oldest, newest sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT MIN(created_at), MAX(created_at) FROM memories`).Scan(&oldest, &newest)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: failed to query created bounds: %w", classify(err))
	}
	if !oldest.Valid || !newest.Valid {
		return nil, nil, nil
	}
	o, n := oldest.Time, newest.Time
	return &o, &n, nil
}

// Batch applies all operations inside one transaction.
func (s *Store) Batch(ctx context.Context, ops []storage.BatchOp) error {
	if len(ops) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin batch: %w", classify(err))
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, op := range ops {
		switch op.Kind {
		case storage.BatchPut:
			m := op.Memory
			if m == nil {
				return fmt.Errorf("%w: batch put without memory", storage.ErrInvalidInput)
			}
			if m.ID == "" {
				m.ID = uuid.NewString()
			}
			// Import supplies its own timestamps; everything else gets the
			// store clock.
			if m.CreatedAt.IsZero() {
				m.CreatedAt = now
			}
			if m.UpdatedAt.IsZero() {
				m.UpdatedAt = now
			}
			tagsJSON, relatedJSON, err := marshalLists(m)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, insertSQL,
				m.ID, m.Fact, tagsJSON, m.Pinned, relatedJSON,
				nullableTime(m.ExpiresAt), m.CreatedAt, m.UpdatedAt,
				encodeVector(m.Embedding),
			); err != nil {
				return fmt.Errorf("sqlite: batch put %s: %w", m.ID, classify(err))
			}
		case storage.BatchDelete:
			// Deleting an absent id inside a batch is a no-op.
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM memories WHERE id = ?`, op.ID); err != nil {
				return fmt.Errorf("sqlite: batch delete %s: %w", op.ID, classify(err))
			}
		default:
			return fmt.Errorf("%w: unknown batch op kind %d", storage.ErrInvalidInput, op.Kind)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: failed to commit batch: %w", classify(err))
	}
	return nil
}

func (s *Store) exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM memories WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: failed to check existence: %w", classify(err))
	}
	return true, nil
}

// scanner abstracts *sql.Row and *sql.Rows for the shared scan path.
type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(sc scanner) (*types.Memory, error) {
	var (
		m            types.Memory
		tagsJSON     sql.NullString
		relatedJSON  sql.NullString
		expiresAt    sql.NullTime
		embeddingRaw []byte
	)
	err := sc.Scan(
		&m.ID, &m.Fact, &tagsJSON, &m.Pinned, &relatedJSON,
		&expiresAt, &m.CreatedAt, &m.UpdatedAt, &embeddingRaw,
	)
	if err != nil {
		return nil, err
	}

	// Tolerate malformed stored JSON rather than failing the whole read.
	if tagsJSON.Valid && tagsJSON.String != "" {
		_ = json.Unmarshal([]byte(tagsJSON.String), &m.Tags)
	}
	if relatedJSON.Valid && relatedJSON.String != "" {
		_ = json.Unmarshal([]byte(relatedJSON.String), &m.RelatedTo)
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		m.ExpiresAt = &t
	}
	m.Embedding = decodeVector(embeddingRaw)
	return &m, nil
}

func scanMemories(rows *sql.Rows) ([]*types.Memory, error) {
	var memories []*types.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan memory: %w", err)
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

func marshalLists(m *types.Memory) (tags, related any, err error) {
	tags, related = nil, nil
	if len(m.Tags) > 0 {
		b, err := json.Marshal(m.Tags)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: marshal tags: %w", err)
		}
		tags = string(b)
	}
	if len(m.RelatedTo) > 0 {
		b, err := json.Marshal(m.RelatedTo)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: marshal related_to: %w", err)
		}
		related = string(b)
	}
	return tags, related, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// encodeVector serialises an embedding as little-endian float32 bytes.
func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

// cosineDistance returns 1 - cosine similarity. A zero-magnitude vector is
// treated as maximally distant.
func cosineDistance(a, b []float32) float64 {
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(magA)*math.Sqrt(magB))
}
