package postgres

// Schema is the base PostgreSQL schema. All statements are idempotent.
//
// The embedding is always stored as little-endian float32 BYTEA so the store
// works on servers without pgvector; when the extension is present an
// additional vector column is added (MigrationPgvector) for indexed
// cosine-distance queries.
const Schema = `
CREATE TABLE IF NOT EXISTS memories (
	id          TEXT PRIMARY KEY,
	fact        TEXT NOT NULL,
	tags        JSONB,
	pinned      BOOLEAN NOT NULL DEFAULT FALSE,
	related_to  JSONB,
	expires_at  TIMESTAMPTZ,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL,
	embedding   BYTEA
);

CREATE INDEX IF NOT EXISTS idx_memories_created_at ON memories (created_at);
CREATE INDEX IF NOT EXISTS idx_memories_expires_at ON memories (expires_at)
	WHERE expires_at IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_memories_tags ON memories USING GIN (tags);
`

// MigrationPgvector adds the vector column used for cosine-distance search.
// Applied only when the pgvector extension is available.
const MigrationPgvector = `
ALTER TABLE memories ADD COLUMN IF NOT EXISTS embedding_vec vector;
`
