package sqlite

// Schema is the complete SQLite schema. All statements are idempotent so the
// schema can be (re)applied on every open.
//
// tags and related_to are JSON arrays; embedding is a little-endian float32
// blob. expires_at NULL means the memory never expires.
const Schema = `
CREATE TABLE IF NOT EXISTS memories (
	id          TEXT PRIMARY KEY,
	fact        TEXT NOT NULL,
	tags        TEXT,
	pinned      INTEGER NOT NULL DEFAULT 0,
	related_to  TEXT,
	expires_at  TIMESTAMP,
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL,
	embedding   BLOB
);

CREATE INDEX IF NOT EXISTS idx_memories_created_at ON memories(created_at);
CREATE INDEX IF NOT EXISTS idx_memories_expires_at ON memories(expires_at)
	WHERE expires_at IS NOT NULL;
`
