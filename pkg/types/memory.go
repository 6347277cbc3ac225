// Package types defines the core data model for Factum.
// A Memory is the single persisted entity: a short free-text fact with
// tags, an optional expiry, optional graph links to other memories, and an
// optional embedding vector for semantic search.
package types

import (
	"strings"
	"time"
)

// Memory is one stored fact. Field names follow the export wire format,
// which doubles as the import input shape.
type Memory struct {
	ID        string     `json:"id"`                  // assigned by the backing store on creation
	Fact      string     `json:"fact"`                // free text, length-limited by the tool layer
	Tags      []string   `json:"tags,omitempty"`      // always stored lowercase
	Pinned    bool       `json:"pinned"`              // pinned memories list before unpinned ones
	RelatedTo []string   `json:"relatedTo,omitempty"` // symmetric: if A lists B, B lists A
	ExpiresAt *time.Time `json:"expiresAt,omitempty"` // nil = permanent
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	Embedding []float32  `json:"embedding,omitempty"` // present only when an embedding provider is configured
}

// Expired reports whether the memory is logically deleted at the given
// instant. Expired memories are invisible to every read path even though the
// underlying record survives until the next cleanup sweep.
func (m *Memory) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && !m.ExpiresAt.After(now)
}

// Clone returns a deep copy. The engine hands clones to callers so that a
// cached snapshot is never mutated through a returned pointer.
func (m *Memory) Clone() *Memory {
	c := *m
	if m.Tags != nil {
		c.Tags = append([]string(nil), m.Tags...)
	}
	if m.RelatedTo != nil {
		c.RelatedTo = append([]string(nil), m.RelatedTo...)
	}
	if m.ExpiresAt != nil {
		t := *m.ExpiresAt
		c.ExpiresAt = &t
	}
	if m.Embedding != nil {
		c.Embedding = append([]float32(nil), m.Embedding...)
	}
	return &c
}

// NormalizeTags lowercases and trims a tag list, dropping empty and
// whitespace-only entries. Duplicates are accepted as-is; the store does not
// deduplicate. Applied on every write path (add, update, bulk add, import).
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ExportVersion is the format version written into export envelopes.
const ExportVersion = "1.0"

// Export is the envelope produced by ExportAll and accepted by ImportAll.
type Export struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`
	UserID     string    `json:"userId"`
	Count      int       `json:"count"`
	Memories   []*Memory `json:"memories"`
}

// Stats summarises the collection. Zero-valued for an empty collection.
type Stats struct {
	Count     int        `json:"count"`
	OldestAt  *time.Time `json:"oldestAt,omitempty"`
	NewestAt  *time.Time `json:"newestAt,omitempty"`
	UserID    string     `json:"userId"`
	Generated time.Time  `json:"generated"`
}
