package types

import (
	"encoding/json"
	"time"
)

// DecodeDocument converts an untyped document (as unmarshalled from an import
// blob or a backend JSON column) into a Memory, applying a default for every
// optional, missing, or malformed field instead of failing: a non-array tags
// field becomes nil, a non-boolean pinned becomes false, absent timestamps
// stay zero. Only a document that is not a JSON object at all is rejected.
func DecodeDocument(data []byte) (*Memory, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	m := &Memory{
		ID:        decodeString(raw["id"]),
		Fact:      decodeString(raw["fact"]),
		Tags:      decodeStrings(raw["tags"]),
		Pinned:    decodeBool(raw["pinned"]),
		RelatedTo: decodeStrings(raw["relatedTo"]),
		ExpiresAt: decodeTimePtr(raw["expiresAt"]),
		CreatedAt: decodeTime(raw["createdAt"]),
		UpdatedAt: decodeTime(raw["updatedAt"]),
		Embedding: decodeFloats(raw["embedding"]),
	}
	return m, nil
}

// UnmarshalJSON decodes an import envelope defensively. Each memory document
// goes through DecodeDocument, so one malformed field defaults instead of
// rejecting the whole envelope. An entry that is not a JSON object at all
// decodes as nil and is reported as a per-item failure by the import.
func (e *Export) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Version = decodeString(raw["version"])
	e.ExportedAt = decodeTime(raw["exportedAt"])
	e.UserID = decodeString(raw["userId"])
	e.Count = decodeInt(raw["count"])

	e.Memories = nil
	var docs []json.RawMessage
	if raw["memories"] != nil && json.Unmarshal(raw["memories"], &docs) != nil {
		return nil
	}
	for _, doc := range docs {
		m, err := DecodeDocument(doc)
		if err != nil {
			e.Memories = append(e.Memories, nil)
			continue
		}
		e.Memories = append(e.Memories, m)
	}
	return nil
}

func decodeString(raw json.RawMessage) string {
	var s string
	if raw == nil || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func decodeBool(raw json.RawMessage) bool {
	var b bool
	if raw == nil || json.Unmarshal(raw, &b) != nil {
		return false
	}
	return b
}

func decodeInt(raw json.RawMessage) int {
	var n int
	if raw == nil || json.Unmarshal(raw, &n) != nil {
		return 0
	}
	return n
}

func decodeStrings(raw json.RawMessage) []string {
	var ss []string
	if raw == nil || json.Unmarshal(raw, &ss) != nil {
		return nil
	}
	return ss
}

func decodeFloats(raw json.RawMessage) []float32 {
	var fs []float32
	if raw == nil || json.Unmarshal(raw, &fs) != nil {
		return nil
	}
	return fs
}

func decodeTime(raw json.RawMessage) time.Time {
	var t time.Time
	if raw == nil || json.Unmarshal(raw, &t) != nil {
		return time.Time{}
	}
	return t
}

func decodeTimePtr(raw json.RawMessage) *time.Time {
	t := decodeTime(raw)
	if t.IsZero() {
		return nil
	}
	return &t
}
