package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Work ", "HOME", "", "  ", "home"})
	want := []string{"work", "home", "home"}
	if len(got) != len(want) {
		t.Fatalf("NormalizeTags: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("NormalizeTags[%d]: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNormalizeTagsAllEmpty(t *testing.T) {
	if got := NormalizeTags([]string{"", "   "}); got != nil {
		t.Errorf("NormalizeTags: got %v, want nil", got)
	}
	if got := NormalizeTags(nil); got != nil {
		t.Errorf("NormalizeTags(nil): got %v, want nil", got)
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name      string
		expiresAt *time.Time
		want      bool
	}{
		{"permanent", nil, false},
		{"past", &past, true},
		{"future", &future, false},
		{"exactly now", &now, true},
	}
	for _, tc := range cases {
		m := &Memory{ExpiresAt: tc.expiresAt}
		if got := m.Expired(now); got != tc.want {
			t.Errorf("%s: Expired() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	m := &Memory{
		ID:        "a",
		Fact:      "original",
		Tags:      []string{"x"},
		RelatedTo: []string{"b"},
		ExpiresAt: &exp,
		Embedding: []float32{0.1, 0.2},
	}
	c := m.Clone()
	c.Tags[0] = "mutated"
	c.RelatedTo[0] = "mutated"
	c.Embedding[0] = 9
	*c.ExpiresAt = exp.Add(time.Hour)

	if m.Tags[0] != "x" || m.RelatedTo[0] != "b" || m.Embedding[0] != 0.1 {
		t.Error("Clone shares slice storage with the original")
	}
	if !m.ExpiresAt.Equal(exp) {
		t.Error("Clone shares ExpiresAt pointer with the original")
	}
}

func TestDecodeDocumentDefaults(t *testing.T) {
	// tags is a string instead of an array, pinned is a number, timestamps
	// are absent. Decoding must not fail and must apply defaults.
	doc := []byte(`{"id":"m1","fact":"hello","tags":"not-an-array","pinned":1}`)
	m, err := DecodeDocument(doc)
	if err != nil {
		t.Fatalf("DecodeDocument() failed: %v", err)
	}
	if m.ID != "m1" || m.Fact != "hello" {
		t.Errorf("got id=%q fact=%q", m.ID, m.Fact)
	}
	if m.Tags != nil {
		t.Errorf("malformed tags: got %v, want nil", m.Tags)
	}
	if m.Pinned {
		t.Error("malformed pinned: got true, want false")
	}
	if m.ExpiresAt != nil {
		t.Errorf("absent expiresAt: got %v, want nil", m.ExpiresAt)
	}
	if !m.CreatedAt.IsZero() {
		t.Errorf("absent createdAt: got %v, want zero", m.CreatedAt)
	}
}

func TestDecodeDocumentWellFormed(t *testing.T) {
	doc := []byte(`{"id":"m2","fact":"f","tags":["a","b"],"pinned":true,
		"relatedTo":["m1"],"createdAt":"2025-01-02T03:04:05Z",
		"embedding":[0.5,-0.5]}`)
	m, err := DecodeDocument(doc)
	if err != nil {
		t.Fatalf("DecodeDocument() failed: %v", err)
	}
	if len(m.Tags) != 2 || m.Tags[0] != "a" {
		t.Errorf("tags: got %v", m.Tags)
	}
	if !m.Pinned {
		t.Error("pinned: got false, want true")
	}
	if len(m.RelatedTo) != 1 || m.RelatedTo[0] != "m1" {
		t.Errorf("relatedTo: got %v", m.RelatedTo)
	}
	if m.CreatedAt.Year() != 2025 {
		t.Errorf("createdAt: got %v", m.CreatedAt)
	}
	if len(m.Embedding) != 2 {
		t.Errorf("embedding: got %v", m.Embedding)
	}
}

func TestDecodeDocumentRejectsNonObject(t *testing.T) {
	if _, err := DecodeDocument([]byte(`[1,2,3]`)); err == nil {
		t.Error("DecodeDocument accepted a non-object document")
	}
}

func TestExportUnmarshalDefaultsMalformedFields(t *testing.T) {
	// One entry carries a string pinned field. The envelope must still
	// decode, defaulting the bad field instead of failing wholesale.
	blob := []byte(`{"version":"1.0","userId":"u1","count":2,"memories":[
		{"id":"a-1","fact":"good fact"},
		{"id":"a-2","fact":"other fact","pinned":"yes"}]}`)
	var e Export
	if err := json.Unmarshal(blob, &e); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	if e.Version != "1.0" || e.UserID != "u1" || e.Count != 2 {
		t.Errorf("envelope: got version=%q userId=%q count=%d", e.Version, e.UserID, e.Count)
	}
	if len(e.Memories) != 2 {
		t.Fatalf("memories: got %d, want 2", len(e.Memories))
	}
	if e.Memories[0].Fact != "good fact" {
		t.Errorf("memories[0].Fact = %q", e.Memories[0].Fact)
	}
	if e.Memories[1].Fact != "other fact" || e.Memories[1].Pinned {
		t.Errorf("memories[1]: got fact=%q pinned=%v, want defaulted pinned",
			e.Memories[1].Fact, e.Memories[1].Pinned)
	}
}

func TestExportUnmarshalNonObjectEntry(t *testing.T) {
	blob := []byte(`{"version":"1.0","memories":[42,{"id":"a-1","fact":"kept"}]}`)
	var e Export
	if err := json.Unmarshal(blob, &e); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	if len(e.Memories) != 2 {
		t.Fatalf("memories: got %d, want 2", len(e.Memories))
	}
	if e.Memories[0] != nil {
		t.Errorf("memories[0]: got %+v, want nil for a non-object entry", e.Memories[0])
	}
	if e.Memories[1] == nil || e.Memories[1].Fact != "kept" {
		t.Errorf("memories[1]: got %+v", e.Memories[1])
	}
}
