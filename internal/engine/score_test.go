package engine

import (
	"math"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRelevanceExactSubstring(t *testing.T) {
	if got := relevance("The capital of France is Paris", "capital of france", nil); got != 1.0 {
		t.Errorf("exact substring: got %v, want 1.0", got)
	}
	// Case-insensitive in both directions.
	if got := relevance("I LIKE COFFEE", "like coffee", nil); got != 1.0 {
		t.Errorf("case-insensitive: got %v, want 1.0", got)
	}
}

func TestRelevanceEmptyQuery(t *testing.T) {
	if got := relevance("anything", "", nil); got != 0 {
		t.Errorf("empty query: got %v, want 0", got)
	}
	if got := relevance("anything", "   ", nil); got != 0 {
		t.Errorf("whitespace query: got %v, want 0", got)
	}
}

func TestRelevanceFullWordMatches(t *testing.T) {
	// Both words present verbatim but not as one contiguous substring:
	// full-match credit only, below the exact-match score.
	got := relevance("paris is the capital", "capital paris", nil)
	if !approx(got, 0.8) {
		t.Errorf("two full matches: got %v, want 0.8", got)
	}
}

func TestRelevancePartialBelowFull(t *testing.T) {
	full := relevance("paris is the capital", "capital paris", nil)
	// "golang" is not a substring of the fact, but it contains the fact
	// word "go" so it earns partial credit only.
	partial := relevance("go tooling setup", "golang", nil)
	if partial <= 0 {
		t.Fatalf("partial match: got %v, want > 0", partial)
	}
	if partial >= full {
		t.Errorf("partial %v should score below full %v", partial, full)
	}
}

func TestRelevanceTagsCountAsWords(t *testing.T) {
	// The query word only appears as a tag: full word credit plus the
	// tag boost.
	got := relevance("buy milk", "groceries", []string{"groceries"})
	if !approx(got, 0.95) {
		t.Errorf("tag word with boost: got %v, want 0.95", got)
	}
	if got > 1.0 {
		t.Errorf("boosted score %v exceeds 1.0", got)
	}
}

func TestRelevanceTagBoost(t *testing.T) {
	without := relevance("service rollout friday", "rollout deploy", nil)
	with := relevance("service rollout friday", "rollout deploy", []string{"deployment"})
	if with <= without {
		t.Errorf("tag boost: %v should exceed %v", with, without)
	}
	if with > 1.0 {
		t.Errorf("boosted score %v exceeds 1.0", with)
	}
}

func TestRelevanceNoMatch(t *testing.T) {
	got := relevance("the quick brown fox", "zeppelin", nil)
	if got >= MatchThreshold {
		t.Errorf("unrelated query: got %v, want below threshold %v", got, MatchThreshold)
	}
}
