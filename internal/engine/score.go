package engine

import "strings"

// MatchThreshold is the minimum relevance at which a memory counts as a
// match; SmartSearch filters below it.
const MatchThreshold = 0.2

// scoring weights. An exact substring match is the only path to a full 1.0;
// word-level matching is clamped just below it, and a tag hit adds a bonus.
const (
	fullMatchWeight    = 0.8
	partialMatchWeight = 0.4
	wordMatchCeiling   = 0.95
	tagBoost           = 0.15
)

// relevance computes the lexical match strength in [0, 1] between a query
// and a memory's fact text plus tags.
func relevance(fact, query string, tags []string) float64 {
	factLower := strings.ToLower(fact)
	queryLower := strings.ToLower(strings.TrimSpace(query))
	if queryLower == "" {
		return 0
	}

	// Exact substring short-circuit.
	if strings.Contains(factLower, queryLower) {
		return 1.0
	}

	queryWords := strings.Fields(queryLower)
	if len(queryWords) == 0 {
		return 0
	}

	// The fact's word set includes its tags, so tag-only matches still score.
	factWords := strings.Fields(factLower)
	for _, t := range tags {
		factWords = append(factWords, strings.ToLower(t))
	}
	wordSet := make(map[string]struct{}, len(factWords))
	for _, w := range factWords {
		wordSet[w] = struct{}{}
	}

	fullMatches := 0
	partialCredit := 0.0
	for _, qw := range queryWords {
		if _, ok := wordSet[qw]; ok {
			fullMatches++
			continue
		}
		best := 0.0
		for _, fw := range factWords {
			if strings.Contains(fw, qw) {
				if r := float64(len(qw)) / float64(len(fw)); r > best {
					best = r
				}
			}
			if strings.Contains(qw, fw) {
				if r := float64(len(fw)) / float64(len(qw)); r > best {
					best = r
				}
			}
		}
		partialCredit += best
	}

	n := float64(len(queryWords))
	score := (float64(fullMatches)/n)*fullMatchWeight + (partialCredit/n)*partialMatchWeight
	if score > wordMatchCeiling {
		score = wordMatchCeiling
	}

	if tagHit(queryWords, tags) {
		score += tagBoost
		if score > 1.0 {
			score = 1.0
		}
	}
	return score
}

// tagHit reports whether any query word appears as a substring of any tag.
func tagHit(queryWords []string, tags []string) bool {
	for _, t := range tags {
		tl := strings.ToLower(t)
		for _, qw := range queryWords {
			if strings.Contains(tl, qw) {
				return true
			}
		}
	}
	return false
}
