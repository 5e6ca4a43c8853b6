// Package search implements relevance scoring, tag suggestions, and the
// cache-first orchestration of note search.
package search

import "strings"

// Scoring weights. Each query term lands in exactly one bucket: tags
// are checked first, then title, then content. A term never counts
// twice.
const (
	tagWeight     = 3
	titleWeight   = 2
	contentWeight = 1
)

// Score computes the relevance of a document for the given terms.
// Terms must already be lower-cased; matching is substring-based
// against the lower-cased tag text, title, and content. The total is
// the sum of the per-term bucket weights.
func Score(terms []string, title, content, tagText string) int {
	lowTitle := strings.ToLower(title)
	lowContent := strings.ToLower(content)
	lowTags := strings.ToLower(tagText)

	score := 0
	for _, term := range terms {
		switch {
		case strings.Contains(lowTags, term):
			score += tagWeight
		case strings.Contains(lowTitle, term):
			score += titleWeight
		case strings.Contains(lowContent, term):
			score += contentWeight
		}
	}
	return score
}

// Terms splits a free-text query into lower-cased whitespace-separated
// terms. A bare "*" is treated as an empty query.
func Terms(query string) []string {
	q := strings.TrimSpace(query)
	if q == "" || q == "*" {
		return nil
	}
	return strings.Fields(strings.ToLower(q))
}
