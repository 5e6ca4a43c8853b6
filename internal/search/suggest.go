package search

import (
	"sort"
	"strings"
)

// RankTagSuggestions filters vocabulary down to tags containing query
// (case-insensitive) and orders them for autocomplete: exact matches
// first, then prefix matches, then substring matches; within a class,
// shorter tags before longer, then lexical. The first limit entries
// are returned.
func RankTagSuggestions(vocabulary []string, query string, limit int) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []string{}
	}
	if limit <= 0 {
		limit = 10
	}

	var matched []string
	for _, tag := range vocabulary {
		if strings.Contains(strings.ToLower(tag), q) {
			matched = append(matched, tag)
		}
	}

	class := func(tag string) int {
		low := strings.ToLower(tag)
		switch {
		case low == q:
			return 0
		case strings.HasPrefix(low, q):
			return 1
		default:
			return 2
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		ci, cj := class(matched[i]), class(matched[j])
		if ci != cj {
			return ci < cj
		}
		if len(matched[i]) != len(matched[j]) {
			return len(matched[i]) < len(matched[j])
		}
		return matched[i] < matched[j]
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}
	if matched == nil {
		matched = []string{}
	}
	return matched
}
