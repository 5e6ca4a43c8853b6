// Package parser extracts inline hashtags and hyperlinks from note content.
package parser

import (
	"regexp"
	"strings"
)

var (
	hashtagRe   = regexp.MustCompile(`(?:^|\s)#(\w+)`)
	hyperlinkRe = regexp.MustCompile(`https?://[^\s<>"'` + "`" + `|(){}\[\]]+`)
)

// Result holds what was extracted from a note body.
type Result struct {
	Tags       []string
	Hyperlinks []string
}

// Extract collects #hashtags and http(s) URLs from content. Both lists
// are deduplicated in first-seen order; tag names are returned raw and
// normalized later at the tag-write boundary.
func Extract(content string) Result {
	return Result{
		Tags:       extractTags(content),
		Hyperlinks: extractHyperlinks(content),
	}
}

// extractTags returns deduplicated inline #hashtag names.
func extractTags(content string) []string {
	matches := hashtagRe.FindAllStringSubmatch(content, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		t := m[1]
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// extractHyperlinks returns deduplicated http/https URLs. Trailing
// punctuation that commonly ends a sentence is stripped.
func extractHyperlinks(content string) []string {
	matches := hyperlinkRe.FindAllString(content, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, raw := range matches {
		u := strings.TrimRight(raw, ".,;:!?")
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// MergeUnique combines lists, dropping duplicates in first-seen order.
func MergeUnique(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, v := range list {
			if v == "" {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
