// Package access holds the pure visibility and tag-filter predicates.
// Nothing here performs I/O; callers supply the note and share snapshots.
package access

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/notemesh/internal/models"
)

// Visible reports whether user may read note given the note's share
// rows. A note is visible to its owner, or to the recipient of a share
// that is active and not past its expiry. The predicate fails closed:
// nil notes are never visible.
func Visible(userID uuid.UUID, note *models.Note, shares []models.Share, now time.Time) bool {
	if note == nil {
		return false
	}
	if note.OwnerID == userID {
		return true
	}
	for i := range shares {
		s := &shares[i]
		if s.NoteID == note.ID && s.SharedWithID == userID && s.IsActive(now) {
			return true
		}
	}
	return false
}

// CanWrite reports whether user may mutate note. Owners always can;
// recipients need an active share with write permission.
func CanWrite(userID uuid.UUID, note *models.Note, shares []models.Share, now time.Time) bool {
	if note == nil {
		return false
	}
	if note.OwnerID == userID {
		return true
	}
	for i := range shares {
		s := &shares[i]
		if s.NoteID == note.ID && s.SharedWithID == userID && s.IsActive(now) && s.Permission == models.PermissionWrite {
			return true
		}
	}
	return false
}

// MatchesTags implements the ANY-of tag filter: the note matches when
// its tag set intersects the filter at all. An empty filter matches
// every note. Filter tags are compared as-is against stored tag names,
// which are already normalized at write time; callers normalize input
// with NormalizeTags first.
func MatchesTags(noteTags []string, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(noteTags))
	for _, t := range noteTags {
		set[t] = struct{}{}
	}
	for _, f := range filter {
		if _, ok := set[f]; ok {
			return true
		}
	}
	return false
}

// NormalizeTag trims and lower-cases a tag name. Returns "" for names
// that are empty after trimming.
func NormalizeTag(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeTags normalizes every name, dropping empties and duplicates
// while preserving first-seen order.
func NormalizeTags(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		t := NormalizeTag(n)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
