// Package models defines the domain types for NoteMesh.
package models

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Note is a user-owned document. Only the owner mutates it; other users
// reach it through Share grants.
type Note struct {
	ID           uuid.UUID  `json:"id"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	OwnerID      uuid.UUID  `json:"owner_id"`
	Tags         []string   `json:"tags"`
	Hyperlinks   []string   `json:"hyperlinks,omitempty"`
	ViewCount    int        `json:"view_count"`
	LastViewedAt *time.Time `json:"last_viewed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsOwnedBy reports whether userID owns the note.
func (n *Note) IsOwnedBy(userID uuid.UUID) bool {
	return n.OwnerID == userID
}

// Preview returns the first 200 characters of the content, with an
// ellipsis when truncated. Counting is per rune so multibyte content
// is never cut mid-character.
func (n *Note) Preview() string {
	const max = 200
	if utf8.RuneCountInString(n.Content) <= max {
		return n.Content
	}
	return string([]rune(n.Content)[:max]) + "..."
}

// Tag is a normalized (trimmed, lower-cased) label shared across notes.
type Tag struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	UsageCount int       `json:"usage_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// User is the minimal account record consumed for owner enrichment.
// Registration and credentials live in the external identity service.
type User struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}
