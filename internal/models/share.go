package models

import (
	"time"

	"github.com/google/uuid"
)

// SharePermission is the access level a share grants its recipient.
type SharePermission string

const (
	PermissionRead  SharePermission = "read"
	PermissionWrite SharePermission = "write"
)

// Valid reports whether p is a known permission level.
func (p SharePermission) Valid() bool {
	return p == PermissionRead || p == PermissionWrite
}

// ShareStatus is the lifecycle state of a share.
type ShareStatus string

const (
	ShareActive  ShareStatus = "active"
	ShareExpired ShareStatus = "expired"
	ShareRevoked ShareStatus = "revoked"
	SharePending ShareStatus = "pending"
)

// Share grants one recipient read or write access to one note. At most
// one share exists per (note, recipient) pair.
type Share struct {
	ID             uuid.UUID       `json:"id"`
	NoteID         uuid.UUID       `json:"note_id"`
	SharedByID     uuid.UUID       `json:"shared_by_user_id"`
	SharedWithID   uuid.UUID       `json:"shared_with_user_id"`
	Permission     SharePermission `json:"permission"`
	Status         ShareStatus     `json:"status"`
	Message        string          `json:"message,omitempty"`
	SharedAt       time.Time       `json:"shared_at"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty"`
	LastAccessedAt *time.Time      `json:"last_accessed_at,omitempty"`
	AccessCount    int             `json:"access_count"`
}

// IsExpired reports whether the share's expiry lies in the past.
// Expiry is derived from ExpiresAt; a row may still carry status
// "active" after its deadline without ever being rewritten.
func (s *Share) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// IsActive reports whether the share currently grants access: status
// active and not past its optional expiry.
func (s *Share) IsActive(now time.Time) bool {
	return s.Status == ShareActive && !s.IsExpired(now)
}
