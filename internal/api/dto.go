package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/starford/notemesh/internal/models"
	"github.com/starford/notemesh/internal/noteservice"
	"github.com/starford/notemesh/internal/search"
)

// NoteRequest is the request body for creating or updating a note.
type NoteRequest struct {
	Title   string   `json:"title" example:"Meeting notes" validate:"required"`
	Content string   `json:"content" example:"Agenda for #planning" validate:"required"`
	Tags    []string `json:"tags" example:"work,planning"`
}

// ShareRequest is the request body for sharing a note.
type ShareRequest struct {
	UserID     uuid.UUID  `json:"user_id" validate:"required"`
	Permission string     `json:"permission" example:"read" validate:"required"`
	Message    string     `json:"message,omitempty" example:"Please review"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// CreateUserRequest is the request body for registering a user.
type CreateUserRequest struct {
	Username    string `json:"username" example:"jsmith" validate:"required"`
	DisplayName string `json:"display_name" example:"J. Smith"`
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// SearchResponse is the paginated search payload (aliased from the domain layer).
type SearchResponse = search.Response

// SuggestionsResponse wraps tag suggestions.
type SuggestionsResponse struct {
	Suggestions []string `json:"suggestions" validate:"required"`
}

// StatsResponse is the aggregate search statistics payload.
type StatsResponse = search.Stats

// ShareListResponse wraps share listings.
type ShareListResponse struct {
	Shares []models.Share `json:"shares" validate:"required"`
	Total  int            `json:"total" example:"3" validate:"required"`
}
