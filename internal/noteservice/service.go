package noteservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/notemesh/internal/access"
	"github.com/starford/notemesh/internal/apperr"
	"github.com/starford/notemesh/internal/models"
	"github.com/starford/notemesh/internal/parser"
	"github.com/starford/notemesh/internal/searchidx"
	"github.com/starford/notemesh/internal/store"
)

// NoteDetail is the full representation of a note as served to one
// particular user.
type NoteDetail struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Tags       []string  `json:"tags"`
	Hyperlinks []string  `json:"hyperlinks"`
	OwnerID    uuid.UUID `json:"owner_id"`
	IsOwned    bool      `json:"is_owned"`
	CanEdit    bool      `json:"can_edit"`
	ViewCount  int       `json:"view_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Preview   string    `json:"content_preview"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteInput carries the writable fields of a note.
type NoteInput struct {
	Title   string
	Content string
	Tags    []string
}

// ShareInput carries the parameters of a share grant.
type ShareInput struct {
	NoteID     uuid.UUID
	WithUserID uuid.UUID
	Permission models.SharePermission
	Message    string
	ExpiresAt  *time.Time
}

// Service coordinates the store, the secondary index and the result
// cache. Index and cache maintenance is best-effort: failures are
// logged, never surfaced, because the store remains authoritative.
type Service struct {
	store  *store.Store
	index  *searchidx.Index
	cache  *searchidx.Cache
	logger *slog.Logger
}

// NewService creates a new note service. index and cache may be nil
// when Redis is not configured.
func NewService(st *store.Store, index *searchidx.Index, cache *searchidx.Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, index: index, cache: cache, logger: logger}
}

// CreateNote stores a new note. Tags are the union of the explicit
// tags and any #hashtags found in the content; hyperlinks are extracted
// from the content.
func (s *Service) CreateNote(ctx context.Context, ownerID uuid.UUID, in NoteInput) (*NoteDetail, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	extracted := parser.Extract(in.Content)
	tags := access.NormalizeTags(parser.MergeUnique(in.Tags, extracted.Tags))

	now := time.Now().UTC()
	note := &models.Note{
		ID:         uuid.New(),
		Title:      in.Title,
		Content:    in.Content,
		OwnerID:    ownerID,
		Tags:       tags,
		Hyperlinks: extracted.Hyperlinks,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateNote(ctx, note); err != nil {
		return nil, fmt.Errorf("noteservice: create note: %w", err)
	}
	if err := s.store.SetNoteTags(ctx, note.ID, ownerID, tags); err != nil {
		return nil, fmt.Errorf("noteservice: set tags: %w", err)
	}

	s.maintainIndex(ctx, note)
	s.invalidate(ctx, ownerID)

	return s.detail(note, ownerID, true), nil
}

// UpdateNote rewrites a note's content. The owner can always write;
// a recipient needs an active write share. A reader without write
// permission gets a forbidden error, anyone else sees not-found.
func (s *Service) UpdateNote(ctx context.Context, noteID, userID uuid.UUID, in NoteInput) (*NoteDetail, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	acc, err := s.store.CheckAccess(ctx, noteID, userID)
	if err != nil {
		return nil, fmt.Errorf("noteservice: check access: %w", err)
	}
	if !acc.CanRead {
		return nil, apperr.ErrNotFound
	}
	if !acc.CanWrite {
		return nil, apperr.ErrForbidden
	}

	note, err := s.store.FindByID(ctx, noteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("noteservice: load note: %w", err)
	}

	extracted := parser.Extract(in.Content)
	tags := access.NormalizeTags(parser.MergeUnique(in.Tags, extracted.Tags))

	note.Title = in.Title
	note.Content = in.Content
	note.Tags = tags
	note.Hyperlinks = extracted.Hyperlinks
	note.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateNote(ctx, note); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("noteservice: update note: %w", err)
	}
	if err := s.store.SetNoteTags(ctx, note.ID, note.OwnerID, tags); err != nil {
		return nil, fmt.Errorf("noteservice: set tags: %w", err)
	}

	s.maintainIndex(ctx, note)
	s.invalidate(ctx, note.OwnerID)
	if userID != note.OwnerID {
		s.invalidate(ctx, userID)
	}

	return s.detail(note, userID, true), nil
}

// DeleteNote removes a note. Only the owner may delete; a recipient
// with read access gets forbidden, everyone else not-found.
func (s *Service) DeleteNote(ctx context.Context, noteID, userID uuid.UUID) error {
	if err := s.store.DeleteNote(ctx, noteID, userID); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("noteservice: delete note: %w", err)
		}
		acc, accErr := s.store.CheckAccess(ctx, noteID, userID)
		if accErr == nil && acc.CanRead {
			return apperr.ErrForbidden
		}
		return apperr.ErrNotFound
	}

	if s.index != nil {
		if err := s.index.Remove(ctx, userID, noteID); err != nil {
			s.logger.Warn("noteservice: index removal degraded", "note_id", noteID, "error", err)
		}
	}
	s.invalidate(ctx, userID)
	return nil
}

// GetNote fetches a single note for a user. The owner path skips the
// share check entirely; everyone else goes through it. Any note the
// user cannot read is reported as not-found, including when the share
// lookup itself fails.
func (s *Service) GetNote(ctx context.Context, noteID, userID uuid.UUID) (*NoteDetail, error) {
	note, err := s.store.FindByIDForOwner(ctx, noteID, userID)
	if err == nil {
		s.recordView(ctx, noteID)
		return s.detail(note, userID, true), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("noteservice: load note: %w", err)
	}

	acc, err := s.store.CheckAccess(ctx, noteID, userID)
	if err != nil || !acc.CanRead {
		return nil, apperr.ErrNotFound
	}

	note, err = s.store.FindByID(ctx, noteID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}

	if err := s.store.RecordShareAccess(ctx, noteID, userID); err != nil {
		s.logger.Warn("noteservice: share access bookkeeping failed", "note_id", noteID, "error", err)
	}
	s.recordView(ctx, noteID)

	return s.detail(note, userID, acc.CanWrite), nil
}

// ListNotes returns the user's own notes, paginated, optionally
// narrowed to notes carrying any of the given tags.
func (s *Service) ListNotes(ctx context.Context, ownerID uuid.UUID, page, perPage int, tags []string) ([]NoteListItem, int, error) {
	notes, total, err := s.store.ListForOwner(ctx, ownerID, page, perPage, access.NormalizeTags(tags))
	if err != nil {
		return nil, 0, fmt.Errorf("noteservice: list notes: %w", err)
	}

	items := make([]NoteListItem, len(notes))
	for i, n := range notes {
		items[i] = NoteListItem{
			ID:        n.ID,
			Title:     n.Title,
			Preview:   n.Preview(),
			Tags:      nonNilSlice(n.Tags),
			CreatedAt: n.CreatedAt,
			UpdatedAt: n.UpdatedAt,
		}
	}
	return items, total, nil
}

// ShareNote grants or updates a recipient's access to one of the
// caller's notes. Sharing with yourself or with an unknown user is
// rejected; a second share to the same recipient updates in place.
func (s *Service) ShareNote(ctx context.Context, ownerID uuid.UUID, in ShareInput) (*models.Share, error) {
	if !in.Permission.Valid() {
		return nil, fmt.Errorf("noteservice: permission %q: %w", in.Permission, apperr.ErrValidation)
	}
	if in.WithUserID == ownerID {
		return nil, fmt.Errorf("noteservice: cannot share a note with yourself: %w", apperr.ErrValidation)
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(time.Now().UTC()) {
		return nil, fmt.Errorf("noteservice: expiry must lie in the future: %w", apperr.ErrValidation)
	}

	if _, err := s.store.FindUserByID(ctx, in.WithUserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("noteservice: recipient: %w", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("noteservice: recipient lookup: %w", err)
	}

	if _, err := s.store.FindByIDForOwner(ctx, in.NoteID, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("noteservice: note lookup: %w", err)
	}

	sh := &models.Share{
		ID:           uuid.New(),
		NoteID:       in.NoteID,
		SharedByID:   ownerID,
		SharedWithID: in.WithUserID,
		Permission:   in.Permission,
		Status:       models.ShareActive,
		Message:      in.Message,
		SharedAt:     time.Now().UTC(),
		ExpiresAt:    in.ExpiresAt,
	}
	if err := s.store.UpsertShare(ctx, sh); err != nil {
		return nil, fmt.Errorf("noteservice: upsert share: %w", err)
	}

	s.invalidate(ctx, ownerID)
	s.invalidate(ctx, in.WithUserID)
	return sh, nil
}

// RevokeShare withdraws a recipient's access to one of the caller's
// notes.
func (s *Service) RevokeShare(ctx context.Context, ownerID, noteID, withID uuid.UUID) error {
	if err := s.store.RevokeShare(ctx, noteID, ownerID, withID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("noteservice: revoke share: %w", err)
	}
	s.invalidate(ctx, ownerID)
	s.invalidate(ctx, withID)
	return nil
}

// SharesGiven lists the shares the user has granted.
func (s *Service) SharesGiven(ctx context.Context, ownerID uuid.UUID) ([]models.Share, error) {
	shares, err := s.store.ListGivenByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("noteservice: shares given: %w", err)
	}
	return nonNilSlice(shares), nil
}

// SharesReceived lists the shares granted to the user.
func (s *Service) SharesReceived(ctx context.Context, userID uuid.UUID) ([]models.Share, error) {
	shares, err := s.store.ListReceived(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("noteservice: shares received: %w", err)
	}
	return nonNilSlice(shares), nil
}

// CreateUser registers a user record. Usernames are unique; a taken
// name reports an already-exists error.
func (s *Service) CreateUser(ctx context.Context, username, displayName string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("noteservice: username must not be empty: %w", apperr.ErrValidation)
	}
	if displayName == "" {
		displayName = username
	}

	user := &models.User{
		ID:          uuid.New(),
		Username:    username,
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("noteservice: create user: %w", err)
	}
	return user, nil
}

// GetUser returns a user record.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.store.FindUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("noteservice: find user: %w", err)
	}
	return user, nil
}

// maintainIndex upserts the note into the secondary index. Failures
// only cost freshness, so they are logged and absorbed.
func (s *Service) maintainIndex(ctx context.Context, note *models.Note) {
	if s.index == nil {
		return
	}
	if err := s.index.Upsert(ctx, note); err != nil {
		s.logger.Warn("noteservice: index upsert degraded", "note_id", note.ID, "error", err)
	}
}

// invalidate drops a user's cached search payloads.
func (s *Service) invalidate(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateUser(ctx, userID); err != nil {
		s.logger.Warn("noteservice: cache invalidation degraded", "user_id", userID, "error", err)
	}
}

func (s *Service) recordView(ctx context.Context, noteID uuid.UUID) {
	if err := s.store.RecordNoteView(ctx, noteID); err != nil {
		s.logger.Warn("noteservice: view bookkeeping failed", "note_id", noteID, "error", err)
	}
}

func (s *Service) detail(note *models.Note, userID uuid.UUID, canEdit bool) *NoteDetail {
	return &NoteDetail{
		ID:         note.ID,
		Title:      note.Title,
		Content:    note.Content,
		Tags:       nonNilSlice(note.Tags),
		Hyperlinks: nonNilSlice(note.Hyperlinks),
		OwnerID:    note.OwnerID,
		IsOwned:    note.IsOwnedBy(userID),
		CanEdit:    canEdit,
		ViewCount:  note.ViewCount,
		CreatedAt:  note.CreatedAt,
		UpdatedAt:  note.UpdatedAt,
	}
}

func validateInput(in NoteInput) error {
	if in.Title == "" {
		return fmt.Errorf("noteservice: title must not be empty: %w", apperr.ErrValidation)
	}
	if in.Content == "" {
		return fmt.Errorf("noteservice: content must not be empty: %w", apperr.ErrValidation)
	}
	return nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
