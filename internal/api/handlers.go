package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/starford/notemesh/internal/apperr"
	"github.com/starford/notemesh/internal/models"
	"github.com/starford/notemesh/internal/noteservice"
	"github.com/starford/notemesh/internal/search"
)

// Handler holds API route handlers.
type Handler struct {
	notes  *noteservice.Service
	search *search.Orchestrator
}

// NewHandler creates a new Handler.
func NewHandler(notes *noteservice.Service, orch *search.Orchestrator) *Handler {
	return &Handler{notes: notes, search: orch}
}

// noteID extracts and parses the note id path parameter.
func noteID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

// parseTags splits a comma-separated tag filter. A present-but-blank
// entry is a malformed filter and rejected outright.
func parseTags(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t == "" {
			return nil, fmt.Errorf("api: blank tag in filter: %w", apperr.ErrValidation)
		}
		tags = append(tags, t)
	}
	return tags, nil
}

// Search handles GET /api/search.
//
//	@Summary		Search accessible notes
//	@Tags			search
//	@Produce		json
//	@Param			q			query		string	false	"Search query, * or empty matches nothing"
//	@Param			tags		query		string	false	"Comma-separated tag filter (any-of)"
//	@Param			page		query		int		false	"Page number"
//	@Param			per_page	query		int		false	"Page size"
//	@Success		200			{object}	SearchResponse
//	@Failure		400			{object}	errResponse
//	@Failure		503			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
		return
	}
	q := r.URL.Query()
	tags, err := parseTags(q.Get("tags"))
	if err != nil {
		writeError(w, err)
		return
	}
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	resp, err := h.search.SearchNotes(r.Context(), userID, search.Request{
		Query:   q.Get("q"),
		Tags:    tags,
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Suggestions handles GET /api/search/suggestions.
//
//	@Summary		Suggest tags matching a partial query
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Partial tag text"
//	@Param			limit	query		int		false	"Max suggestions"
//	@Success		200		{object}	SuggestionsResponse
//	@Security		BearerAuth
//	@Router			/search/suggestions [get]
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	suggestions, err := h.search.SuggestTags(r.Context(), userID, r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuggestionsResponse{Suggestions: suggestions})
}

// Stats handles GET /api/search/stats.
//
//	@Summary		Aggregate statistics about the user's searchable notes
//	@Tags			search
//	@Produce		json
//	@Success		200	{object}	StatsResponse
//	@Security		BearerAuth
//	@Router			/search/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
		return
	}
	stats, err := h.search.SearchStats(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List the user's own notes
//	@Tags			notes
//	@Produce		json
//	@Param			page		query		int		false	"Page number"
//	@Param			per_page	query		int		false	"Page size"
//	@Param			tags		query		string	false	"Comma-separated tag filter (any-of)"
//	@Success		200			{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
		return
	}
	q := r.URL.Query()
	tags, err := parseTags(q.Get("tags"))
	if err != nil {
		writeError(w, err)
		return
	}
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	items, total, err := h.notes.ListNotes(r.Context(), userID, page, perPage, tags)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: total})
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		NoteRequest	true	"Note to create"
//	@Success		201		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	note, err := h.notes.CreateNote(r.Context(), userID, noteservice.NoteInput{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	NoteDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
		return
	}
	id, err := noteID(r)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	note, err := h.notes.GetNote(r.Context(), id, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// UpdateNote handles PUT /api/notes/{id}.
//
//	@Summary		Update a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Note id"
//	@Param			body	body		NoteRequest	true	"Updated note"
//	@Success		200		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Failure		403		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
		return
	}
	id, err := noteID(r)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	note, err := h.notes.UpdateNote(r.Context(), id, userID, noteservice.NoteInput{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		403	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
		return
	}
	id, err := noteID(r)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	if err := h.notes.DeleteNote(r.Context(), id, userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ShareNote handles POST /api/notes/{id}/share.
//
//	@Summary		Share a note with another user
//	@Tags			shares
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Note id"
//	@Param			body	body		ShareRequest	true	"Share grant"
//	@Success		201		{object}	models.Share
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/share [post]
func (h *Handler) ShareNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
		return
	}
	id, err := noteID(r)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	var req ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	share, err := h.notes.ShareNote(r.Context(), userID, noteservice.ShareInput{
		NoteID:     id,
		WithUserID: req.UserID,
		Permission: models.SharePermission(req.Permission),
		Message:    req.Message,
		ExpiresAt:  req.ExpiresAt,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, share)
}

// RevokeShare handles DELETE /api/notes/{id}/share/{userID}.
//
//	@Summary		Revoke a recipient's access to a note
//	@Tags			shares
//	@Param			id		path	string	true	"Note id"
//	@Param			userID	path	string	true	"Recipient user id"
//	@Success		204		"Share revoked"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/share/{userID} [delete]
func (h *Handler) RevokeShare(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
		return
	}
	id, err := noteID(r)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	withID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	if err := h.notes.RevokeShare(r.Context(), userID, id, withID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SharesGiven handles GET /api/shares/given.
//
//	@Summary		List shares the user has granted
//	@Tags			shares
//	@Produce		json
//	@Success		200	{object}	ShareListResponse
//	@Security		BearerAuth
//	@Router			/shares/given [get]
func (h *Handler) SharesGiven(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
		return
	}
	shares, err := h.notes.SharesGiven(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ShareListResponse{Shares: shares, Total: len(shares)})
}

// SharesReceived handles GET /api/shares/received.
//
//	@Summary		List shares granted to the user
//	@Tags			shares
//	@Produce		json
//	@Success		200	{object}	ShareListResponse
//	@Security		BearerAuth
//	@Router			/shares/received [get]
func (h *Handler) SharesReceived(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
		return
	}
	shares, err := h.notes.SharesReceived(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ShareListResponse{Shares: shares, Total: len(shares)})
}

// CreateUser handles POST /api/users.
//
//	@Summary		Register a user
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateUserRequest	true	"User to create"
//	@Success		201		{object}	models.User
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/users [post]
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	user, err := h.notes.CreateUser(r.Context(), req.Username, req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Me handles GET /api/users/me.
//
//	@Summary		Get the calling user
//	@Tags			users
//	@Produce		json
//	@Success		200	{object}	models.User
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/users/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
		return
	}
	user, err := h.notes.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
