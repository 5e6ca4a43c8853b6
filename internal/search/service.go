package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/notemesh/internal/access"
	"github.com/starford/notemesh/internal/apperr"
	"github.com/starford/notemesh/internal/models"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100

	suggestDefaultLimit = 10
	statsTopTags        = 10
)

// Orchestrator answers search, suggestion and stats queries by trying
// cheap layers first (result cache, secondary index) and falling back
// to the store. Cache and index failures degrade silently; only store
// failures surface to the caller.
type Orchestrator struct {
	notes  NoteStore
	shares ShareStore
	users  UserStore
	index  SecondaryIndex
	cache  ResultCache
	logger *slog.Logger

	resultTTL  time.Duration
	suggestTTL time.Duration
	statsTTL   time.Duration
}

// TTLConfig carries the cache lifetimes for the three cached payloads.
type TTLConfig struct {
	Result  time.Duration
	Suggest time.Duration
	Stats   time.Duration
}

func NewOrchestrator(notes NoteStore, shares ShareStore, users UserStore, index SecondaryIndex, cache ResultCache, ttl TTLConfig, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		notes:      notes,
		shares:     shares,
		users:      users,
		index:      index,
		cache:      cache,
		logger:     logger,
		resultTTL:  ttl.Result,
		suggestTTL: ttl.Suggest,
		statsTTL:   ttl.Stats,
	}
}

// SearchNotes runs one search request for a user. The response is
// always well-formed; an error is returned only when the authoritative
// store itself failed.
func (o *Orchestrator) SearchNotes(ctx context.Context, userID uuid.UUID, req Request) (*Response, error) {
	start := time.Now()

	query := strings.TrimSpace(req.Query)
	if query == "*" {
		query = ""
	}
	terms := Terms(req.Query)
	tags := access.NormalizeTags(req.Tags)
	page, perPage := clampPage(req.Page, req.PerPage)

	// Nothing to match on: answer immediately without touching any layer.
	if len(terms) == 0 && len(tags) == 0 {
		countPath(pathEmpty)
		resp := emptyResponse(req.Query, tags, page, perPage)
		resp.SearchTimeMs = sinceMs(start)
		return resp, nil
	}

	key := resultCacheKey(userID, query, tags, page, perPage)
	if cached := o.cacheGet(ctx, key); cached != nil {
		var resp Response
		if err := json.Unmarshal(cached, &resp); err == nil {
			countPath(pathCache)
			resp.SearchTimeMs = sinceMs(start)
			return &resp, nil
		}
		o.logger.Warn("search: discarding undecodable cache entry", "key", key)
	}

	notes, path, err := o.findNotes(ctx, userID, query, terms, tags)
	if err != nil {
		countPath(pathError)
		return nil, err
	}
	countPath(path)

	items := o.assemble(ctx, userID, notes)
	resp := paginate(items, req.Query, tags, page, perPage)

	o.cachePut(ctx, key, resp, o.resultTTL)

	resp.SearchTimeMs = sinceMs(start)
	return resp, nil
}

// findNotes tries the secondary index and falls back to the store
// whenever the index did not conclusively cover the query.
func (o *Orchestrator) findNotes(ctx context.Context, userID uuid.UUID, query string, terms, tags []string) ([]models.Note, string, error) {
	if o.index != nil && len(terms) > 0 {
		candidates, covered, err := o.index.Lookup(ctx, userID, terms, tags)
		if err != nil {
			o.logger.Warn("search: index lookup degraded, falling back to store", "error", err)
		} else if covered {
			if notes := o.resolveCandidates(ctx, candidates); len(notes) > 0 {
				return notes, pathIndex, nil
			}
			// Stale candidates resolved to nothing; the store decides.
		}
	}

	notes, err := o.notes.SearchAccessible(ctx, userID, query, tags)
	if err != nil {
		return nil, "", fmt.Errorf("search: store fallback: %w", apperr.ErrUnavailable)
	}
	return notes, pathStore, nil
}

// resolveCandidates loads full notes for index hits, preserving the
// score order. Candidates whose backing row is gone are dropped.
func (o *Orchestrator) resolveCandidates(ctx context.Context, candidates []Candidate) []models.Note {
	notes := make([]models.Note, 0, len(candidates))
	for _, c := range candidates {
		note, err := o.notes.FindByID(ctx, c.NoteID)
		if err != nil || note == nil {
			continue
		}
		notes = append(notes, *note)
	}
	return notes
}

// assemble turns notes into result items, enriching with owner info and
// outbound-share counts. Every enrichment failure degrades to empty
// fields rather than failing the search.
func (o *Orchestrator) assemble(ctx context.Context, userID uuid.UUID, notes []models.Note) []ResultItem {
	now := time.Now().UTC()

	shareCounts := map[uuid.UUID]int{}
	if given, err := o.shares.ListGivenByOwner(ctx, userID); err != nil {
		o.logger.Warn("search: share counts unavailable", "error", err)
	} else {
		for _, sh := range given {
			if sh.IsActive(now) {
				shareCounts[sh.NoteID]++
			}
		}
	}

	owners := map[uuid.UUID]*models.User{}
	items := make([]ResultItem, 0, len(notes))
	for _, note := range notes {
		owned := note.IsOwnedBy(userID)
		item := ResultItem{
			ID:             note.ID,
			Title:          note.Title,
			ContentPreview: note.Preview(),
			Tags:           note.Tags,
			OwnerID:        note.OwnerID,
			IsOwned:        owned,
			IsShared:       !owned,
			CanEdit:        owned,
			CreatedAt:      note.CreatedAt,
			UpdatedAt:      note.UpdatedAt,
		}
		if item.Tags == nil {
			item.Tags = []string{}
		}
		if owned {
			item.ShareCount = shareCounts[note.ID]
			item.IsSharedByUser = item.ShareCount > 0
		}
		if owner := o.ownerInfo(ctx, owners, note.OwnerID); owner != nil {
			item.OwnerUsername = &owner.Username
			item.OwnerDisplayName = &owner.DisplayName
		}
		items = append(items, item)
	}
	return items
}

func (o *Orchestrator) ownerInfo(ctx context.Context, cache map[uuid.UUID]*models.User, id uuid.UUID) *models.User {
	if u, ok := cache[id]; ok {
		return u
	}
	u, err := o.users.FindUserByID(ctx, id)
	if err != nil {
		u = nil
	}
	cache[id] = u
	return u
}

// SuggestTags returns up to limit tag-name completions for a partial
// query, drawn from the user's own tag vocabulary.
func (o *Orchestrator) SuggestTags(ctx context.Context, userID uuid.UUID, query string, limit int) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return []string{}, nil
	}
	if limit <= 0 {
		limit = suggestDefaultLimit
	}

	key := suggestCacheKey(userID, query, limit)
	if cached := o.cacheGet(ctx, key); cached != nil {
		var tags []string
		if err := json.Unmarshal(cached, &tags); err == nil {
			return tags, nil
		}
	}

	vocabulary, err := o.notes.ListTagNamesForOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("search: tag vocabulary: %w", apperr.ErrUnavailable)
	}
	tags := RankTagSuggestions(vocabulary, query, limit)

	o.cachePut(ctx, key, tags, o.suggestTTL)
	return tags, nil
}

// SearchStats returns per-user aggregates about the searchable corpus.
func (o *Orchestrator) SearchStats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	key := statsCacheKey(userID)
	if cached := o.cacheGet(ctx, key); cached != nil {
		var stats Stats
		if err := json.Unmarshal(cached, &stats); err == nil {
			return &stats, nil
		}
	}

	total, err := o.notes.CountForOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("search: note count: %w", apperr.ErrUnavailable)
	}
	vocabulary, err := o.notes.ListTagNamesForOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("search: tag vocabulary: %w", apperr.ErrUnavailable)
	}
	topTags, err := o.notes.MostUsedTagsForOwner(ctx, userID, statsTopTags)
	if err != nil {
		return nil, fmt.Errorf("search: top tags: %w", apperr.ErrUnavailable)
	}
	if topTags == nil {
		topTags = []string{}
	}

	stats := &Stats{
		TotalNotes:        total,
		TotalTags:         len(vocabulary),
		MostUsedTags:      topTags,
		SearchableContent: total > 0,
	}

	o.cachePut(ctx, key, stats, o.statsTTL)
	return stats, nil
}

// cacheGet reads a cache entry, treating every failure as a miss.
func (o *Orchestrator) cacheGet(ctx context.Context, key string) []byte {
	if o.cache == nil {
		return nil
	}
	data, err := o.cache.Get(ctx, key)
	if err != nil {
		o.logger.Warn("search: cache read degraded", "key", key, "error", err)
		return nil
	}
	return data
}

// cachePut writes a cache entry, absorbing failures.
func (o *Orchestrator) cachePut(ctx context.Context, key string, value any, ttl time.Duration) {
	if o.cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		o.logger.Warn("search: cache encode failed", "key", key, "error", err)
		return
	}
	if err := o.cache.Put(ctx, key, data, ttl); err != nil {
		o.logger.Warn("search: cache write degraded", "key", key, "error", err)
	}
}

func clampPage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

func emptyResponse(query string, tags []string, page, perPage int) *Response {
	return &Response{
		Items:   []ResultItem{},
		Page:    page,
		PerPage: perPage,
		Query:   query,
		Filters: Filters{TagFilter: emptyIfNil(tags)},
	}
}

func paginate(items []ResultItem, query string, tags []string, page, perPage int) *Response {
	total := len(items)
	pages := 0
	if total > 0 {
		pages = (total + perPage - 1) / perPage
	}

	offset := (page - 1) * perPage
	if offset > total {
		offset = total
	}
	end := offset + perPage
	if end > total {
		end = total
	}

	return &Response{
		Items:   items[offset:end],
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Pages:   pages,
		HasNext: page < pages,
		HasPrev: page > 1 && total > 0,
		Query:   query,
		Filters: Filters{TagFilter: emptyIfNil(tags)},
	}
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func sinceMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
