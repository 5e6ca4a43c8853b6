package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/notemesh/internal/checksum"
	"github.com/starford/notemesh/internal/models"
)

// Candidate is one scored hit from the secondary index.
type Candidate struct {
	NoteID         uuid.UUID
	Score          int
	Title          string
	ContentPreview string
}

// SecondaryIndex is the read side of the cache/inverted-index layer.
// Lookup returns scored candidates for the user's own notes. covered
// reports whether the index actually answered: false means the caller
// cannot distinguish "no matches" from "no coverage" and must fall
// through to the authoritative store. Implementations absorb their own
// I/O failures; a returned error is advisory and equivalent to
// covered == false.
type SecondaryIndex interface {
	Lookup(ctx context.Context, userID uuid.UUID, terms, tagFilter []string) (candidates []Candidate, covered bool, err error)
}

// ResultCache stores fully-assembled serialized responses. Get returns
// (nil, nil) on a miss; any error is treated by callers as a miss.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// NoteStore is the authoritative source consulted on index misses and
// for candidate resolution.
type NoteStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Note, error)
	SearchAccessible(ctx context.Context, userID uuid.UUID, queryText string, tagFilter []string) ([]models.Note, error)
	ListTagNamesForOwner(ctx context.Context, ownerID uuid.UUID) ([]string, error)
	MostUsedTagsForOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]string, error)
	CountForOwner(ctx context.Context, ownerID uuid.UUID) (int, error)
}

// ShareStore supplies the share rows used for "shared by me" counts.
type ShareStore interface {
	ListGivenByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Share, error)
}

// UserStore supplies owner info for result enrichment. Failures degrade
// to null owner fields, never to request failures.
type UserStore interface {
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Request is a search query as received from the API layer, with tags
// already normalized.
type Request struct {
	Query   string
	Tags    []string
	Page    int
	PerPage int
}

// ResultItem is one note in a search response.
type ResultItem struct {
	ID               uuid.UUID `json:"id"`
	Title            string    `json:"title"`
	ContentPreview   string    `json:"content_preview"`
	Tags             []string  `json:"tags"`
	OwnerID          uuid.UUID `json:"owner_id"`
	OwnerUsername    *string   `json:"owner_username"`
	OwnerDisplayName *string   `json:"owner_display_name"`
	IsOwned          bool      `json:"is_owned"`
	IsShared         bool      `json:"is_shared"`
	CanEdit          bool      `json:"can_edit"`
	IsSharedByUser   bool      `json:"is_shared_by_user"`
	ShareCount       int       `json:"share_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Filters echoes back what narrowed the result set.
type Filters struct {
	TagFilter []string `json:"tag_filter"`
}

// Response is the paginated search payload exposed to the API layer.
type Response struct {
	Items        []ResultItem `json:"items"`
	Total        int          `json:"total"`
	Page         int          `json:"page"`
	PerPage      int          `json:"per_page"`
	Pages        int          `json:"pages"`
	HasNext      bool         `json:"has_next"`
	HasPrev      bool         `json:"has_prev"`
	Query        string       `json:"query"`
	Filters      Filters      `json:"filters_applied"`
	SearchTimeMs float64      `json:"search_time_ms"`
}

// Stats is the aggregate search statistics payload.
type Stats struct {
	TotalNotes        int      `json:"total_notes"`
	TotalTags         int      `json:"total_tags"`
	MostUsedTags      []string `json:"most_used_tags"`
	SearchableContent bool     `json:"searchable_content"`
}

// resultCacheKey derives the cache key for a search response. The
// query is lower-cased and the tags sorted so case variants and
// differently-ordered filter lists share an entry; page/size are
// folded in so pagination never collides.
func resultCacheKey(userID uuid.UUID, query string, tags []string, page, perPage int) string {
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	composite := fmt.Sprintf("%s|%s|%d|%d", strings.ToLower(query), strings.Join(sorted, ","), page, perPage)
	return fmt.Sprintf("result:%s:%s", userID, checksum.Short([]byte(composite)))
}

func suggestCacheKey(userID uuid.UUID, query string, limit int) string {
	composite := fmt.Sprintf("%s|%d", strings.ToLower(strings.TrimSpace(query)), limit)
	return fmt.Sprintf("suggest:%s:%s", userID, checksum.Short([]byte(composite)))
}

func statsCacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("stats:%s", userID)
}
