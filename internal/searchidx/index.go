package searchidx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/starford/notemesh/internal/access"
	"github.com/starford/notemesh/internal/models"
	"github.com/starford/notemesh/internal/search"
)

const (
	// Indexed entries expire on their own so a wiped or restarted Redis
	// converges back to a correct state without explicit rebuilds.
	docTTL = 24 * time.Hour

	// Tokens of one or two characters are too noisy to index.
	minTokenLen = 3
)

var _ search.SecondaryIndex = (*Index)(nil)

// Index is the Redis-backed inverted index over a user's own notes.
// It only ever covers notes the user owns; shared notes are served by
// the store fallback.
type Index struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

func NewIndex(client *redis.Client, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		client: client,
		cb:     newBreaker("search-index", logger),
		logger: logger,
	}
}

// document is the denormalized note payload stored under doc:<id>.
type document struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	UpdatedAt time.Time `json:"updated_at"`
}

func docKey(noteID uuid.UUID) string   { return "doc:" + noteID.String() }
func ownerKey(userID uuid.UUID) string { return "ownerset:" + userID.String() }
func wordKey(token string) string      { return "word:" + token }

// tokenize extracts lowercased index tokens from the given texts,
// splitting on anything that is not a letter or digit and dropping
// tokens shorter than minTokenLen. Order follows first occurrence.
func tokenize(texts ...string) []string {
	seen := map[string]bool{}
	var tokens []string
	for _, text := range texts {
		fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, f := range fields {
			if len(f) < minTokenLen || seen[f] {
				continue
			}
			seen[f] = true
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// Upsert writes the note's document, owner-set membership and word-set
// memberships in one pipeline. Safe to call repeatedly for the same
// note; membership adds are idempotent.
func (x *Index) Upsert(ctx context.Context, note *models.Note) error {
	if note == nil {
		return nil
	}

	doc := document{
		ID:        note.ID,
		OwnerID:   note.OwnerID,
		Title:     note.Title,
		Content:   note.Content,
		Tags:      note.Tags,
		UpdatedAt: note.UpdatedAt,
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("searchidx: encode document: %w", err)
	}
	tokens := tokenize(note.Title, note.Content, strings.Join(note.Tags, " "))

	_, err = x.cb.Execute(func() (any, error) {
		pipe := x.client.Pipeline()
		pipe.Set(ctx, docKey(note.ID), payload, docTTL)
		pipe.SAdd(ctx, ownerKey(note.OwnerID), note.ID.String())
		pipe.Expire(ctx, ownerKey(note.OwnerID), docTTL)
		for _, token := range tokens {
			pipe.SAdd(ctx, wordKey(token), note.ID.String())
			pipe.Expire(ctx, wordKey(token), docTTL)
		}
		return pipe.Exec(ctx)
	})
	if err != nil {
		return fmt.Errorf("searchidx: upsert note %s: %w", note.ID, err)
	}
	return nil
}

// Remove drops a note from the index: its document, its owner-set
// membership and any word-set memberships the document still names.
func (x *Index) Remove(ctx context.Context, ownerID, noteID uuid.UUID) error {
	_, err := x.cb.Execute(func() (any, error) {
		var tokens []string
		if payload, err := x.client.Get(ctx, docKey(noteID)).Bytes(); err == nil {
			var doc document
			if json.Unmarshal(payload, &doc) == nil {
				tokens = tokenize(doc.Title, doc.Content, strings.Join(doc.Tags, " "))
			}
		} else if err != redis.Nil {
			return nil, err
		}

		pipe := x.client.Pipeline()
		pipe.Del(ctx, docKey(noteID))
		pipe.SRem(ctx, ownerKey(ownerID), noteID.String())
		for _, token := range tokens {
			pipe.SRem(ctx, wordKey(token), noteID.String())
		}
		return pipe.Exec(ctx)
	})
	if err != nil {
		return fmt.Errorf("searchidx: remove note %s: %w", noteID, err)
	}
	return nil
}

// Lookup answers a term query from the index. covered reports whether
// the answer is conclusive: it is false when the user has no owner-set,
// when a query term is too short to ever have been indexed, or when no
// candidate survives document resolution and tag filtering. A false
// coverage flag tells the caller to consult the store instead.
func (x *Index) Lookup(ctx context.Context, userID uuid.UUID, terms, tagFilter []string) ([]search.Candidate, bool, error) {
	tokens := tokenize(terms...)
	if len(tokens) == 0 || len(tokens) < len(terms) {
		// At least one term was never indexable; the index cannot
		// claim coverage for this query.
		return nil, false, nil
	}

	res, err := x.cb.Execute(func() (any, error) {
		return x.lookup(ctx, userID, terms, tokens, tagFilter)
	})
	if err != nil {
		return nil, false, fmt.Errorf("searchidx: lookup: %w", err)
	}

	candidates := res.([]search.Candidate)
	return candidates, len(candidates) > 0, nil
}

func (x *Index) lookup(ctx context.Context, userID uuid.UUID, terms, tokens, tagFilter []string) ([]search.Candidate, error) {
	owned, err := x.client.SMembers(ctx, ownerKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	if len(owned) == 0 {
		return nil, nil
	}
	ownedSet := make(map[string]bool, len(owned))
	for _, id := range owned {
		ownedSet[id] = true
	}

	// Union of the per-word hit sets, restricted to the user's notes.
	pipe := x.client.Pipeline()
	cmds := make([]*redis.StringSliceCmd, len(tokens))
	for i, token := range tokens {
		cmds[i] = pipe.SMembers(ctx, wordKey(token))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	var ids []string
	seen := map[string]bool{}
	for _, cmd := range cmds {
		for _, id := range cmd.Val() {
			if ownedSet[id] && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = "doc:" + id
	}
	payloads, err := x.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var candidates []search.Candidate
	for _, payload := range payloads {
		raw, ok := payload.(string)
		if !ok {
			// Stale set member whose document already expired.
			continue
		}
		var doc document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			x.logger.Warn("searchidx: dropping undecodable document", "error", err)
			continue
		}
		if !access.MatchesTags(doc.Tags, tagFilter) {
			continue
		}
		score := search.Score(terms, doc.Title, doc.Content, strings.Join(doc.Tags, " "))
		if score == 0 {
			continue
		}
		candidates = append(candidates, search.Candidate{
			NoteID:         doc.ID,
			Score:          score,
			Title:          doc.Title,
			ContentPreview: preview(doc.Content),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Title < candidates[j].Title
	})
	return candidates, nil
}

func preview(content string) string {
	const max = 200
	if utf8.RuneCountInString(content) <= max {
		return content
	}
	return string([]rune(content)[:max]) + "..."
}
