package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/notemesh/internal/models"
)

const noteColumns = `n.id, n.title, n.content, n.owner_id, n.hyperlinks,
	n.view_count, n.last_viewed_at, n.created_at, n.updated_at`

// CreateNote inserts a note row. Tags are attached separately through
// SetNoteTags so that usage counters stay consistent.
func (s *Store) CreateNote(ctx context.Context, n *models.Note) error {
	links, _ := json.Marshal(emptyIfNil(n.Hyperlinks))
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO notes (id, title, content, owner_id, hyperlinks, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, n.ID.String(), n.Title, n.Content, n.OwnerID.String(), string(links), n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: create note: %w", err)
	}
	return nil
}

// UpdateNote rewrites title, content, and hyperlinks of an owner's note.
// Returns sql.ErrNoRows when the note does not exist or is not owned by
// n.OwnerID.
func (s *Store) UpdateNote(ctx context.Context, n *models.Note) error {
	links, _ := json.Marshal(emptyIfNil(n.Hyperlinks))
	res, err := s.conn.ExecContext(ctx, `
		UPDATE notes SET title = ?, content = ?, hyperlinks = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?
	`, n.Title, n.Content, string(links), n.UpdatedAt, n.ID.String(), n.OwnerID.String())
	if err != nil {
		return fmt.Errorf("store: update note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update note: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteNote removes an owner's note. Share rows and tag associations go
// with it; tag usage counters are decremented first so cascade deletes
// cannot leave them drifting.
func (s *Store) DeleteNote(ctx context.Context, noteID, ownerID uuid.UUID) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.ExecContext(ctx, `
		UPDATE tags SET usage_count = max(0, usage_count - 1)
		WHERE id IN (SELECT tag_id FROM note_tags WHERE note_id = ?)
	`, noteID.String())
	if err != nil {
		return fmt.Errorf("store: decrement tag usage: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND owner_id = ?`,
		noteID.String(), ownerID.String())
	if err != nil {
		return fmt.Errorf("store: delete note: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}

// FindByID returns a note by id alone, with its tags loaded.
func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (*models.Note, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes n WHERE n.id = ?`, id.String())
	return s.scanNoteWithTags(ctx, row)
}

// FindByIDForOwner returns the note only when owner owns it. This is
// the fast path of the single-note fetch; the caller consults shares
// when it comes back empty.
func (s *Store) FindByIDForOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.Note, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes n WHERE n.id = ? AND n.owner_id = ?`,
		id.String(), ownerID.String())
	return s.scanNoteWithTags(ctx, row)
}

// ListForOwner returns a page of the owner's notes, most recently
// updated first, optionally narrowed by an ANY-of tag filter, plus the
// total matching count.
func (s *Store) ListForOwner(ctx context.Context, ownerID uuid.UUID, page, perPage int, tagFilter []string) ([]models.Note, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	where := `n.owner_id = ?`
	args := []any{ownerID.String()}
	if len(tagFilter) > 0 {
		where += ` AND n.id IN (
			SELECT nt.note_id FROM note_tags nt
			JOIN tags t ON t.id = nt.tag_id
			WHERE t.name IN (` + placeholders(len(tagFilter)) + `))`
		for _, t := range tagFilter {
			args = append(args, t)
		}
	}

	var total int
	if err := s.conn.QueryRowContext(ctx,
		`SELECT count(*) FROM notes n WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count notes: %w", err)
	}

	query := `SELECT ` + noteColumns + ` FROM notes n WHERE ` + where +
		` ORDER BY n.updated_at DESC LIMIT ? OFFSET ?`
	args = append(args, perPage, (page-1)*perPage)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list notes: %w", err)
	}
	defer rows.Close()

	notes, err := s.collectNotes(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return notes, total, nil
}

// SearchAccessible scans for every note visible to the user — owned, or
// reachable through a share that is active and unexpired — applying an
// optional case-insensitive substring match on title/content and an
// optional ANY-of tag filter. Results come back most recently updated
// first; this path does not score.
func (s *Store) SearchAccessible(ctx context.Context, userID uuid.UUID, queryText string, tagFilter []string) ([]models.Note, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT DISTINCT ` + noteColumns + `
		FROM notes n
		LEFT JOIN shares sh ON sh.note_id = n.id AND sh.shared_with_user_id = ?
		WHERE (n.owner_id = ?
			OR (sh.status = 'active' AND (sh.expires_at IS NULL OR sh.expires_at > ?)))`)
	args := []any{userID.String(), userID.String(), time.Now().UTC()}

	if queryText != "" {
		sb.WriteString(` AND (n.title LIKE ? COLLATE NOCASE OR n.content LIKE ? COLLATE NOCASE)`)
		like := "%" + queryText + "%"
		args = append(args, like, like)
	}
	if len(tagFilter) > 0 {
		sb.WriteString(` AND n.id IN (
			SELECT nt.note_id FROM note_tags nt
			JOIN tags t ON t.id = nt.tag_id
			WHERE t.name IN (` + placeholders(len(tagFilter)) + `))`)
		for _, t := range tagFilter {
			args = append(args, t)
		}
	}
	sb.WriteString(` ORDER BY n.updated_at DESC`)

	rows, err := s.conn.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("store: search accessible: %w", err)
	}
	defer rows.Close()

	return s.collectNotes(ctx, rows)
}

// CountForOwner returns how many notes the owner has.
func (s *Store) CountForOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx,
		`SELECT count(*) FROM notes WHERE owner_id = ?`, ownerID.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count for owner: %w", err)
	}
	return n, nil
}

// CountAllNotes returns how many notes exist in total. Used by the
// readiness probe to verify the database answers queries.
func (s *Store) CountAllNotes(ctx context.Context) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx, `SELECT count(*) FROM notes`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count notes: %w", err)
	}
	return n, nil
}

// RecordNoteView bumps the view counter and stamps last_viewed_at.
func (s *Store) RecordNoteView(ctx context.Context, noteID uuid.UUID) error {
	_, err := s.conn.ExecContext(ctx, `
		UPDATE notes SET view_count = view_count + 1, last_viewed_at = ? WHERE id = ?
	`, time.Now().UTC(), noteID.String())
	if err != nil {
		return fmt.Errorf("store: record view: %w", err)
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(sc rowScanner) (*models.Note, error) {
	var (
		n          models.Note
		id, owner  string
		links      string
		lastViewed sql.NullTime
	)
	err := sc.Scan(&id, &n.Title, &n.Content, &owner, &links,
		&n.ViewCount, &lastViewed, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if n.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("store: parse note id: %w", err)
	}
	if n.OwnerID, err = uuid.Parse(owner); err != nil {
		return nil, fmt.Errorf("store: parse owner id: %w", err)
	}
	if lastViewed.Valid {
		t := lastViewed.Time
		n.LastViewedAt = &t
	}
	if err := json.Unmarshal([]byte(links), &n.Hyperlinks); err != nil {
		n.Hyperlinks = nil
	}
	return &n, nil
}

func (s *Store) scanNoteWithTags(ctx context.Context, row *sql.Row) (*models.Note, error) {
	n, err := scanNote(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("store: scan note: %w", err)
	}
	tags, err := s.tagsForNotes(ctx, []uuid.UUID{n.ID})
	if err != nil {
		return nil, err
	}
	n.Tags = emptyIfNil(tags[n.ID])
	return n, nil
}

func (s *Store) collectNotes(ctx context.Context, rows *sql.Rows) ([]models.Note, error) {
	var notes []models.Note
	var ids []uuid.UUID
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan note: %w", err)
		}
		notes = append(notes, *n)
		ids = append(ids, n.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate notes: %w", err)
	}
	if len(notes) == 0 {
		return notes, nil
	}
	tags, err := s.tagsForNotes(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range notes {
		notes[i].Tags = emptyIfNil(tags[notes[i].ID])
	}
	return notes, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
