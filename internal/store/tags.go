package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SetNoteTags replaces a note's tag associations with names, creating
// tag rows on first use. Names must already be normalized. Usage
// counters are decremented for dropped associations and incremented for
// added ones within the same transaction.
func (s *Store) SetNoteTags(ctx context.Context, noteID, taggedBy uuid.UUID, names []string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Drop existing associations, giving their counters back.
	_, err = tx.ExecContext(ctx, `
		UPDATE tags SET usage_count = max(0, usage_count - 1)
		WHERE id IN (SELECT tag_id FROM note_tags WHERE note_id = ?)
	`, noteID.String())
	if err != nil {
		return fmt.Errorf("store: decrement tag usage: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM note_tags WHERE note_id = ?`, noteID.String()); err != nil {
		return fmt.Errorf("store: clear note tags: %w", err)
	}

	now := time.Now().UTC()
	for _, name := range names {
		var tagID string
		err := tx.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&tagID)
		if err != nil {
			tagID = uuid.New().String()
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO tags (id, name, created_at) VALUES (?, ?, ?)`,
				tagID, name, now); err != nil {
				return fmt.Errorf("store: create tag %q: %w", name, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO note_tags (note_id, tag_id, tagged_by_user_id, tagged_at)
			VALUES (?, ?, ?, ?)
		`, noteID.String(), tagID, taggedBy.String(), now); err != nil {
			return fmt.Errorf("store: attach tag %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE tags SET usage_count = usage_count + 1 WHERE id = ?`, tagID); err != nil {
			return fmt.Errorf("store: increment tag usage: %w", err)
		}
	}

	return tx.Commit()
}

// ListTagNamesForOwner returns the distinct tag names used across the
// owner's notes, alphabetically.
func (s *Store) ListTagNamesForOwner(ctx context.Context, ownerID uuid.UUID) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT DISTINCT t.name
		FROM tags t
		JOIN note_tags nt ON nt.tag_id = t.id
		JOIN notes n ON n.id = nt.note_id
		WHERE n.owner_id = ?
		ORDER BY t.name
	`, ownerID.String())
	if err != nil {
		return nil, fmt.Errorf("store: list tag names: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// MostUsedTagsForOwner returns up to limit tag names ordered by how
// many of the owner's notes carry them, ties broken alphabetically.
func (s *Store) MostUsedTagsForOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT t.name, count(*) AS uses
		FROM tags t
		JOIN note_tags nt ON nt.tag_id = t.id
		JOIN notes n ON n.id = nt.note_id
		WHERE n.owner_id = ?
		GROUP BY t.name
		ORDER BY uses DESC, t.name
		LIMIT ?
	`, ownerID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("store: most used tags: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		var uses int
		if err := rows.Scan(&name, &uses); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// tagsForNotes loads tag names for a batch of notes in one query.
func (s *Store) tagsForNotes(ctx context.Context, noteIDs []uuid.UUID) (map[uuid.UUID][]string, error) {
	args := make([]any, len(noteIDs))
	for i, id := range noteIDs {
		args[i] = id.String()
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT nt.note_id, t.name
		FROM note_tags nt
		JOIN tags t ON t.id = nt.tag_id
		WHERE nt.note_id IN (`+placeholders(len(noteIDs))+`)
		ORDER BY t.name
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: tags for notes: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]string, len(noteIDs))
	for rows.Next() {
		var noteID, name string
		if err := rows.Scan(&noteID, &name); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(noteID)
		if err != nil {
			continue
		}
		out[id] = append(out[id], name)
	}
	return out, rows.Err()
}
