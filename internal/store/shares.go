package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/notemesh/internal/access"
	"github.com/starford/notemesh/internal/models"
)

const shareColumns = `id, note_id, shared_by_user_id, shared_with_user_id,
	permission, status, message, shared_at, expires_at, last_accessed_at, access_count`

// Access is the result of a share-level permission check.
type Access struct {
	CanRead  bool
	CanWrite bool
	IsOwner  bool
}

// UpsertShare creates a share or, when a row already exists for the
// (note, recipient) pair, rewrites its permission, status, expiry, and
// message. The unique constraint keeps the pair single-rowed.
func (s *Store) UpsertShare(ctx context.Context, sh *models.Share) error {
	var expires any
	if sh.ExpiresAt != nil {
		expires = sh.ExpiresAt.UTC()
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO shares (id, note_id, shared_by_user_id, shared_with_user_id,
			permission, status, message, shared_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(note_id, shared_with_user_id) DO UPDATE SET
			permission = excluded.permission,
			status     = excluded.status,
			message    = excluded.message,
			expires_at = excluded.expires_at
	`, sh.ID.String(), sh.NoteID.String(), sh.SharedByID.String(), sh.SharedWithID.String(),
		string(sh.Permission), string(sh.Status), sh.Message, sh.SharedAt.UTC(), expires)
	if err != nil {
		return fmt.Errorf("store: upsert share: %w", err)
	}
	return nil
}

// RevokeShare flips the share for (note, recipient) to revoked, only
// when ownerID created it. Returns sql.ErrNoRows when no such share
// exists.
func (s *Store) RevokeShare(ctx context.Context, noteID, ownerID, withID uuid.UUID) error {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE shares SET status = ?
		WHERE note_id = ? AND shared_with_user_id = ? AND shared_by_user_id = ?
	`, string(models.ShareRevoked), noteID.String(), withID.String(), ownerID.String())
	if err != nil {
		return fmt.Errorf("store: revoke share: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: revoke share: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CheckAccess evaluates what userID may do with the note. Ownership is
// checked first; otherwise the (note, user) share row is loaded and the
// access predicates decide, so SQL and in-process checks share one
// rule.
func (s *Store) CheckAccess(ctx context.Context, noteID, userID uuid.UUID) (Access, error) {
	var owner string
	err := s.conn.QueryRowContext(ctx,
		`SELECT owner_id FROM notes WHERE id = ?`, noteID.String()).Scan(&owner)
	if err == sql.ErrNoRows {
		return Access{}, nil
	}
	if err != nil {
		return Access{}, fmt.Errorf("store: check access: %w", err)
	}
	ownerID, err := uuid.Parse(owner)
	if err != nil {
		return Access{}, fmt.Errorf("store: check access: %w", err)
	}
	if ownerID == userID {
		return Access{CanRead: true, CanWrite: true, IsOwner: true}, nil
	}

	row := s.conn.QueryRowContext(ctx, `
		SELECT `+shareColumns+` FROM shares
		WHERE note_id = ? AND shared_with_user_id = ?
	`, noteID.String(), userID.String())
	sh, err := scanShare(row)
	if err == sql.ErrNoRows {
		return Access{}, nil
	}
	if err != nil {
		return Access{}, fmt.Errorf("store: check access: %w", err)
	}

	note := &models.Note{ID: noteID, OwnerID: ownerID}
	shares := []models.Share{*sh}
	now := time.Now().UTC()
	return Access{
		CanRead:  access.Visible(userID, note, shares, now),
		CanWrite: access.CanWrite(userID, note, shares, now),
	}, nil
}

// SharesForNote returns every share row attached to a note.
func (s *Store) SharesForNote(ctx context.Context, noteID uuid.UUID) ([]models.Share, error) {
	return s.listShares(ctx, `note_id = ?`, noteID.String())
}

// ListGivenByOwner returns every share the owner has created, newest
// first. Callers derive "shared by me" counts from it.
func (s *Store) ListGivenByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Share, error) {
	return s.listShares(ctx, `shared_by_user_id = ?`, ownerID.String())
}

// ListReceived returns every share naming userID as recipient, newest
// first.
func (s *Store) ListReceived(ctx context.Context, userID uuid.UUID) ([]models.Share, error) {
	return s.listShares(ctx, `shared_with_user_id = ?`, userID.String())
}

// RecordShareAccess bumps the access counter and stamps
// last_accessed_at for the recipient's share of the note.
func (s *Store) RecordShareAccess(ctx context.Context, noteID, userID uuid.UUID) error {
	_, err := s.conn.ExecContext(ctx, `
		UPDATE shares SET access_count = access_count + 1, last_accessed_at = ?
		WHERE note_id = ? AND shared_with_user_id = ?
	`, time.Now().UTC(), noteID.String(), userID.String())
	if err != nil {
		return fmt.Errorf("store: record share access: %w", err)
	}
	return nil
}

func (s *Store) listShares(ctx context.Context, where string, arg any) ([]models.Share, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+shareColumns+` FROM shares WHERE `+where+` ORDER BY shared_at DESC`, arg)
	if err != nil {
		return nil, fmt.Errorf("store: list shares: %w", err)
	}
	defer rows.Close()

	var out []models.Share
	for rows.Next() {
		sh, err := scanShare(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan share: %w", err)
		}
		out = append(out, *sh)
	}
	return out, rows.Err()
}

func scanShare(sc rowScanner) (*models.Share, error) {
	var (
		sh                 models.Share
		id, note, by, with string
		perm, status       string
		expires, accessed  sql.NullTime
	)
	err := sc.Scan(&id, &note, &by, &with, &perm, &status, &sh.Message,
		&sh.SharedAt, &expires, &accessed, &sh.AccessCount)
	if err != nil {
		return nil, err
	}
	if sh.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("store: parse share id: %w", err)
	}
	if sh.NoteID, err = uuid.Parse(note); err != nil {
		return nil, fmt.Errorf("store: parse share note id: %w", err)
	}
	if sh.SharedByID, err = uuid.Parse(by); err != nil {
		return nil, fmt.Errorf("store: parse share user id: %w", err)
	}
	if sh.SharedWithID, err = uuid.Parse(with); err != nil {
		return nil, fmt.Errorf("store: parse share user id: %w", err)
	}
	sh.Permission = models.SharePermission(perm)
	sh.Status = models.ShareStatus(status)
	if expires.Valid {
		t := expires.Time
		sh.ExpiresAt = &t
	}
	if accessed.Valid {
		t := accessed.Time
		sh.LastAccessedAt = &t
	}
	return &sh, nil
}
