package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/starford/notemesh/internal/apperr"
	"github.com/starford/notemesh/internal/models"
)

// CreateUser inserts a user row. User provisioning happens out of band
// (the identity service owns credentials); this is the local mirror.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO users (id, username, display_name, created_at)
		VALUES (?, ?, ?, ?)
	`, u.ID.String(), u.Username, u.DisplayName, u.CreatedAt)
	if err != nil {
		var sqlErr sqlite3.Error
		if errors.As(err, &sqlErr) && sqlErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("store: username %q: %w", u.Username, apperr.ErrAlreadyExists)
		}
		return fmt.Errorf("store: create user: %w", err)
	}
	return nil
}

// FindUserByID returns the user row, or sql.ErrNoRows.
func (s *Store) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var (
		u   models.User
		raw string
	)
	err := s.conn.QueryRowContext(ctx, `
		SELECT id, username, display_name, created_at FROM users WHERE id = ?
	`, id.String()).Scan(&raw, &u.Username, &u.DisplayName, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("store: find user: %w", err)
	}
	if u.ID, err = uuid.Parse(raw); err != nil {
		return nil, fmt.Errorf("store: parse user id: %w", err)
	}
	return &u, nil
}
