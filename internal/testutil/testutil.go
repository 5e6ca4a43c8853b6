// Package testutil provides shared test helpers for setting up stores
// and fixture rows.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/starford/notemesh/internal/models"
	"github.com/starford/notemesh/internal/store"
)

// TestStore creates a temporary SQLite store that is automatically
// cleaned up with the test's temp directory.
func TestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// TestUser inserts a user row and returns its id.
func TestUser(t *testing.T, st *store.Store, username string) uuid.UUID {
	t.Helper()
	u := &models.User{
		ID:          uuid.New(),
		Username:    username,
		DisplayName: username,
		CreatedAt:   time.Now().UTC(),
	}
	if err := st.CreateUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return u.ID
}

// TestNote inserts a note with tags and returns it.
func TestNote(t *testing.T, st *store.Store, owner uuid.UUID, title, content string, tags ...string) *models.Note {
	t.Helper()
	now := time.Now().UTC()
	n := &models.Note{
		ID:        uuid.New(),
		Title:     title,
		Content:   content,
		OwnerID:   owner,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.CreateNote(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	if len(tags) > 0 {
		if err := st.SetNoteTags(context.Background(), n.ID, owner, tags); err != nil {
			t.Fatal(err)
		}
	}
	return n
}
