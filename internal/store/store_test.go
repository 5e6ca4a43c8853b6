package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/starford/notemesh/internal/apperr"
	"github.com/starford/notemesh/internal/models"
	"github.com/starford/notemesh/internal/store"
	"github.com/starford/notemesh/internal/testutil"
)

func share(owner, with uuid.UUID, noteID uuid.UUID, perm models.SharePermission, expires *time.Time) *models.Share {
	return &models.Share{
		ID:           uuid.New(),
		NoteID:       noteID,
		SharedByID:   owner,
		SharedWithID: with,
		Permission:   perm,
		Status:       models.ShareActive,
		SharedAt:     time.Now().UTC(),
		ExpiresAt:    expires,
	}
}

func TestNoteRoundTrip(t *testing.T) {
	st := testutil.TestStore(t)
	ctx := context.Background()
	owner := testutil.TestUser(t, st, "alice")

	note := testutil.TestNote(t, st, owner, "Meeting notes", "agenda items", "work", "planning")

	got, err := st.FindByID(ctx, note.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Title != "Meeting notes" || got.OwnerID != owner {
		t.Errorf("note = %+v", got)
	}
	if len(got.Tags) != 2 {
		t.Errorf("tags = %v", got.Tags)
	}

	if _, err := st.FindByID(ctx, uuid.New()); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("missing note: err = %v, want sql.ErrNoRows", err)
	}
}

func TestUpdateNoteIsOwnerScoped(t *testing.T) {
	st := testutil.TestStore(t)
	ctx := context.Background()
	owner := testutil.TestUser(t, st, "alice")
	other := testutil.TestUser(t, st, "bob")

	note := testutil.TestNote(t, st, owner, "Original", "content")

	imposter := *note
	imposter.OwnerID = other
	imposter.Title = "Hijacked"
	if err := st.UpdateNote(ctx, &imposter); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("non-owner update: err = %v, want sql.ErrNoRows", err)
	}

	note.Title = "Renamed"
	note.UpdatedAt = time.Now().UTC()
	if err := st.UpdateNote(ctx, note); err != nil {
		t.Fatalf("owner update: %v", err)
	}
	got, _ := st.FindByID(ctx, note.ID)
	if got.Title != "Renamed" {
		t.Errorf("title = %q", got.Title)
	}
}

func TestDeleteNoteAdjustsTagUsage(t *testing.T) {
	st := testutil.TestStore(t)
	ctx := context.Background()
	owner := testutil.TestUser(t, st, "alice")

	keep := testutil.TestNote(t, st, owner, "Keep", "content", "work")
	doomed := testutil.TestNote(t, st, owner, "Doomed", "content", "work", "temp")

	if err := st.DeleteNote(ctx, doomed.ID, owner); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	if _, err := st.FindByID(ctx, doomed.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("deleted note still present: %v", err)
	}

	// "work" survives via the remaining note; "temp" has no uses left.
	top, err := st.MostUsedTagsForOwner(ctx, owner, 10)
	if err != nil {
		t.Fatalf("MostUsedTagsForOwner: %v", err)
	}
	if len(top) != 1 || top[0] != "work" {
		t.Errorf("top tags = %v, want [work]", top)
	}

	if err := st.DeleteNote(ctx, keep.ID, uuid.New()); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("non-owner delete: err = %v, want sql.ErrNoRows", err)
	}
}

func TestListForOwner(t *testing.T) {
	st := testutil.TestStore(t)
	ctx := context.Background()
	owner := testutil.TestUser(t, st, "alice")
	other := testutil.TestUser(t, st, "bob")

	testutil.TestNote(t, st, owner, "One", "content", "work")
	testutil.TestNote(t, st, owner, "Two", "content", "home")
	testutil.TestNote(t, st, owner, "Three", "content")
	testutil.TestNote(t, st, other, "Not mine", "content", "work")

	notes, total, err := st.ListForOwner(ctx, owner, 1, 2, nil)
	if err != nil {
		t.Fatalf("ListForOwner: %v", err)
	}
	if total != 3 || len(notes) != 2 {
		t.Errorf("total = %d, page len = %d", total, len(notes))
	}

	notes, total, err = st.ListForOwner(ctx, owner, 1, 20, []string{"work", "home"})
	if err != nil {
		t.Fatalf("ListForOwner tags: %v", err)
	}
	if total != 2 {
		t.Errorf("tag-filtered total = %d, want 2", total)
	}
	for _, n := range notes {
		if n.Title == "Three" || n.Title == "Not mine" {
			t.Errorf("unexpected note %q in filtered list", n.Title)
		}
	}
}

func TestSearchAccessibleVisibility(t *testing.T) {
	st := testutil.TestStore(t)
	ctx := context.Background()
	owner := testutil.TestUser(t, st, "alice")
	viewer := testutil.TestUser(t, st, "bob")

	own := testutil.TestNote(t, st, viewer, "My planning doc", "own content")
	shared := testutil.TestNote(t, st, owner, "Shared planning", "shared content")
	hidden := testutil.TestNote(t, st, owner, "Hidden planning", "private content")
	revoked := testutil.TestNote(t, st, owner, "Revoked planning", "gone content")
	expired := testutil.TestNote(t, st, owner, "Expired planning", "stale content")

	if err := st.UpsertShare(ctx, share(owner, viewer, shared.ID, models.PermissionRead, nil)); err != nil {
		t.Fatal(err)
	}
	if err := st.UpsertShare(ctx, share(owner, viewer, revoked.ID, models.PermissionRead, nil)); err != nil {
		t.Fatal(err)
	}
	if err := st.RevokeShare(ctx, revoked.ID, owner, viewer); err != nil {
		t.Fatal(err)
	}
	past := time.Now().UTC().Add(-time.Hour)
	if err := st.UpsertShare(ctx, share(owner, viewer, expired.ID, models.PermissionRead, &past)); err != nil {
		t.Fatal(err)
	}

	notes, err := st.SearchAccessible(ctx, viewer, "planning", nil)
	if err != nil {
		t.Fatalf("SearchAccessible: %v", err)
	}

	seen := map[uuid.UUID]bool{}
	for _, n := range notes {
		seen[n.ID] = true
	}
	if !seen[own.ID] || !seen[shared.ID] {
		t.Errorf("own/shared notes missing: %v", seen)
	}
	if seen[hidden.ID] || seen[revoked.ID] || seen[expired.ID] {
		t.Errorf("inaccessible notes leaked: %v", seen)
	}
}

func TestSearchAccessibleTextAndTagFilter(t *testing.T) {
	st := testutil.TestStore(t)
	ctx := context.Background()
	owner := testutil.TestUser(t, st, "alice")

	match := testutil.TestNote(t, st, owner, "Budget REVIEW", "numbers", "finance")
	testutil.TestNote(t, st, owner, "Budget draft", "numbers", "finance")
	testutil.TestNote(t, st, owner, "Review holidays", "plans", "travel")

	// Case-insensitive text match plus any-of tag filter.
	notes, err := st.SearchAccessible(ctx, owner, "review", []string{"finance"})
	if err != nil {
		t.Fatalf("SearchAccessible: %v", err)
	}
	if len(notes) != 1 || notes[0].ID != match.ID {
		t.Errorf("notes = %+v, want only the finance review", notes)
	}

	// Empty query text matches everything accessible.
	notes, err = st.SearchAccessible(ctx, owner, "", []string{"travel"})
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 || notes[0].Title != "Review holidays" {
		t.Errorf("tag-only search = %+v", notes)
	}
}

func TestCheckAccess(t *testing.T) {
	st := testutil.TestStore(t)
	ctx := context.Background()
	owner := testutil.TestUser(t, st, "alice")
	reader := testutil.TestUser(t, st, "bob")
	writer := testutil.TestUser(t, st, "carol")
	stranger := testutil.TestUser(t, st, "dave")

	note := testutil.TestNote(t, st, owner, "Note", "content")
	if err := st.UpsertShare(ctx, share(owner, reader, note.ID, models.PermissionRead, nil)); err != nil {
		t.Fatal(err)
	}
	if err := st.UpsertShare(ctx, share(owner, writer, note.ID, models.PermissionWrite, nil)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		user uuid.UUID
		want store.Access
	}{
		{"owner", owner, store.Access{CanRead: true, CanWrite: true, IsOwner: true}},
		{"read share", reader, store.Access{CanRead: true}},
		{"write share", writer, store.Access{CanRead: true, CanWrite: true}},
		{"stranger", stranger, store.Access{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc, err := st.CheckAccess(ctx, note.ID, tt.user)
			if err != nil {
				t.Fatalf("CheckAccess: %v", err)
			}
			if acc != tt.want {
				t.Errorf("access = %+v, want %+v", acc, tt.want)
			}
		})
	}

	// A still-active row past its expiry no longer grants anything.
	past := time.Now().UTC().Add(-time.Minute)
	if err := st.UpsertShare(ctx, share(owner, reader, note.ID, models.PermissionRead, &past)); err != nil {
		t.Fatal(err)
	}
	acc, err := st.CheckAccess(ctx, note.ID, reader)
	if err != nil {
		t.Fatal(err)
	}
	if acc.CanRead {
		t.Errorf("expired share still grants access: %+v", acc)
	}

	// Unknown note reports no access, not an error.
	acc, err = st.CheckAccess(ctx, uuid.New(), owner)
	if err != nil || acc.CanRead {
		t.Errorf("missing note: acc = %+v, err = %v", acc, err)
	}
}

func TestUpsertShareUpdatesInPlace(t *testing.T) {
	st := testutil.TestStore(t)
	ctx := context.Background()
	owner := testutil.TestUser(t, st, "alice")
	with := testutil.TestUser(t, st, "bob")

	note := testutil.TestNote(t, st, owner, "Note", "content")
	if err := st.UpsertShare(ctx, share(owner, with, note.ID, models.PermissionRead, nil)); err != nil {
		t.Fatal(err)
	}
	if err := st.UpsertShare(ctx, share(owner, with, note.ID, models.PermissionWrite, nil)); err != nil {
		t.Fatal(err)
	}

	shares, err := st.SharesForNote(ctx, note.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(shares) != 1 {
		t.Fatalf("shares = %d rows, want 1", len(shares))
	}
	if shares[0].Permission != models.PermissionWrite {
		t.Errorf("permission = %q, want write", shares[0].Permission)
	}
}

func TestRevokeShareMissing(t *testing.T) {
	st := testutil.TestStore(t)
	owner := testutil.TestUser(t, st, "alice")

	err := st.RevokeShare(context.Background(), uuid.New(), owner, uuid.New())
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestShareBookkeeping(t *testing.T) {
	st := testutil.TestStore(t)
	ctx := context.Background()
	owner := testutil.TestUser(t, st, "alice")
	with := testutil.TestUser(t, st, "bob")

	note := testutil.TestNote(t, st, owner, "Note", "content")
	if err := st.UpsertShare(ctx, share(owner, with, note.ID, models.PermissionRead, nil)); err != nil {
		t.Fatal(err)
	}

	if err := st.RecordShareAccess(ctx, note.ID, with); err != nil {
		t.Fatal(err)
	}
	if err := st.RecordShareAccess(ctx, note.ID, with); err != nil {
		t.Fatal(err)
	}

	received, err := st.ListReceived(ctx, with)
	if err != nil {
		t.Fatal(err)
	}
	if len(received) != 1 {
		t.Fatalf("received = %d rows", len(received))
	}
	if received[0].AccessCount != 2 || received[0].LastAccessedAt == nil {
		t.Errorf("bookkeeping = %+v", received[0])
	}

	given, err := st.ListGivenByOwner(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(given) != 1 || given[0].SharedWithID != with {
		t.Errorf("given = %+v", given)
	}
}

func TestNoteViewCounter(t *testing.T) {
	st := testutil.TestStore(t)
	ctx := context.Background()
	owner := testutil.TestUser(t, st, "alice")
	note := testutil.TestNote(t, st, owner, "Note", "content")

	if err := st.RecordNoteView(ctx, note.ID); err != nil {
		t.Fatal(err)
	}
	if err := st.RecordNoteView(ctx, note.ID); err != nil {
		t.Fatal(err)
	}

	got, err := st.FindByID(ctx, note.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ViewCount != 2 || got.LastViewedAt == nil {
		t.Errorf("view bookkeeping = %+v", got)
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	st := testutil.TestStore(t)
	ctx := context.Background()

	first := &models.User{ID: uuid.New(), Username: "alice", DisplayName: "Alice", CreatedAt: time.Now().UTC()}
	if err := st.CreateUser(ctx, first); err != nil {
		t.Fatal(err)
	}
	dup := &models.User{ID: uuid.New(), Username: "alice", DisplayName: "Other Alice", CreatedAt: time.Now().UTC()}
	if err := st.CreateUser(ctx, dup); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("err = %v, want ErrAlreadyExists", err)
	}

	got, err := st.FindUserByID(ctx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Username != "alice" {
		t.Errorf("user = %+v", got)
	}
}

func TestMostUsedTagsOrdering(t *testing.T) {
	st := testutil.TestStore(t)
	ctx := context.Background()
	owner := testutil.TestUser(t, st, "alice")

	testutil.TestNote(t, st, owner, "A", "content", "work", "ideas")
	testutil.TestNote(t, st, owner, "B", "content", "work")
	testutil.TestNote(t, st, owner, "C", "content", "work", "ideas", "travel")

	top, err := st.MostUsedTagsForOwner(ctx, owner, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"work", "ideas"}
	if len(top) != 2 || top[0] != want[0] || top[1] != want[1] {
		t.Errorf("top tags = %v, want %v", top, want)
	}

	names, err := st.ListTagNamesForOwner(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 3 {
		t.Errorf("tag vocabulary = %v", names)
	}
}
