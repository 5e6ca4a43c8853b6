package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/starford/notemesh/internal/models"
	"github.com/starford/notemesh/internal/noteservice"
	"github.com/starford/notemesh/internal/search"
	"github.com/starford/notemesh/internal/store"
)

// testEnv sets up a temp SQLite store, services, and router. Auth runs
// in disabled mode: the X-User-ID header identifies the caller.
func testEnv(t *testing.T) http.Handler {
	t.Helper()
	return testEnvAuth(t, false, "")
}

func testEnvAuth(t *testing.T, authEnabled bool, secret string) http.Handler {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "api-test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	notes := noteservice.NewService(st, nil, nil, nil)
	ttl := search.TTLConfig{Result: time.Minute, Suggest: time.Minute, Stats: time.Minute}
	orch := search.NewOrchestrator(st, st, st, nil, nil, ttl, nil)
	return NewRouter(notes, orch, authEnabled, secret)
}

func doJSON(t *testing.T, router http.Handler, method, path string, userID uuid.UUID, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != uuid.Nil {
		req.Header.Set("X-User-ID", userID.String())
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func registerUser(t *testing.T, router http.Handler, username string) uuid.UUID {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/users", uuid.Nil, map[string]string{"username": username})
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s = %d, body = %s", username, w.Code, w.Body.String())
	}
	var u models.User
	if err := json.Unmarshal(w.Body.Bytes(), &u); err != nil {
		t.Fatal(err)
	}
	return u.ID
}

func createNote(t *testing.T, router http.Handler, owner uuid.UUID, title, content string, tags ...string) NoteDetail {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/notes", owner, map[string]any{
		"title":   title,
		"content": content,
		"tags":    tags,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create note = %d, body = %s", w.Code, w.Body.String())
	}
	var note NoteDetail
	if err := json.Unmarshal(w.Body.Bytes(), &note); err != nil {
		t.Fatal(err)
	}
	return note
}

func TestCreateAndGetNote(t *testing.T) {
	router := testEnv(t)
	owner := registerUser(t, router, "alice")

	note := createNote(t, router, owner, "Meeting notes", "Agenda for #planning with https://example.com/doc", "work")

	w := doJSON(t, router, http.MethodGet, "/notes/"+note.ID.String(), owner, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, body = %s", w.Code, w.Body.String())
	}
	var got NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Title != "Meeting notes" {
		t.Errorf("title = %q", got.Title)
	}
	if !got.IsOwned || !got.CanEdit {
		t.Errorf("owner flags wrong: %+v", got)
	}

	// Explicit tags and extracted hashtags are merged.
	tags := map[string]bool{}
	for _, tag := range got.Tags {
		tags[tag] = true
	}
	if !tags["work"] || !tags["planning"] {
		t.Errorf("tags = %v, want work and planning", got.Tags)
	}
	if len(got.Hyperlinks) != 1 {
		t.Errorf("hyperlinks = %v", got.Hyperlinks)
	}
}

func TestGetNoteHiddenFromStrangers(t *testing.T) {
	router := testEnv(t)
	owner := registerUser(t, router, "alice")
	stranger := registerUser(t, router, "bob")

	note := createNote(t, router, owner, "Private", "secret content")

	w := doJSON(t, router, http.MethodGet, "/notes/"+note.ID.String(), stranger, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("stranger get = %d, want 404", w.Code)
	}
}

func TestShareLifecycle(t *testing.T) {
	router := testEnv(t)
	owner := registerUser(t, router, "alice")
	reader := registerUser(t, router, "bob")

	note := createNote(t, router, owner, "Shared", "content to share")

	w := doJSON(t, router, http.MethodPost, "/notes/"+note.ID.String()+"/share", owner, map[string]any{
		"user_id":    reader,
		"permission": "read",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("share = %d, body = %s", w.Code, w.Body.String())
	}

	// Recipient can now read but not edit.
	w = doJSON(t, router, http.MethodGet, "/notes/"+note.ID.String(), reader, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("recipient get = %d", w.Code)
	}
	var got NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.IsOwned || got.CanEdit {
		t.Errorf("recipient flags wrong: %+v", got)
	}

	w = doJSON(t, router, http.MethodPut, "/notes/"+note.ID.String(), reader, map[string]any{
		"title": "Hijacked", "content": "nope",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("read-only update = %d, want 403", w.Code)
	}

	// Re-sharing with write permission updates the grant in place.
	w = doJSON(t, router, http.MethodPost, "/notes/"+note.ID.String()+"/share", owner, map[string]any{
		"user_id":    reader,
		"permission": "write",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("re-share = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodPut, "/notes/"+note.ID.String(), reader, map[string]any{
		"title": "Edited by recipient", "content": "updated content",
	})
	if w.Code != http.StatusOK {
		t.Errorf("write-share update = %d, body = %s", w.Code, w.Body.String())
	}

	// Revoking removes visibility entirely.
	w = doJSON(t, router, http.MethodDelete, "/notes/"+note.ID.String()+"/share/"+reader.String(), owner, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("revoke = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/notes/"+note.ID.String(), reader, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("revoked get = %d, want 404", w.Code)
	}
}

func TestShareValidation(t *testing.T) {
	router := testEnv(t)
	owner := registerUser(t, router, "alice")
	note := createNote(t, router, owner, "Mine", "content")

	// Sharing with yourself is rejected.
	w := doJSON(t, router, http.MethodPost, "/notes/"+note.ID.String()+"/share", owner, map[string]any{
		"user_id": owner, "permission": "read",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("self-share = %d, want 400", w.Code)
	}

	// Unknown recipient.
	w = doJSON(t, router, http.MethodPost, "/notes/"+note.ID.String()+"/share", owner, map[string]any{
		"user_id": uuid.New(), "permission": "read",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown recipient = %d, want 404", w.Code)
	}

	// Bad permission.
	other := registerUser(t, router, "bob")
	w = doJSON(t, router, http.MethodPost, "/notes/"+note.ID.String()+"/share", owner, map[string]any{
		"user_id": other, "permission": "admin",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad permission = %d, want 400", w.Code)
	}
}

func TestDeleteNote(t *testing.T) {
	router := testEnv(t)
	owner := registerUser(t, router, "alice")
	reader := registerUser(t, router, "bob")

	note := createNote(t, router, owner, "Doomed", "content")
	doJSON(t, router, http.MethodPost, "/notes/"+note.ID.String()+"/share", owner, map[string]any{
		"user_id": reader, "permission": "read",
	})

	// A reader may not delete.
	w := doJSON(t, router, http.MethodDelete, "/notes/"+note.ID.String(), reader, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("reader delete = %d, want 403", w.Code)
	}

	w = doJSON(t, router, http.MethodDelete, "/notes/"+note.ID.String(), owner, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("owner delete = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/notes/"+note.ID.String(), owner, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	router := testEnv(t)
	owner := registerUser(t, router, "alice")
	other := registerUser(t, router, "bob")

	createNote(t, router, owner, "Quarterly planning", "budget review", "work")
	createNote(t, router, owner, "Groceries", "milk and eggs")
	createNote(t, router, other, "Planning secrets", "hidden from alice")

	w := doJSON(t, router, http.MethodGet, "/search?q=planning", owner, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 1 {
		t.Errorf("total = %d, want 1 (only accessible notes)", resp.Total)
	}
	if len(resp.Items) == 1 && resp.Items[0].Title != "Quarterly planning" {
		t.Errorf("item = %+v", resp.Items[0])
	}

	// Empty and wildcard queries match nothing.
	for _, q := range []string{"/search?q=", "/search?q=*", "/search"} {
		w = doJSON(t, router, http.MethodGet, q, owner, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("search %q = %d", q, w.Code)
		}
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Total != 0 {
			t.Errorf("search %q total = %d, want 0", q, resp.Total)
		}
	}

	// Tag-only search works without query text.
	w = doJSON(t, router, http.MethodGet, "/search?tags=work", owner, nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 1 {
		t.Errorf("tag search total = %d, want 1", resp.Total)
	}

	// Blank entries in the tag filter are malformed.
	w = doJSON(t, router, http.MethodGet, "/search?tags=work,,home", owner, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank tag filter = %d, want 400", w.Code)
	}
}

func TestSuggestionsAndStats(t *testing.T) {
	router := testEnv(t)
	owner := registerUser(t, router, "alice")
	createNote(t, router, owner, "One", "content", "work", "workout")
	createNote(t, router, owner, "Two", "content", "work")

	w := doJSON(t, router, http.MethodGet, "/search/suggestions?q=work", owner, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("suggestions = %d", w.Code)
	}
	var sugg SuggestionsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &sugg)
	if len(sugg.Suggestions) != 2 || sugg.Suggestions[0] != "work" {
		t.Errorf("suggestions = %v", sugg.Suggestions)
	}

	w = doJSON(t, router, http.MethodGet, "/search/stats", owner, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats = %d", w.Code)
	}
	var stats StatsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &stats)
	if stats.TotalNotes != 2 || stats.TotalTags != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if len(stats.MostUsedTags) == 0 || stats.MostUsedTags[0] != "work" {
		t.Errorf("most used tags = %v", stats.MostUsedTags)
	}
}

func TestListNotes(t *testing.T) {
	router := testEnv(t)
	owner := registerUser(t, router, "alice")
	createNote(t, router, owner, "One", "content", "work")
	createNote(t, router, owner, "Two", "content", "home")

	w := doJSON(t, router, http.MethodGet, "/notes?tags=home", owner, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var resp NoteListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 1 || len(resp.Notes) != 1 {
		t.Fatalf("list = %+v", resp)
	}
	if resp.Notes[0].Title != "Two" {
		t.Errorf("filtered note = %+v", resp.Notes[0])
	}
}

func TestDuplicateUsername(t *testing.T) {
	router := testEnv(t)
	registerUser(t, router, "alice")

	w := doJSON(t, router, http.MethodPost, "/users", uuid.Nil, map[string]string{"username": "alice"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate username = %d, want 409", w.Code)
	}
}

func TestAuthDisabledRequiresHeader(t *testing.T) {
	router := testEnv(t)

	w := doJSON(t, router, http.MethodGet, "/notes", uuid.Nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing X-User-ID = %d, want 401", w.Code)
	}
}

func TestJWTAuth(t *testing.T) {
	const secret = "test-secret"
	router := testEnvAuth(t, true, secret)
	owner := registerUser(t, router, "alice")

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   owner.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token = %d, body = %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("garbage token = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/notes", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing token = %d, want 401", w.Code)
	}
}
