package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/notemesh/internal/noteservice"
	"github.com/starford/notemesh/internal/search"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether JWT bearer auth is enforced; with auth
// disabled the X-User-ID header identifies the caller instead.
func NewRouter(notes *noteservice.Service, orch *search.Orchestrator, authEnabled bool, jwtSecret string) chi.Router {
	h := NewHandler(notes, orch)

	r := chi.NewRouter()
	r.Use(MetricsMiddleware)

	// User registration happens before the caller has an identity.
	r.Post("/users", h.CreateUser)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, jwtSecret))

		r.Get("/users/me", h.Me)

		// Notes CRUD.
		r.Get("/notes", h.ListNotes)
		r.Post("/notes", h.CreateNote)
		r.Get("/notes/{id}", h.GetNote)
		r.Put("/notes/{id}", h.UpdateNote)
		r.Delete("/notes/{id}", h.DeleteNote)

		// Sharing.
		r.Post("/notes/{id}/share", h.ShareNote)
		r.Delete("/notes/{id}/share/{userID}", h.RevokeShare)
		r.Get("/shares/given", h.SharesGiven)
		r.Get("/shares/received", h.SharesReceived)

		// Search.
		r.Get("/search", h.Search)
		r.Get("/search/suggestions", h.Suggestions)
		r.Get("/search/stats", h.Stats)
	})

	return r
}
