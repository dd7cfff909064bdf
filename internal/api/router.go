package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/planner/internal/deckservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *deckservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Tree reads.
	r.Get("/tree", h.Tree)
	r.Get("/nodes/*", h.GetNode)
	r.Get("/children", h.Children)
	r.Get("/children/*", h.Children)

	// Mutations.
	r.Post("/cards", h.CreateCard)
	r.Delete("/nodes/*", h.DeleteNode)
	r.Post("/refresh", h.Refresh)

	// Search.
	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
