package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/planner/internal/deckservice"
	"github.com/starford/planner/internal/tree"
)

// Handler holds API route handlers.
type Handler struct {
	svc *deckservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *deckservice.Service) *Handler {
	return &Handler{svc: svc}
}

// nodePath extracts the node path from the URL wildcard. Paths are relative
// to the planner root. Supports encoded slashes (e.g. work%2Fplan.md).
func nodePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Tree handles GET /api/tree.
//
//	@Summary		Get the deck and card forest
//	@Tags			tree
//	@Produce		json
//	@Success		200	{object}	TreeResponse
//	@Failure		422	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tree [get]
func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	roots, err := h.svc.Roots(r.Context())
	if err != nil {
		writeError(w, "tree", err)
		return
	}
	writeJSON(w, http.StatusOK, TreeResponse{Root: h.svc.Root(), Nodes: roots})
}

// GetNode handles GET /api/nodes/*.
//
//	@Summary		Get a single node by path
//	@Tags			tree
//	@Produce		json
//	@Param			path	path		string	true	"Node path relative to the planner root"
//	@Success		200		{object}	Node
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{path} [get]
func (h *Handler) GetNode(w http.ResponseWriter, r *http.Request) {
	path := nodePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	n, err := h.svc.FindByPath(r.Context(), path)
	if err != nil {
		writeError(w, "get node", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// Children handles GET /api/children/*. Without a path it lists the roots.
//
//	@Summary		List the children of a node
//	@Tags			tree
//	@Produce		json
//	@Param			path	path		string	false	"Node path relative to the planner root"
//	@Success		200		{object}	ChildrenResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/children/{path} [get]
func (h *Handler) Children(w http.ResponseWriter, r *http.Request) {
	path := nodePath(r)
	var (
		children []*Node
		err      error
	)
	if path == "" {
		children, err = h.svc.Roots(r.Context())
	} else {
		children, err = h.svc.Children(r.Context(), path)
	}
	if err != nil {
		writeError(w, "children", err, slog.String("path", path))
		return
	}
	if children == nil {
		children = []*Node{}
	}
	writeJSON(w, http.StatusOK, ChildrenResponse{Children: children})
}

// CreateCard handles POST /api/cards.
//
//	@Summary		Create a card in a deck or a subcard under a card
//	@Tags			cards
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateCardRequest	true	"Target node and card name"
//	@Success		201		{object}	MutationResult
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cards [post]
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CreateCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	res, err := h.svc.CreateCard(r.Context(), req.Target, req.Name)
	if err != nil {
		writeError(w, "create card", err, slog.String("target", req.Target), slog.String("name", req.Name))
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// DeleteNode handles DELETE /api/nodes/*.
//
//	@Summary		Delete a deck or a card
//	@Tags			cards
//	@Produce		json
//	@Param			path		path		string	true	"Node path relative to the planner root"
//	@Param			strategy	query		string	false	"What to do with subcards"	Enums(cascade, preserve)
//	@Success		200			{object}	MutationResult
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{path} [delete]
func (h *Handler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	path := nodePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	strategy, err := tree.ParseStrategy(r.URL.Query().Get("strategy"))
	if err != nil {
		writeError(w, "delete node", err)
		return
	}
	res, err := h.svc.DeleteNode(r.Context(), path, strategy)
	if err != nil {
		writeError(w, "delete node", err, slog.String("path", path), slog.String("strategy", string(strategy)))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Refresh handles POST /api/refresh.
//
//	@Summary		Drop the cached tree and rebuild it from disk
//	@Tags			tree
//	@Produce		json
//	@Success		200	{object}	MessageResponse
//	@Security		BearerAuth
//	@Router			/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Refresh(r.Context()); err != nil {
		writeError(w, "refresh", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Tree refreshed"})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across cards
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
