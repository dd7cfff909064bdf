// Package deckservice coordinates the tree engine, the card index and change
// notifications for the presentation layers.
package deckservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/starford/planner/internal/apperr"
	"github.com/starford/planner/internal/index"
	"github.com/starford/planner/internal/models"
	"github.com/starford/planner/internal/storage"
	"github.com/starford/planner/internal/tree"
)

// Actions reported through the change hook.
const (
	ActionCardCreated    = "card.created"
	ActionSubcardCreated = "subcard.created"
	ActionCardDeleted    = "card.deleted"
	ActionDeckDeleted    = "deck.deleted"
	ActionRefreshed      = "refreshed"
)

// ChangeEvent describes a change to the tree.
type ChangeEvent struct {
	Action string `json:"action"`
	Path   string `json:"path,omitempty"`
}

// Result is the outcome of a successful mutation.
type Result struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithOnChange registers the hook fired after every mutation and refresh.
func WithOnChange(fn func(ChangeEvent)) Option {
	return func(s *Service) { s.onChange = fn }
}

// WithIndex enables the card search index.
func WithIndex(idx index.CardIndex) Option {
	return func(s *Service) { s.idx = idx }
}

// Service exposes the planner tree to the API, MCP and CLI layers.
//
// Mutations are serialised. After every mutation, whether it succeeded or
// not, the cache is invalidated, the index is re-synced and the change hook
// fires: a failed mutation may still have changed documents on disk.
type Service struct {
	store    storage.DocumentStore
	cache    *tree.Cache
	mutator  *tree.Mutator
	idx      index.CardIndex
	logger   *slog.Logger
	onChange func(ChangeEvent)

	mu sync.Mutex
}

// NewService creates a new deck service.
func NewService(store storage.DocumentStore, cache *tree.Cache, opts ...Option) *Service {
	s := &Service{
		store:   store,
		cache:   cache,
		mutator: tree.NewMutator(store),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the planner root directory.
func (s *Service) Root() string {
	return s.cache.Root()
}

// Roots returns the forest.
func (s *Service) Roots(ctx context.Context) ([]*models.Node, error) {
	return s.cache.Roots(ctx)
}

// FindByPath returns the node at path. Relative paths are resolved against
// the planner root.
func (s *Service) FindByPath(ctx context.Context, path string) (*models.Node, error) {
	abs := s.resolve(path)
	n, ok, err := s.cache.FindByPath(ctx, abs)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("node %s: %w", path, apperr.ErrNotFound)
	}
	return n, nil
}

// Children returns the children of the node at path.
func (s *Service) Children(ctx context.Context, path string) ([]*models.Node, error) {
	n, err := s.FindByPath(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.cache.Children(n), nil
}

// Resolve validates a node reference received from a client and returns the
// node it names.
func (s *Service) Resolve(ctx context.Context, ref models.NodeRef) (*models.Node, error) {
	if err := ref.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidState, err)
	}
	n, err := s.FindByPath(ctx, ref.Path)
	if err != nil {
		return nil, err
	}
	if ref.Kind != "" && ref.Kind != n.Kind {
		return nil, fmt.Errorf("%w: %s is a %s, not a %s", apperr.ErrInvalidState, ref.Path, n.Kind, ref.Kind)
	}
	return n, nil
}

// Refresh drops the cached forest and rebuilds the index.
func (s *Service) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Invalidate()
	err := s.reindex(ctx)
	s.emit(ChangeEvent{Action: ActionRefreshed})
	s.logger.Info("tree refreshed")
	return err
}

// Sync brings the search index in line with the current forest.
func (s *Service) Sync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reindex(ctx)
}

// CreateCard creates a card named name under the node at targetPath: inside
// the deck, or as a subcard of the card.
func (s *Service) CreateCard(ctx context.Context, targetPath, name string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.FindByPath(ctx, targetPath)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("%w: create target %s does not exist", apperr.ErrInvalidState, targetPath)
		}
		return nil, err
	}

	path, err := s.mutator.CreateCard(ctx, target, name)
	action, label := ActionCardCreated, "card"
	if models.IsCard(target) {
		action, label = ActionSubcardCreated, "subcard"
	}
	s.afterMutation(ctx, ChangeEvent{Action: action, Path: path})
	if err != nil {
		s.logger.Error("create card failed",
			slog.String("target", target.Path),
			slog.String("name", name),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to create %s: %w", label, err)
	}

	s.logger.Info("card created", slog.String("path", path), slog.String("kind", label))
	return &Result{Path: path, Message: fmt.Sprintf("Created %s: %s", label, filepath.Base(path))}, nil
}

// DeleteNode deletes the node at path. Decks are removed with everything in
// them. A card with subcards requires StrategyCascade or StrategyPreserve.
func (s *Service) DeleteNode(ctx context.Context, path string, strategy tree.DeleteStrategy) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.FindByPath(ctx, path)
	if err != nil {
		return nil, err
	}

	label, action := "card", ActionCardDeleted
	switch {
	case models.IsDeck(n):
		label, action = "deck", ActionDeckDeleted
		err = s.mutator.DeleteDeck(ctx, n)
	case models.HasChildren(n) && strategy == tree.StrategyNone:
		return nil, fmt.Errorf("%w: card %s has subcards, choose cascade or preserve", apperr.ErrInvalidStrategy, n.Name)
	default:
		err = s.mutator.DeleteCard(ctx, n, strategy)
	}

	s.afterMutation(ctx, ChangeEvent{Action: action, Path: n.Path})
	if err != nil {
		s.logger.Error("delete failed",
			slog.String("path", n.Path),
			slog.String("kind", label),
			slog.String("strategy", string(strategy)),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to delete %s: %w", label, err)
	}

	s.logger.Info("node deleted",
		slog.String("path", n.Path),
		slog.String("kind", label),
		slog.String("strategy", string(strategy)))
	return &Result{Path: n.Path, Message: fmt.Sprintf("Deleted %s: %s", label, n.Name)}, nil
}

// Search runs a full-text query over the indexed cards.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if s.idx == nil {
		return []index.SearchResult{}, nil
	}
	results, err := s.idx.Search(query, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(results), nil
}

func (s *Service) afterMutation(ctx context.Context, ev ChangeEvent) {
	s.cache.Invalidate()
	if err := s.reindex(ctx); err != nil {
		s.logger.Warn("reindex failed", slog.String("error", err.Error()))
	}
	s.emit(ev)
}

func (s *Service) reindex(ctx context.Context) error {
	if s.idx == nil {
		return nil
	}
	roots, err := s.cache.Roots(ctx)
	if err != nil {
		return err
	}
	return index.Sync(s.idx, s.store, roots, s.logger)
}

func (s *Service) emit(ev ChangeEvent) {
	if s.onChange != nil {
		s.onChange(ev)
	}
}

func (s *Service) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(s.cache.Root(), filepath.FromSlash(path))
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
