package tree

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/starford/planner/internal/apperr"
	"github.com/starford/planner/internal/models"
	"github.com/starford/planner/internal/parser"
	"github.com/starford/planner/internal/storage"
)

// Mutator creates and deletes cards and decks through the document store.
//
// Mutations are sequences of independent store operations with no rollback.
// The Mutator never touches a Cache: callers invalidate after every mutation,
// successful or not.
type Mutator struct {
	store storage.DocumentStore
}

// NewMutator creates a Mutator writing through store.
func NewMutator(store storage.DocumentStore) *Mutator {
	return &Mutator{store: store}
}

// CleanName normalises a proposed card name and rejects names that cannot be
// used as a filename inside a single directory.
func CleanName(name string) (string, error) {
	name = strings.TrimSpace(norm.NFC.String(name))
	switch {
	case name == "":
		return "", fmt.Errorf("%w: card name is required", apperr.ErrInvalidState)
	case name == "." || name == "..":
		return "", fmt.Errorf("%w: invalid card name %q", apperr.ErrInvalidState, name)
	case strings.ContainsAny(name, `/\`):
		return "", fmt.Errorf("%w: card name %q contains a path separator", apperr.ErrInvalidState, name)
	}
	return name, nil
}

// CreateCard creates a card named name next to target and returns its path.
//
// For a deck target the card is a root card inside the deck directory. For a
// card target the new card is a subcard: it is written in the target's
// directory with a parent reference, and the target lists it in its subcards.
// The target's subcard list is updated before the new document is written, so
// a failed write leaves the target referencing a missing file.
func (m *Mutator) CreateCard(ctx context.Context, target *models.Node, name string) (string, error) {
	if target == nil {
		return "", fmt.Errorf("%w: no target node", apperr.ErrInvalidState)
	}
	name, err := CleanName(name)
	if err != nil {
		return "", err
	}

	var dir string
	switch target.Kind {
	case models.KindDeck:
		dir = target.Path
	case models.KindCard:
		dir = filepath.Dir(target.Path)
	default:
		return "", fmt.Errorf("%w: unknown node kind %q", apperr.ErrInvalidState, target.Kind)
	}

	filename, err := m.store.GenerateUniqueName(dir, name)
	if err != nil {
		return "", fmt.Errorf("tree: unique name in %s: %w", dir, err)
	}
	cardPath := filepath.Join(dir, filename)

	fm := parser.Frontmatter{}
	if target.Kind == models.KindCard {
		rel, err := filepath.Rel(dir, target.Path)
		if err != nil {
			return "", fmt.Errorf("tree: relative parent path: %w", err)
		}
		fm[parser.KeyParent] = filepath.ToSlash(rel)
		if err := m.AddSubcard(ctx, target.Path, cardPath); err != nil {
			return "", err
		}
	}

	if err := m.store.CreateDocument(cardPath, fm, "# "+name); err != nil {
		return "", fmt.Errorf("tree: create %s: %w", cardPath, err)
	}
	return cardPath, nil
}

// DeleteDeck removes the deck directory and everything inside it.
// Cards elsewhere that reference documents inside the deck are left dangling.
func (m *Mutator) DeleteDeck(_ context.Context, deck *models.Node) error {
	if !models.IsDeck(deck) {
		return fmt.Errorf("%w: not a deck", apperr.ErrInvalidState)
	}
	if err := m.store.DeleteDirectory(deck.Path); err != nil {
		return notFound(deck.Path, err)
	}
	return nil
}

// DeleteCard deletes card according to strategy.
//
// Subcards are handled first, one at a time in declared order: Cascade
// deletes them recursively, Preserve clears their parent reference. Then the
// card's own document is removed, and finally the card is dropped from its
// parent's subcard list. StrategyNone on a card with subcards leaves them
// orphaned.
func (m *Mutator) DeleteCard(ctx context.Context, card *models.Node, strategy DeleteStrategy) error {
	if !models.IsCard(card) {
		return fmt.Errorf("%w: not a card", apperr.ErrInvalidState)
	}

	if models.HasChildren(card) {
		switch strategy {
		case StrategyCascade:
			for _, sub := range card.Children {
				if err := m.DeleteCard(ctx, sub, strategy); err != nil {
					return err
				}
			}
		case StrategyPreserve:
			for _, sub := range card.Children {
				if err := m.store.UpdateFrontmatter(sub.Path, parser.Frontmatter{parser.KeyParent: nil}); err != nil {
					return notFound(sub.Path, err)
				}
			}
		case StrategyNone:
		default:
			return fmt.Errorf("%w: %q", apperr.ErrInvalidStrategy, strategy)
		}
	}

	if err := m.store.DeleteFile(card.Path); err != nil {
		return notFound(card.Path, err)
	}

	if card.ParentPath != "" {
		return m.RemoveSubcard(ctx, card.ParentPath, card.Path)
	}
	return nil
}

// AddSubcard appends childPath to the subcards of the card at parentPath.
// The entry is stored relative to the parent's directory. Adding an entry
// that is already listed is a no-op.
func (m *Mutator) AddSubcard(_ context.Context, parentPath, childPath string) error {
	fm, err := m.store.ReadFrontmatter(parentPath)
	if err != nil {
		return notFound(parentPath, err)
	}
	rel, err := subcardEntry(parentPath, childPath)
	if err != nil {
		return err
	}

	subcards := fm.Subcards()
	if slices.ContainsFunc(subcards, func(s string) bool {
		return sameEntry(s, rel)
	}) {
		return nil
	}
	subcards = append(subcards, rel)
	if err := m.store.UpdateFrontmatter(parentPath, parser.Frontmatter{parser.KeySubcards: subcards}); err != nil {
		return fmt.Errorf("tree: add subcard to %s: %w", parentPath, err)
	}
	return nil
}

// RemoveSubcard drops childPath from the subcards of the card at parentPath.
// A parent that does not list the child is left untouched.
func (m *Mutator) RemoveSubcard(_ context.Context, parentPath, childPath string) error {
	fm, err := m.store.ReadFrontmatter(parentPath)
	if err != nil {
		return notFound(parentPath, err)
	}
	if _, ok := fm[parser.KeySubcards]; !ok {
		return nil
	}
	rel, err := subcardEntry(parentPath, childPath)
	if err != nil {
		return err
	}

	subcards := fm.Subcards()
	kept := slices.DeleteFunc(slices.Clone(subcards), func(s string) bool {
		return sameEntry(s, rel)
	})
	if len(kept) == len(subcards) {
		return nil
	}
	if err := m.store.UpdateFrontmatter(parentPath, parser.Frontmatter{parser.KeySubcards: kept}); err != nil {
		return fmt.Errorf("tree: remove subcard from %s: %w", parentPath, err)
	}
	return nil
}

// sameEntry reports whether a listed subcard entry names the same file as rel.
func sameEntry(entry, rel string) bool {
	return filepath.Clean(filepath.FromSlash(entry)) == filepath.FromSlash(rel)
}

func subcardEntry(parentPath, childPath string) (string, error) {
	rel, err := filepath.Rel(filepath.Dir(parentPath), childPath)
	if err != nil {
		return "", fmt.Errorf("tree: relative subcard path: %w", err)
	}
	return filepath.ToSlash(rel), nil
}

// notFound maps a missing-file store error to apperr.ErrNotFound.
func notFound(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("tree: %s: %w", path, apperr.ErrNotFound)
	}
	return fmt.Errorf("tree: %s: %w", path, err)
}
