// Package tree builds, caches, and mutates the deck/card hierarchy.
//
// Decks mirror directories. Cards are Markdown documents; a card's children
// are the subcards listed in its frontmatter, wherever those files live.
// The package performs no logging: every failure is returned to the caller.
package tree

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/starford/planner/internal/apperr"
	"github.com/starford/planner/internal/models"
	"github.com/starford/planner/internal/parser"
	"github.com/starford/planner/internal/storage"
)

// Default glyphs for nodes without an explicit icon.
const (
	DefaultCardIcon = "📃"
	DefaultDeckIcon = "🗃️"
)

// Icons configures node glyphs.
type Icons struct {
	Card string
	Deck string
}

// DefaultIcons returns the built-in glyphs.
func DefaultIcons() Icons {
	return Icons{Card: DefaultCardIcon, Deck: DefaultDeckIcon}
}

// Builder walks a directory and produces the node forest.
type Builder struct {
	store storage.DocumentStore
	icons Icons
}

// NewBuilder creates a Builder reading from store. Empty icons fall back to the defaults.
func NewBuilder(store storage.DocumentStore, icons Icons) *Builder {
	if icons.Card == "" {
		icons.Card = DefaultCardIcon
	}
	if icons.Deck == "" {
		icons.Deck = DefaultDeckIcon
	}
	return &Builder{store: store, icons: icons}
}

// BuildTree returns the decks and root cards found in dir, in listing order.
// Hidden entries are skipped. Documents that declare a parent are not roots
// and only appear below the card that lists them.
func (b *Builder) BuildTree(ctx context.Context, dir string) ([]*models.Node, error) {
	names, err := b.store.ListDirectory(dir)
	if err != nil {
		return nil, fmt.Errorf("tree: list %s: %w", dir, err)
	}

	nodes := make([]*models.Node, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(dir, name)

		if b.store.IsDirectory(full) {
			deck, err := b.buildDeck(ctx, full)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, deck)
			continue
		}

		if filepath.Ext(name) != storage.DocumentExt {
			continue
		}
		fm, err := b.readFrontmatter(full)
		if err != nil {
			return nil, err
		}
		if fm.HasParent() {
			continue
		}
		card, err := b.buildCard(ctx, full, fm, map[string]bool{})
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, card)
	}
	return nodes, nil
}

func (b *Builder) buildDeck(ctx context.Context, dir string) (*models.Node, error) {
	children, err := b.BuildTree(ctx, dir)
	if err != nil {
		return nil, err
	}
	return &models.Node{
		Kind:     models.KindDeck,
		Name:     filepath.Base(dir),
		Path:     dir,
		Icon:     b.icons.Deck,
		Children: children,
	}, nil
}

// buildCard builds the card at path and, recursively, its subcards.
// visiting holds the cards on the current descent path.
func (b *Builder) buildCard(ctx context.Context, path string, fm parser.Frontmatter, visiting map[string]bool) (*models.Node, error) {
	if visiting[path] {
		return nil, fmt.Errorf("tree: %s: %w", path, apperr.ErrCycle)
	}
	visiting[path] = true
	defer delete(visiting, path)

	dir := filepath.Dir(path)
	subcards := fm.Subcards()
	children := make([]*models.Node, 0, len(subcards))
	for _, sub := range subcards {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		childPath := filepath.Join(dir, filepath.FromSlash(sub))
		childFM, err := b.readFrontmatter(childPath)
		if err != nil {
			return nil, fmt.Errorf("tree: subcard of %s: %w", path, err)
		}
		child, err := b.buildCard(ctx, childPath, childFM, visiting)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	var parentPath string
	if rel := fm.Parent(); rel != "" {
		parentPath = filepath.Join(dir, filepath.FromSlash(rel))
	}
	icon := fm.Icon()
	if icon == "" {
		icon = b.icons.Card
	}

	return &models.Node{
		Kind:       models.KindCard,
		Name:       filepath.Base(path),
		Path:       path,
		Icon:       icon,
		ParentPath: parentPath,
		Children:   children,
	}, nil
}

func (b *Builder) readFrontmatter(path string) (parser.Frontmatter, error) {
	fm, err := b.store.ReadFrontmatter(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("tree: card %s: %w", path, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("tree: read %s: %w", path, err)
	}
	return fm, nil
}
