package deckservice

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/planner/internal/apperr"
	"github.com/starford/planner/internal/models"
	"github.com/starford/planner/internal/parser"
	"github.com/starford/planner/internal/storage"
	"github.com/starford/planner/internal/testutil"
	"github.com/starford/planner/internal/tree"
)

type fixture struct {
	svc    *Service
	store  *storage.FS
	root   string
	events []ChangeEvent
}

func newFixture(t *testing.T, wrap func(storage.DocumentStore) storage.DocumentStore) *fixture {
	t.Helper()
	root, fs := testutil.TestRoot(t)
	f := &fixture{store: fs, root: root}

	var store storage.DocumentStore = fs
	if wrap != nil {
		store = wrap(fs)
	}
	cache := tree.NewCache(tree.NewBuilder(store, tree.DefaultIcons()), root)
	f.svc = NewService(store, cache,
		WithIndex(testutil.TestDB(t)),
		WithOnChange(func(ev ChangeEvent) { f.events = append(f.events, ev) }),
	)
	return f
}

func TestFindByPath_RelativeAndAbsolute(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	abs := testutil.WriteCard(t, f.store, "deck/a.md", nil, "a")

	n, err := f.svc.FindByPath(ctx, "deck/a.md")
	require.NoError(t, err)
	assert.Equal(t, abs, n.Path)

	n, err = f.svc.FindByPath(ctx, abs)
	require.NoError(t, err)
	assert.Equal(t, models.KindCard, n.Kind)

	_, err = f.svc.FindByPath(ctx, "deck/missing.md")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	children, err := f.svc.Children(ctx, "deck")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, abs, children[0].Path)
}

func TestResolve(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	abs := testutil.WriteCard(t, f.store, "a.md", nil, "a")

	n, err := f.svc.Resolve(ctx, models.NodeRef{Kind: models.KindCard, Path: abs})
	require.NoError(t, err)
	assert.Equal(t, abs, n.Path)

	_, err = f.svc.Resolve(ctx, models.NodeRef{Kind: models.KindDeck, Path: abs})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = f.svc.Resolve(ctx, models.NodeRef{Kind: "folder", Path: abs})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = f.svc.Resolve(ctx, models.NodeRef{})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestCreateCard_InDeck(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	testutil.Mkdir(t, f.store, "work")

	// Warm the cache so the new card is only visible after invalidation.
	_, err := f.svc.Roots(ctx)
	require.NoError(t, err)

	res, err := f.svc.CreateCard(ctx, "work", "Plan")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.root, "work", "Plan.md"), res.Path)
	assert.Equal(t, "Created card: Plan.md", res.Message)

	children, err := f.svc.Children(ctx, "work")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, res.Path, children[0].Path)

	assert.Equal(t, []ChangeEvent{{Action: ActionCardCreated, Path: res.Path}}, f.events)

	hits, err := f.svc.Search(ctx, "Plan", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, res.Path, hits[0].Path)
}

func TestCreateCard_Subcard(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	parentPath := testutil.WriteCard(t, f.store, "p.md", nil, "# P")

	res, err := f.svc.CreateCard(ctx, parentPath, "Child")
	require.NoError(t, err)
	assert.Equal(t, "Created subcard: Child.md", res.Message)

	parent, err := f.svc.FindByPath(ctx, parentPath)
	require.NoError(t, err)
	require.Len(t, parent.Children, 1)
	assert.Equal(t, res.Path, parent.Children[0].Path)

	roots, err := f.svc.Roots(ctx)
	require.NoError(t, err)
	assert.Len(t, roots, 1)
	assert.Equal(t, ActionSubcardCreated, f.events[0].Action)
}

func TestCreateCard_UnresolvableTargetHasNoSideEffects(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.CreateCard(ctx, "nowhere", "X")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Empty(t, f.events)
	assert.False(t, f.store.Exists(filepath.Join(f.root, "X.md")))
}

func TestCreateCard_InvalidNameStillInvalidates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	testutil.Mkdir(t, f.store, "work")

	_, err := f.svc.CreateCard(ctx, "work", "  ")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	require.Len(t, f.events, 1)
}

func TestDeleteNode_CardWithSubcardsNeedsStrategy(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	aPath := testutil.WriteCard(t, f.store, "a.md", parser.Frontmatter{"subcards": []string{"b.md"}}, "a")
	bPath := testutil.WriteCard(t, f.store, "b.md", parser.Frontmatter{"parent": "a.md"}, "b")

	_, err := f.svc.DeleteNode(ctx, aPath, tree.StrategyNone)
	assert.ErrorIs(t, err, apperr.ErrInvalidStrategy)
	assert.True(t, f.store.Exists(aPath))
	assert.Empty(t, f.events)

	res, err := f.svc.DeleteNode(ctx, aPath, tree.StrategyCascade)
	require.NoError(t, err)
	assert.Equal(t, "Deleted card: a.md", res.Message)
	assert.False(t, f.store.Exists(aPath))
	assert.False(t, f.store.Exists(bPath))

	roots, err := f.svc.Roots(ctx)
	require.NoError(t, err)
	assert.Empty(t, roots)
	assert.Equal(t, []ChangeEvent{{Action: ActionCardDeleted, Path: aPath}}, f.events)
}

func TestDeleteNode_Preserve(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	aPath := testutil.WriteCard(t, f.store, "a.md", parser.Frontmatter{"subcards": []string{"b.md"}}, "a")
	bPath := testutil.WriteCard(t, f.store, "b.md", parser.Frontmatter{"parent": "a.md"}, "b")

	_, err := f.svc.DeleteNode(ctx, "a.md", tree.StrategyPreserve)
	require.NoError(t, err)

	roots, err := f.svc.Roots(ctx)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, bPath, roots[0].Path)
	assert.False(t, f.store.Exists(aPath))
}

func TestDeleteNode_Deck(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	deck := testutil.Mkdir(t, f.store, "old")
	card := testutil.WriteCard(t, f.store, "old/c.md", nil, "findme")

	hits, err := f.svc.Search(ctx, "findme", 10)
	require.NoError(t, err)
	assert.Empty(t, hits, "index is empty before the first sync")
	require.NoError(t, f.svc.Sync(ctx))
	hits, err = f.svc.Search(ctx, "findme", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, card, hits[0].Path)

	res, err := f.svc.DeleteNode(ctx, "old", tree.StrategyNone)
	require.NoError(t, err)
	assert.Equal(t, "Deleted deck: old", res.Message)
	assert.False(t, f.store.Exists(deck))

	hits, err = f.svc.Search(ctx, "findme", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Equal(t, ActionDeckDeleted, f.events[0].Action)
}

func TestDeleteNode_Missing(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.DeleteNode(context.Background(), "ghost.md", tree.StrategyNone)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

// brokenDelete fails every DeleteFile call after the first.
type brokenDelete struct {
	storage.DocumentStore
	calls int
}

func (s *brokenDelete) DeleteFile(path string) error {
	s.calls++
	if s.calls > 1 {
		return errors.New("read-only file system")
	}
	return s.DocumentStore.DeleteFile(path)
}

func TestDeleteNode_PartialFailureInvalidates(t *testing.T) {
	f := newFixture(t, func(s storage.DocumentStore) storage.DocumentStore {
		return &brokenDelete{DocumentStore: s}
	})
	ctx := context.Background()
	aPath := testutil.WriteCard(t, f.store, "a.md", parser.Frontmatter{"subcards": []string{"b.md", "c.md"}}, "a")
	bPath := testutil.WriteCard(t, f.store, "b.md", parser.Frontmatter{"parent": "a.md"}, "b")
	testutil.WriteCard(t, f.store, "c.md", parser.Frontmatter{"parent": "a.md"}, "c")

	_, err := f.svc.DeleteNode(ctx, aPath, tree.StrategyCascade)
	require.Error(t, err)
	require.Len(t, f.events, 1)
	assert.False(t, f.store.Exists(bPath))

	// The forest reflects the partial deletion.
	a, err := f.svc.FindByPath(ctx, aPath)
	require.NoError(t, err)
	require.Len(t, a.Children, 1)
	assert.Equal(t, "c.md", a.Children[0].Name)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	roots, err := f.svc.Roots(ctx)
	require.NoError(t, err)
	assert.Empty(t, roots)

	testutil.WriteCard(t, f.store, "late.md", nil, "late")
	roots, err = f.svc.Roots(ctx)
	require.NoError(t, err)
	assert.Empty(t, roots)

	require.NoError(t, f.svc.Refresh(ctx))
	roots, err = f.svc.Roots(ctx)
	require.NoError(t, err)
	assert.Len(t, roots, 1)
	assert.Equal(t, []ChangeEvent{{Action: ActionRefreshed}}, f.events)
}
