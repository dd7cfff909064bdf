package tree

import (
	"context"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/starford/planner/internal/models"
)

// snapshot is a populated cache: the forest and its flat path index.
type snapshot struct {
	roots []*models.Node
	index map[string]*models.Node
}

// Cache memoizes the built forest for a root directory.
//
// The cache is either empty (snapshot == nil) or populated. Reads fill an
// empty cache; Invalidate empties it. There is no partial invalidation.
// Concurrent reads that find the cache empty share a single build.
type Cache struct {
	builder *Builder
	root    string

	mu    sync.RWMutex
	snap  *snapshot
	gen   uint64
	group singleflight.Group
}

// NewCache creates an empty cache over root. An empty root yields an empty forest.
func NewCache(builder *Builder, root string) *Cache {
	if root != "" {
		root = filepath.Clean(root)
	}
	return &Cache{builder: builder, root: root}
}

// Root returns the configured root directory.
func (c *Cache) Root() string {
	return c.root
}

// Roots returns the cached forest, building it first if the cache is empty.
func (c *Cache) Roots(ctx context.Context) ([]*models.Node, error) {
	snap, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.roots, nil
}

// FindByPath returns the node whose path is path, building the cache if needed.
func (c *Cache) FindByPath(ctx context.Context, path string) (*models.Node, bool, error) {
	snap, err := c.load(ctx)
	if err != nil {
		return nil, false, err
	}
	n, ok := snap.index[filepath.Clean(path)]
	return n, ok, nil
}

// Children returns the children embedded in n.
func (c *Cache) Children(n *models.Node) []*models.Node {
	if n == nil {
		return nil
	}
	return n.Children
}

// Invalidate discards the forest and the index.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.snap = nil
	c.gen++
	c.mu.Unlock()
	c.group.Forget("roots")
}

// Populated reports whether the cache currently holds a forest.
func (c *Cache) Populated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap != nil
}

func (c *Cache) load(ctx context.Context) (*snapshot, error) {
	if c.root == "" {
		return &snapshot{roots: []*models.Node{}, index: map[string]*models.Node{}}, nil
	}

	c.mu.RLock()
	snap, gen := c.snap, c.gen
	c.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	ch := c.group.DoChan("roots", func() (any, error) {
		c.mu.RLock()
		done := c.snap
		c.mu.RUnlock()
		if done != nil {
			return done, nil
		}

		// Shared by every waiting caller, so it ignores the first caller's cancellation.
		roots, err := c.builder.BuildTree(context.WithoutCancel(ctx), c.root)
		if err != nil {
			return nil, err
		}
		built := &snapshot{roots: roots, index: make(map[string]*models.Node)}
		models.Walk(roots, func(n *models.Node) {
			built.index[n.Path] = n
		})

		c.mu.Lock()
		// A build that raced an Invalidate is returned but not kept.
		if c.gen == gen {
			c.snap = built
		}
		c.mu.Unlock()
		return built, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*snapshot), nil
	}
}
