// Package testutil provides shared test helpers for setting up planner roots and indexes.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/starford/planner/internal/index"
	"github.com/starford/planner/internal/parser"
	"github.com/starford/planner/internal/storage"
)

var dbSeq atomic.Int64

// TestDB opens a private in-memory index that is closed on cleanup.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:planner-test-%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := index.Open(dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRoot creates a temporary planner root with a file-system store.
func TestRoot(t *testing.T) (string, *storage.FS) {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store.Root(), store
}

// WriteCard writes a document at rel (relative to the store root) and returns its absolute path.
func WriteCard(t *testing.T, store *storage.FS, rel string, fm parser.Frontmatter, body string) string {
	t.Helper()
	path := filepath.Join(store.Root(), filepath.FromSlash(rel))
	if err := store.CreateDocument(path, fm, body); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
	return path
}

// Mkdir creates a directory at rel (relative to the store root) and returns its absolute path.
func Mkdir(t *testing.T, store *storage.FS, rel string) string {
	t.Helper()
	path := filepath.Join(store.Root(), filepath.FromSlash(rel))
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", rel, err)
	}
	return path
}
