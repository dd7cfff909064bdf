package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/planner/internal/parser"
)

// FS implements DocumentStore backed by the local file system.
type FS struct {
	root string // absolute path to the planner root
}

var _ DocumentStore = (*FS)(nil)

// NewFS creates a new FS store rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute root directory.
func (f *FS) Root() string {
	return f.root
}

// safePath resolves path against the root and rejects any result that
// escapes it (directory traversal). Absolute paths are accepted only when
// they already lie under the root.
func (f *FS) safePath(path string) (string, error) {
	if path == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(path)
	if !filepath.IsAbs(cleaned) {
		cleaned = filepath.Join(f.root, cleaned)
	}
	abs, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes root: %s", path)
	}
	return abs, nil
}

// IsDirectory reports whether path is a directory inside the root.
func (f *FS) IsDirectory(path string) bool {
	abs, err := f.safePath(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Exists reports whether path exists inside the root.
func (f *FS) Exists(path string) bool {
	abs, err := f.safePath(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(abs)
	return err == nil
}

// ListDirectory returns the entry names of dir in lexical order.
func (f *FS) ListDirectory(dir string) ([]string, error) {
	abs, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// DeleteFile removes a single file.
func (f *FS) DeleteFile(path string) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	return nil
}

// DeleteDirectory removes a directory recursively. The root itself cannot be removed.
func (f *FS) DeleteDirectory(path string) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if abs == f.root {
		return fmt.Errorf("storage: refusing to delete root %s", f.root)
	}
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("storage: delete dir %s: %w", path, err)
	}
	return nil
}

// CreateDocument renders fm and body and writes them to path.
func (f *FS) CreateDocument(path string, fm parser.Frontmatter, body string) error {
	data, err := parser.Render(fm, body)
	if err != nil {
		return err
	}
	return f.write(path, data)
}

// ReadRaw returns the raw bytes of a file.
func (f *FS) ReadRaw(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// ReadDocument reads and parses the document at path.
func (f *FS) ReadDocument(path string) (*parser.Document, error) {
	data, err := f.ReadRaw(path)
	if err != nil {
		return nil, err
	}
	doc, err := parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("storage: parse %s: %w", path, err)
	}
	return doc, nil
}

// ReadFrontmatter reads the metadata of the document at path.
func (f *FS) ReadFrontmatter(path string) (parser.Frontmatter, error) {
	doc, err := f.ReadDocument(path)
	if err != nil {
		return nil, err
	}
	return doc.Frontmatter, nil
}

// WriteFrontmatter replaces the metadata of the document at path.
func (f *FS) WriteFrontmatter(path string, fm parser.Frontmatter) error {
	doc, err := f.ReadDocument(path)
	if err != nil {
		return err
	}
	return f.CreateDocument(path, fm, doc.Body)
}

// UpdateFrontmatter applies updates to the metadata of the document at path.
func (f *FS) UpdateFrontmatter(path string, updates parser.Frontmatter) error {
	doc, err := f.ReadDocument(path)
	if err != nil {
		return err
	}
	return f.CreateDocument(path, parser.ApplyUpdates(doc.Frontmatter, updates), doc.Body)
}

// GenerateUniqueName returns the first free filename for baseName in directory.
func (f *FS) GenerateUniqueName(directory, baseName string) (string, error) {
	dir, err := f.safePath(directory)
	if err != nil {
		return "", err
	}
	name := baseName + DocumentExt
	for i := 1; ; i++ {
		_, err := os.Stat(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			return name, nil
		}
		if err != nil {
			return "", fmt.Errorf("storage: stat %s: %w", name, err)
		}
		name = fmt.Sprintf("%s-%d%s", baseName, i, DocumentExt)
	}
}

// write atomically writes content: tmp file → fsync → rename.
func (f *FS) write(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".planner-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("storage: chmod temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}
