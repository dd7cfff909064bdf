// Package storage defines the document store the tree engine reads and writes.
package storage

import "github.com/starford/planner/internal/parser"

// DocumentExt is the only file extension recognised as a card document.
const DocumentExt = ".md"

// DocumentStore is the interface for document and directory operations.
// Paths may be absolute (inside the store root) or relative to the root.
type DocumentStore interface {
	// IsDirectory reports whether path is a directory. It never fails.
	IsDirectory(path string) bool
	// Exists reports whether anything exists at path.
	Exists(path string) bool
	// ListDirectory returns the entry names of a directory, sorted.
	ListDirectory(path string) ([]string, error)
	// DeleteFile removes a single file.
	DeleteFile(path string) error
	// DeleteDirectory removes a directory and everything below it.
	DeleteDirectory(path string) error
	// CreateDocument writes a new document from frontmatter and body.
	CreateDocument(path string, fm parser.Frontmatter, body string) error
	// ReadDocument reads and parses a document.
	ReadDocument(path string) (*parser.Document, error)
	// ReadFrontmatter reads only the metadata of a document.
	ReadFrontmatter(path string) (parser.Frontmatter, error)
	// WriteFrontmatter replaces the metadata of a document, keeping its body.
	WriteFrontmatter(path string, fm parser.Frontmatter) error
	// UpdateFrontmatter merges updates into the metadata; nil values delete keys.
	UpdateFrontmatter(path string, updates parser.Frontmatter) error
	// GenerateUniqueName returns a document filename for baseName that does
	// not exist yet in directory: base.md, base-1.md, base-2.md, ...
	GenerateUniqueName(directory, baseName string) (string, error)
	// ReadRaw returns the raw bytes of a document.
	ReadRaw(path string) ([]byte, error)
}
