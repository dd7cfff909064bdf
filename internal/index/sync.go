package index

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"github.com/starford/planner/internal/models"
	"github.com/starford/planner/internal/parser"
	"github.com/starford/planner/internal/storage"
)

// Sync brings the index in line with a freshly built forest:
//   - new/changed cards are read, parsed and upserted
//   - indexed cards that are no longer in the forest are deleted
//
// Decks are not indexed. Per-card failures are logged and skipped.
func Sync(idx CardIndex, store storage.DocumentStore, forest []*models.Node, logger *slog.Logger) error {
	checksums, err := idx.AllChecksums()
	if err != nil {
		return err
	}

	seen := make(map[string]struct{})
	models.Walk(forest, func(n *models.Node) {
		if !models.IsCard(n) {
			return
		}
		// A card listed by several parents is indexed once.
		if _, dup := seen[n.Path]; dup {
			return
		}
		seen[n.Path] = struct{}{}

		data, err := store.ReadRaw(n.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", n.Path), slog.String("error", err.Error()))
			return
		}
		cs := checksumOf(data)
		if checksums[n.Path] == cs {
			return
		}
		if err := indexCard(idx, n, data, cs); err != nil {
			logger.Warn("sync: index failed", slog.String("path", n.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", n.Path))
		}
	})

	for p := range checksums {
		if _, ok := seen[p]; ok {
			continue
		}
		if err := idx.DeleteCard(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: removed stale", slog.String("path", p))
		}
	}
	return nil
}

// indexCard parses data and upserts the card into the index.
func indexCard(idx CardIndex, n *models.Node, data []byte, cs string) error {
	doc, err := parser.Parse(data)
	if err != nil {
		return err
	}
	title := doc.Title
	if title == "" {
		title = n.Name
	}
	return idx.UpsertCard(CardRow{
		Path:     n.Path,
		Name:     n.Name,
		Title:    title,
		Icon:     n.Icon,
		Parent:   n.ParentPath,
		Tags:     doc.Tags,
		Checksum: cs,
	}, doc.Body)
}

// checksumOf returns the hex-encoded SHA-256 digest of a document.
func checksumOf(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
