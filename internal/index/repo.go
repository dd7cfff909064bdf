package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CardRow represents a row in the cards table.
type CardRow struct {
	Path      string
	Name      string
	Title     string
	Icon      string
	Parent    string
	Tags      []string
	Checksum  string
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// UpsertCard inserts or replaces a card and its FTS entry within a transaction.
func (db *DB) UpsertCard(c CardRow, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags)
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}

	_, err = tx.Exec(`
		INSERT INTO cards (path, name, title, icon, parent, tags, checksum, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name       = excluded.name,
			title      = excluded.title,
			icon       = excluded.icon,
			parent     = excluded.parent,
			tags       = excluded.tags,
			checksum   = excluded.checksum,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, c.Path, c.Name, c.Title, c.Icon, c.Parent, string(tagsJSON), c.Checksum, body, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert card: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, c.Path, c.Title, body, c.Tags); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteCard removes a card and its FTS entry.
func (db *DB) DeleteCard(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM cards WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete card: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a card, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM cards WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum: %w", err)
	}
	return cs, nil
}

// GetCard returns the indexed row for path, or nil if the card is not indexed.
func (db *DB) GetCard(path string) (*CardRow, error) {
	var (
		c        CardRow
		tagsJSON string
	)
	err := db.conn.QueryRow(`
		SELECT path, name, title, icon, parent, tags, checksum, updated_at
		FROM cards WHERE path = ?
	`, path).Scan(&c.Path, &c.Name, &c.Title, &c.Icon, &c.Parent, &tagsJSON, &c.Checksum, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: get card: %w", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &c.Tags); err != nil {
		return nil, fmt.Errorf("index: decode tags: %w", err)
	}
	return &c, nil
}

// AllChecksums returns the checksum of every indexed card keyed by path.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM cards`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
