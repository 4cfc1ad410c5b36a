// Package contentstore implements the local multi-tenant content collection:
// one SQLite database per tenant site, each carrying published content items
// with an FTS5 index for the primary lookup path.
package contentstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/fedsearch/fedsearch/pkg/log"
)

var logger = log.ForService("contentstore")

// Item is one content entry in a tenant site.
type Item struct {
	ID         string    `json:"id"`
	Site       string    `json:"site"`
	PostType   string    `json:"post_type"`
	Status     string    `json:"status"`
	Title      string    `json:"title"`
	Body       string    `json:"body,omitempty"`
	URL        string    `json:"url"`
	ParentID   string    `json:"parent_id,omitempty"`
	ModifiedAt time.Time `json:"modified_at"`
}

// SiteInfo describes a tenant site's metadata.
type SiteInfo struct {
	Name   string `json:"name"`
	Public bool   `json:"public"`
	URL    string `json:"url,omitempty"`
}

// SiteStore wraps the SQLite database of a single tenant site.
type SiteStore struct {
	db   *sql.DB
	site string
}

func newSiteStore(dbPath, site string) (*SiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening site database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA temp_store = memory",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			if cerr := db.Close(); cerr != nil {
				logger.Warnf("closing site database after pragma failure: %v", cerr)
			}
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	s := &SiteStore{db: db, site: site}
	if err := s.initializeSchema(); err != nil {
		if cerr := db.Close(); cerr != nil {
			logger.Warnf("closing site database after schema failure: %v", cerr)
		}
		return nil, err
	}
	return s, nil
}

func (s *SiteStore) initializeSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS site_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS items (
			id          TEXT PRIMARY KEY,
			post_type   TEXT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'publish',
			title       TEXT NOT NULL,
			body        TEXT NOT NULL DEFAULT '',
			url         TEXT NOT NULL,
			parent_id   TEXT NOT NULL DEFAULT '',
			modified_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_items_type_status ON items(post_type, status);
		CREATE INDEX IF NOT EXISTS idx_items_parent ON items(parent_id);
		CREATE VIRTUAL TABLE IF NOT EXISTS items_fts USING fts5(title, body);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("initializing schema for site %s: %w", s.site, err)
	}
	return nil
}

func (s *SiteStore) Close() error {
	return s.db.Close()
}

// Site returns the tenant site name this store belongs to.
func (s *SiteStore) Site() string {
	return s.site
}

// SetMeta stores the site's metadata (public/active flag, base URL).
func (s *SiteStore) SetMeta(info SiteInfo) error {
	public := "0"
	if info.Public {
		public = "1"
	}
	meta := map[string]string{
		"name":   info.Name,
		"public": public,
		"url":    info.URL,
	}
	for key, value := range meta {
		_, err := s.db.Exec(
			`INSERT OR REPLACE INTO site_meta (key, value) VALUES (?, ?)`,
			key, value,
		)
		if err != nil {
			return fmt.Errorf("storing site meta %s: %w", key, err)
		}
	}
	return nil
}

// Meta returns the site's stored metadata. Missing keys fall back to the
// site name with the public flag off.
func (s *SiteStore) Meta() (SiteInfo, error) {
	info := SiteInfo{Name: s.site}

	rows, err := s.db.Query(`SELECT key, value FROM site_meta`)
	if err != nil {
		return info, fmt.Errorf("reading site meta: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Warnf("closing meta rows: %v", err)
		}
	}()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return info, fmt.Errorf("scanning site meta: %w", err)
		}
		switch key {
		case "name":
			if value != "" {
				info.Name = value
			}
		case "public":
			info.Public = value == "1"
		case "url":
			info.URL = value
		}
	}
	return info, rows.Err()
}

// UpsertItem creates or replaces a content item and keeps the FTS shadow
// table in sync within the same transaction.
func (s *SiteStore) UpsertItem(item Item) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				logger.Warnf("rolling back upsert: %v", err)
			}
		}
	}()

	// Drop the stale FTS row before the REPLACE assigns a new rowid.
	if _, err := tx.Exec(
		`DELETE FROM items_fts WHERE rowid = (SELECT rowid FROM items WHERE id = ?)`,
		item.ID,
	); err != nil {
		return fmt.Errorf("clearing FTS row for item %s: %w", item.ID, err)
	}

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO items (id, post_type, status, title, body, url, parent_id, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.PostType, item.Status, item.Title, item.Body, item.URL, item.ParentID, item.ModifiedAt,
	); err != nil {
		return fmt.Errorf("inserting item %s: %w", item.ID, err)
	}

	if _, err := tx.Exec(`
		INSERT INTO items_fts (rowid, title, body)
		VALUES ((SELECT rowid FROM items WHERE id = ?), ?, ?)`,
		item.ID, item.Title, item.Body,
	); err != nil {
		return fmt.Errorf("indexing item %s: %w", item.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing item %s: %w", item.ID, err)
	}
	committed = true
	return nil
}

// DeleteItem removes an item and its FTS row. Deleting an unknown id is not
// an error.
func (s *SiteStore) DeleteItem(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				logger.Warnf("rolling back delete: %v", err)
			}
		}
	}()

	if _, err := tx.Exec(
		`DELETE FROM items_fts WHERE rowid = (SELECT rowid FROM items WHERE id = ?)`, id,
	); err != nil {
		return fmt.Errorf("clearing FTS row for item %s: %w", id, err)
	}
	if _, err := tx.Exec(`DELETE FROM items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting item %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete of %s: %w", id, err)
	}
	committed = true
	return nil
}

// SearchItems finds published items of the given post type whose title or
// body matches the query, newest first, at most limit rows.
//
// Lookup is two-tier: the FTS5 index is tried first; when it returns zero
// rows (tokenization misses substrings inside words, and some installations
// have shown silent FTS misses) a direct LIKE scan over title and body runs
// instead. The contract is: never return fewer results than the scan would
// find.
func (s *SiteStore) SearchItems(postType, query string, limit int) ([]Item, error) {
	items, err := s.searchFTS(postType, query, limit)
	if err != nil {
		// An FTS syntax error on odd input is treated as zero rows; the
		// fallback scan still runs.
		logger.Debugf("site %s: FTS lookup failed, falling back to scan: %v", s.site, err)
		items = nil
	}
	if len(items) > 0 {
		return items, nil
	}
	return s.searchScan(postType, query, limit)
}

func (s *SiteStore) searchFTS(postType, query string, limit int) ([]Item, error) {
	rows, err := s.db.Query(`
		SELECT i.id, i.post_type, i.status, i.title, i.url, i.parent_id, i.modified_at
		FROM items i
		JOIN items_fts f ON i.rowid = f.rowid
		WHERE items_fts MATCH ?
		  AND i.post_type = ?
		  AND i.status = 'publish'
		ORDER BY bm25(items_fts), i.modified_at DESC
		LIMIT ?`,
		quoteFTSQuery(query), postType, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying FTS index: %w", err)
	}
	return s.scanItems(rows)
}

func (s *SiteStore) searchScan(postType, query string, limit int) ([]Item, error) {
	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.Query(`
		SELECT id, post_type, status, title, url, parent_id, modified_at
		FROM items
		WHERE post_type = ?
		  AND status = 'publish'
		  AND (title LIKE ? ESCAPE '\' OR body LIKE ? ESCAPE '\')
		ORDER BY modified_at DESC
		LIMIT ?`,
		postType, pattern, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning items: %w", err)
	}
	return s.scanItems(rows)
}

// ItemsByParent returns published items whose parent is parentID, ordered by
// title. Used for hierarchical page listings.
func (s *SiteStore) ItemsByParent(postType, parentID string) ([]Item, error) {
	rows, err := s.db.Query(`
		SELECT id, post_type, status, title, url, parent_id, modified_at
		FROM items
		WHERE post_type = ?
		  AND status = 'publish'
		  AND parent_id = ?
		ORDER BY title`,
		postType, parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying items by parent: %w", err)
	}
	return s.scanItems(rows)
}

func (s *SiteStore) scanItems(rows *sql.Rows) ([]Item, error) {
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Warnf("closing item rows: %v", err)
		}
	}()

	var items []Item
	for rows.Next() {
		item := Item{Site: s.site}
		err := rows.Scan(&item.ID, &item.PostType, &item.Status, &item.Title,
			&item.URL, &item.ParentID, &item.ModifiedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning item row: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CountItems returns the number of items stored for this site.
func (s *SiteStore) CountItems() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return count, nil
}

// quoteFTSQuery wraps each query token in double quotes so user input is
// matched literally instead of being parsed as FTS5 syntax.
func quoteFTSQuery(query string) string {
	words := strings.Fields(query)
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		quoted = append(quoted, `"`+strings.ReplaceAll(w, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " ")
}

// escapeLike escapes LIKE wildcards in user input.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
