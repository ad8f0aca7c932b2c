// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package zotero

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/screening-engine/pkg/types"
)

// OfflineStore is a read-only Gateway over a local SQLite mirror of the
// library. It exists so audits and inspection work without network
// access; every write method fails with ErrReadOnly. PurgeService and
// other write paths must check SupportsWrite before doing anything.
type OfflineStore struct {
	db *sql.DB
}

// OpenOffline opens the mirror database read-only.
func OpenOffline(path string) (*OfflineStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("offline mirror %s: %w", path, ErrNotFound)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening mirror: %w", err)
	}
	return &OfflineStore{db: db}, nil
}

// Close releases the database handle.
func (s *OfflineStore) Close() error { return s.db.Close() }

// SupportsWrite reports that the mirror cannot mutate the library.
func (s *OfflineStore) SupportsWrite() bool { return false }

const itemColumns = `key, version, item_type, title, abstract, doi, arxiv_id, url, date, authors, tags`

func scanItem(row interface{ Scan(...any) error }) (types.Item, error) {
	var it types.Item
	var abstract, doi, arxiv, itemURL, date sql.NullString
	var authorsJSON, tagsJSON sql.NullString
	err := row.Scan(&it.Key, &it.Version, &it.ItemType, &it.Title,
		&abstract, &doi, &arxiv, &itemURL, &date, &authorsJSON, &tagsJSON)
	if err != nil {
		return types.Item{}, err
	}
	it.Abstract = abstract.String
	it.DOI = doi.String
	it.ArxivID = arxiv.String
	it.URL = itemURL.String
	it.Date = date.String
	if authorsJSON.Valid && authorsJSON.String != "" {
		// Malformed stored lists are ignored, not fatal.
		_ = json.Unmarshal([]byte(authorsJSON.String), &it.Authors)
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		_ = json.Unmarshal([]byte(tagsJSON.String), &it.Tags)
	}
	return it, nil
}

func (s *OfflineStore) attachCollections(ctx context.Context, it *types.Item) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT collection_key FROM item_collections WHERE item_key = ?`, it.Key)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return err
		}
		it.Collections = append(it.Collections, key)
	}
	return rows.Err()
}

// GetItem fetches one item from the mirror.
func (s *OfflineStore) GetItem(ctx context.Context, key string) (types.Item, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE key = ?`, key)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Item{}, fmt.Errorf("item %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return types.Item{}, fmt.Errorf("reading item %s: %w", key, err)
	}
	if err := s.attachCollections(ctx, &it); err != nil {
		return types.Item{}, fmt.Errorf("reading collections of %s: %w", key, err)
	}
	return it, nil
}

func (s *OfflineStore) queryItems(ctx context.Context, query string, args ...any) ([]types.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []types.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range items {
		if err := s.attachCollections(ctx, &items[i]); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// ListItems returns the items of a collection. The mirror only stores
// top-level items, so topOnly does not change the result.
func (s *OfflineStore) ListItems(ctx context.Context, collectionID string, topOnly bool) ([]types.Item, error) {
	_ = topOnly
	return s.queryItems(ctx,
		`SELECT `+itemColumns+` FROM items
		 WHERE key IN (SELECT item_key FROM item_collections WHERE collection_key = ?)
		 ORDER BY key`, collectionID)
}

// SearchItems lists mirror items; only the Tag filter is applied locally.
func (s *OfflineStore) SearchItems(ctx context.Context, q Query) ([]types.Item, error) {
	items, err := s.queryItems(ctx, `SELECT `+itemColumns+` FROM items ORDER BY key`)
	if err != nil {
		return nil, err
	}
	if q.Tag == "" {
		return items, nil
	}
	var filtered []types.Item
	for _, it := range items {
		if it.HasTag(q.Tag) {
			filtered = append(filtered, it)
		}
	}
	return filtered, nil
}

// GetChildren returns the notes and attachments mirrored for an item.
func (s *OfflineStore) GetChildren(ctx context.Context, itemKey string) ([]types.Child, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, version, item_type, note, link_mode, filename, content_type, title
		 FROM children WHERE parent_key = ? ORDER BY key`, itemKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var children []types.Child
	for rows.Next() {
		var c types.Child
		var note, linkMode, filename, contentType, title sql.NullString
		if err := rows.Scan(&c.Key, &c.Version, &c.ItemType, &note, &linkMode, &filename, &contentType, &title); err != nil {
			return nil, err
		}
		c.Note = note.String
		c.LinkMode = linkMode.String
		c.Filename = filename.String
		c.ContentType = contentType.String
		c.Title = title.String
		children = append(children, c)
	}
	return children, rows.Err()
}

// ListCollections returns every mirrored collection.
func (s *OfflineStore) ListCollections(ctx context.Context) ([]Collection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, version, name, COALESCE(parent_key, '') FROM collections ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Collection
	for rows.Next() {
		var c Collection
		if err := rows.Scan(&c.Key, &c.Version, &c.Name, &c.ParentKey); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// CollectionIDByName resolves a collection name in the mirror.
func (s *OfflineStore) CollectionIDByName(ctx context.Context, name string) (string, error) {
	var key string
	err := s.db.QueryRowContext(ctx,
		`SELECT key FROM collections WHERE name = ?`, name).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("collection %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return key, nil
}

// --- writes: all vetoed ---

// CreateCollection fails: the mirror is read-only.
func (s *OfflineStore) CreateCollection(ctx context.Context, name, parentKey string) (string, error) {
	return "", fmt.Errorf("create collection %q: %w", name, ErrReadOnly)
}

// CreateNote fails: the mirror is read-only.
func (s *OfflineStore) CreateNote(ctx context.Context, parentKey, content string) error {
	return fmt.Errorf("create note on %s: %w", parentKey, ErrReadOnly)
}

// UpdateNote fails: the mirror is read-only.
func (s *OfflineStore) UpdateNote(ctx context.Context, noteKey string, version int, content string) error {
	return fmt.Errorf("update note %s: %w", noteKey, ErrReadOnly)
}

// UpdateItem fails: the mirror is read-only.
func (s *OfflineStore) UpdateItem(ctx context.Context, key string, version int, patch map[string]any) error {
	return fmt.Errorf("update item %s: %w", key, ErrReadOnly)
}

// DeleteItem fails: the mirror is read-only.
func (s *OfflineStore) DeleteItem(ctx context.Context, key string, version int) error {
	return fmt.Errorf("delete item %s: %w", key, ErrReadOnly)
}
