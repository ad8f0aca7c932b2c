// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package zotero

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMirror seeds a mirror database on disk and returns its path. The
// store itself opens the file read-only, so seeding uses a separate
// read-write connection.
func newMirror(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mirror.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	stmts := []string{
		`CREATE TABLE items (
			key TEXT PRIMARY KEY, version INTEGER, item_type TEXT, title TEXT,
			abstract TEXT, doi TEXT, arxiv_id TEXT, url TEXT, date TEXT,
			authors TEXT, tags TEXT)`,
		`CREATE TABLE item_collections (item_key TEXT, collection_key TEXT)`,
		`CREATE TABLE children (
			key TEXT PRIMARY KEY, parent_key TEXT, version INTEGER, item_type TEXT,
			note TEXT, link_mode TEXT, filename TEXT, content_type TEXT, title TEXT)`,
		`CREATE TABLE collections (key TEXT PRIMARY KEY, version INTEGER, name TEXT, parent_key TEXT)`,

		`INSERT INTO items VALUES
			('K1', 3, 'journalArticle', 'Paxos Made Live', 'abs', '10.1145/1.1', '', '', '2007',
			 '["Ada Lovelace"]', '["phase:full_text"]'),
			('K2', 1, 'journalArticle', 'Raft', '', '', '1405.0001', '', '2014', NULL, NULL)`,
		`INSERT INTO item_collections VALUES ('K1', 'COLA'), ('K2', 'COLA'), ('K2', 'COLB')`,
		`INSERT INTO children VALUES
			('C1', 'K1', 2, 'note', '<div>{}</div>', '', '', '', ''),
			('C2', 'K1', 1, 'attachment', '', 'imported_file', 'paper.pdf', 'application/pdf', 'Full Text')`,
		`INSERT INTO collections VALUES ('COLA', 1, 'Screening', NULL), ('COLB', 1, 'Included', 'COLA')`,
	}
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return path
}

func TestOfflineStoreReads(t *testing.T) {
	store, err := OpenOffline(newMirror(t))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	assert.False(t, store.SupportsWrite())

	it, err := store.GetItem(ctx, "K1")
	require.NoError(t, err)
	assert.Equal(t, "Paxos Made Live", it.Title)
	assert.Equal(t, "10.1145/1.1", it.DOI)
	assert.Equal(t, []string{"Ada Lovelace"}, it.Authors)
	assert.Equal(t, []string{"COLA"}, it.Collections)
	assert.True(t, it.HasTag("phase:full_text"))

	_, err = store.GetItem(ctx, "MISSING")
	assert.ErrorIs(t, err, ErrNotFound)

	items, err := store.ListItems(ctx, "COLA", true)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "K1", items[0].Key)

	items, err = store.ListItems(ctx, "COLB", true)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "K2", items[0].Key)

	tagged, err := store.SearchItems(ctx, Query{Tag: "phase:full_text"})
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, "K1", tagged[0].Key)

	children, err := store.GetChildren(ctx, "K1")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.True(t, children[0].IsNote())
	assert.True(t, children[1].IsPDFAttachment())

	id, err := store.CollectionIDByName(ctx, "Included")
	require.NoError(t, err)
	assert.Equal(t, "COLB", id)

	cols, err := store.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, cols, 2)
	byKey := make(map[string]Collection, len(cols))
	for _, c := range cols {
		byKey[c.Key] = c
	}
	assert.Equal(t, "COLA", byKey["COLB"].ParentKey)
	assert.Equal(t, "", byKey["COLA"].ParentKey)
}

func TestOfflineStoreVetoesWrites(t *testing.T) {
	store, err := OpenOffline(newMirror(t))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	_, err = store.CreateCollection(ctx, "New", "")
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.ErrorIs(t, store.CreateNote(ctx, "K1", "x"), ErrReadOnly)
	assert.ErrorIs(t, store.UpdateNote(ctx, "C1", 2, "x"), ErrReadOnly)
	assert.ErrorIs(t, store.UpdateItem(ctx, "K1", 3, nil), ErrReadOnly)
	assert.ErrorIs(t, store.DeleteItem(ctx, "K1", 3), ErrReadOnly)
}

func TestOpenOfflineMissingFile(t *testing.T) {
	_, err := OpenOffline(filepath.Join(t.TempDir(), "nope.db"))
	assert.ErrorIs(t, err, ErrNotFound)
}
