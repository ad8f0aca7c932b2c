// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package zotero is the typed gateway to the remote bibliography service.
// It owns pagination, version tracking and the single-retry conflict
// policy; services above it never see raw HTTP.
package zotero

import (
	"context"

	"github.com/pdiddy/screening-engine/pkg/types"
)

// Collection is a named grouping of items in the remote library.
type Collection struct {
	Key       string
	Version   int
	Name      string
	ParentKey string
}

// Query holds remote search parameters for whole-library listing.
type Query struct {
	// Q is the free-text query; QMode selects the search mode
	// ("titleCreatorYear" or "everything").
	Q     string
	QMode string

	// ItemType filters by item type; Tag filters by tag.
	ItemType string
	Tag      string
}

// Gateway is the contract every backing store implements: the live HTTP
// client and the read-only SQLite mirror. All writes are guarded by the
// caller-supplied version token; a stale token is retried exactly once
// against the refetched version before ErrConflict is surfaced.
type Gateway interface {
	// SupportsWrite reports whether the gateway can mutate the library.
	// The offline mirror returns false; write paths must veto before
	// doing any work.
	SupportsWrite() bool

	GetItem(ctx context.Context, key string) (types.Item, error)
	ListItems(ctx context.Context, collectionID string, topOnly bool) ([]types.Item, error)
	SearchItems(ctx context.Context, q Query) ([]types.Item, error)
	GetChildren(ctx context.Context, itemKey string) ([]types.Child, error)

	ListCollections(ctx context.Context) ([]Collection, error)
	CollectionIDByName(ctx context.Context, name string) (string, error)
	CreateCollection(ctx context.Context, name, parentKey string) (string, error)

	CreateNote(ctx context.Context, parentKey, content string) error
	UpdateNote(ctx context.Context, noteKey string, version int, content string) error
	UpdateItem(ctx context.Context, key string, version int, patch map[string]any) error
	DeleteItem(ctx context.Context, key string, version int) error
}
