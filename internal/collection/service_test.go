// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package collection_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/screening-engine/internal/collection"
	"github.com/pdiddy/screening-engine/internal/zotero"
	"github.com/pdiddy/screening-engine/internal/zoterotest"
	"github.com/pdiddy/screening-engine/pkg/types"
)

func newLibrary(t *testing.T) (*zoterotest.Fake, *collection.Service) {
	t.Helper()
	fake := zoterotest.New()
	fake.AddCollection("RAW", "Raw Imports", "")
	fake.AddCollection("INC", "Included", "")
	fake.AddCollection("EXC", "Excluded", "")
	return fake, collection.NewService(fake, nil)
}

func TestMoveItemByKey(t *testing.T) {
	fake, svc := newLibrary(t)
	fake.AddItem(types.Item{Key: "K1", Title: "Paxos", Collections: []string{"RAW"}})

	err := svc.MoveItem(context.Background(), "Raw Imports", "Included", "K1")
	require.NoError(t, err)

	it, _ := fake.Item("K1")
	assert.Equal(t, []string{"INC"}, it.Collections)
}

func TestMoveItemInfersSingleSource(t *testing.T) {
	fake, svc := newLibrary(t)
	fake.AddItem(types.Item{Key: "K1", Title: "Paxos", Collections: []string{"RAW"}})

	err := svc.MoveItem(context.Background(), "", "Included", "K1")
	require.NoError(t, err)

	it, _ := fake.Item("K1")
	assert.Equal(t, []string{"INC"}, it.Collections)
}

func TestMoveItemAmbiguousSourceWritesNothing(t *testing.T) {
	fake, svc := newLibrary(t)
	fake.AddItem(types.Item{Key: "K1", Title: "Paxos", Collections: []string{"RAW", "EXC"}})

	err := svc.MoveItem(context.Background(), "", "Included", "K1")
	assert.ErrorIs(t, err, collection.ErrAmbiguousSource)

	it, _ := fake.Item("K1")
	assert.Equal(t, []string{"RAW", "EXC"}, it.Collections, "failed move must not write")
	assert.Empty(t, fake.ItemPatches)
}

func TestMoveItemFallsBackToIdentifierScan(t *testing.T) {
	fake, svc := newLibrary(t)
	fake.AddItem(types.Item{Key: "K1", Title: "Paxos", DOI: "10.1145/42", Collections: []string{"RAW"}})
	fake.AddItem(types.Item{Key: "K2", Title: "Raft", ArxivID: "1405.0001", Collections: []string{"RAW"}})

	ctx := context.Background()

	err := svc.MoveItem(ctx, "Raw Imports", "Included", "https://doi.org/10.1145/42")
	require.NoError(t, err)
	it, _ := fake.Item("K1")
	assert.Equal(t, []string{"INC"}, it.Collections)

	err = svc.MoveItem(ctx, "Raw Imports", "Included", "1405.0001")
	require.NoError(t, err)
	it, _ = fake.Item("K2")
	assert.Equal(t, []string{"INC"}, it.Collections)
}

func TestMoveItemUnknownIdentifier(t *testing.T) {
	_, svc := newLibrary(t)

	err := svc.MoveItem(context.Background(), "Raw Imports", "Included", "NOPE")
	assert.ErrorIs(t, err, zotero.ErrNotFound)
}

func TestMoveItemAlreadyAtDestination(t *testing.T) {
	fake, svc := newLibrary(t)
	fake.AddItem(types.Item{Key: "K1", Title: "Paxos", Collections: []string{"INC"}})

	err := svc.MoveItem(context.Background(), "Raw Imports", "Included", "K1")
	require.NoError(t, err)
	assert.Empty(t, fake.ItemPatches, "no-op move must not write")
}

func TestPruneIntersection(t *testing.T) {
	fake, svc := newLibrary(t)
	// Shared object in both collections.
	fake.AddItem(types.Item{Key: "A", Title: "Paper A", Collections: []string{"INC", "EXC"}})
	// Separate duplicate import of the same DOI.
	fake.AddItem(types.Item{Key: "B1", Title: "Paper B", DOI: "10.1/b", Collections: []string{"INC"}})
	fake.AddItem(types.Item{Key: "B2", Title: "Paper B", DOI: "https://doi.org/10.1/B", Collections: []string{"EXC"}})
	// Untouched: only in the secondary, no overlap.
	fake.AddItem(types.Item{Key: "C", Title: "Paper C", Collections: []string{"EXC"}})

	ctx := context.Background()

	stats, err := svc.PruneIntersection(ctx, "Included", "Excluded")
	require.NoError(t, err)
	assert.Equal(t, collection.PruneStats{Unlinked: 1, Deleted: 1}, stats)

	a, _ := fake.Item("A")
	assert.Equal(t, []string{"INC"}, a.Collections)
	_, exists := fake.Item("B2")
	assert.False(t, exists, "duplicate import must be deleted")
	_, exists = fake.Item("C")
	assert.True(t, exists)

	// A second pass finds nothing left to prune.
	stats, err = svc.PruneIntersection(ctx, "Included", "Excluded")
	require.NoError(t, err)
	assert.Equal(t, collection.PruneStats{}, stats)
}

func TestEmptyCollectionScoped(t *testing.T) {
	fake, svc := newLibrary(t)
	fake.AddCollection("SUB1", "Rejected", "INC")
	fake.AddCollection("SUB2", "Rejected", "EXC")
	fake.AddItem(types.Item{Key: "K1", Collections: []string{"SUB1"}})
	fake.AddItem(types.Item{Key: "K2", Collections: []string{"SUB2"}})

	n, err := svc.EmptyCollection(context.Background(), "Rejected", "Excluded")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, exists := fake.Item("K2")
	assert.False(t, exists)
	_, exists = fake.Item("K1")
	assert.True(t, exists, "same-named sibling under another parent must survive")
}

func TestEmptyCollectionReadOnlyVeto(t *testing.T) {
	fake, svc := newLibrary(t)
	fake.ReadOnly = true

	_, err := svc.EmptyCollection(context.Background(), "Included", "")
	assert.ErrorIs(t, err, zotero.ErrReadOnly)
}

func TestFindDuplicates(t *testing.T) {
	fake, svc := newLibrary(t)
	fake.AddItem(types.Item{Key: "D1", Title: "Paper D", DOI: "10.1/d", Collections: []string{"RAW"}})
	fake.AddItem(types.Item{Key: "D2", Title: "Paper D copy", DOI: "DOI:10.1/D", Collections: []string{"INC"}})
	fake.AddItem(types.Item{Key: "T1", Title: "Shared Title!", Collections: []string{"RAW"}})
	fake.AddItem(types.Item{Key: "T2", Title: "shared title", Collections: []string{"RAW"}})
	fake.AddItem(types.Item{Key: "U1", Title: "Unique", Collections: []string{"RAW"}})

	groups, err := svc.FindDuplicates(context.Background(), []string{"Raw Imports", "Included"})
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, "doi:10.1/d", groups[0].Identifier)
	assert.Equal(t, []string{"D1", "D2"}, groups[0].Keys)
	assert.Equal(t, "title:shared title", groups[1].Identifier)
	assert.Equal(t, []string{"T1", "T2"}, groups[1].Keys)
}
