// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package collection implements item movement between collections,
// mutual-exclusivity pruning, scoped emptying and duplicate detection.
package collection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/pdiddy/screening-engine/internal/match"
	"github.com/pdiddy/screening-engine/internal/zotero"
	"github.com/pdiddy/screening-engine/pkg/types"
)

// ErrAmbiguousSource is returned when the source collection cannot be
// inferred because the item belongs to more than one candidate. No
// write happens in that case.
var ErrAmbiguousSource = errors.New("ambiguous source collection")

// PruneStats counts what a prune pass did to the secondary collection.
type PruneStats struct {
	Unlinked int
	Deleted  int
	Errors   int
}

// DuplicateGroup lists items sharing one normalized identity.
type DuplicateGroup struct {
	Identifier string
	Title      string
	Keys       []string
}

// Service manages collection membership.
type Service struct {
	gw       zotero.Gateway
	warnings io.Writer
}

// NewService builds a collection service. Warnings about non-fatal
// per-item failures go to w.
func NewService(gw zotero.Gateway, w io.Writer) *Service {
	if w == nil {
		w = io.Discard
	}
	return &Service{gw: gw, warnings: w}
}

// ResolveScoped resolves a collection name, optionally restricted to
// children of a named parent. Sibling collections in different parents
// may share a name, which is why the scoped form exists.
func (s *Service) ResolveScoped(ctx context.Context, name, parentName string) (string, error) {
	if parentName == "" {
		return s.gw.CollectionIDByName(ctx, name)
	}

	cols, err := s.gw.ListCollections(ctx)
	if err != nil {
		return "", err
	}
	parentKey := ""
	for _, c := range cols {
		if c.Name == parentName {
			parentKey = c.Key
			break
		}
	}
	if parentKey == "" {
		return "", fmt.Errorf("parent collection %q: %w", parentName, zotero.ErrNotFound)
	}
	for _, c := range cols {
		if c.Name == name && c.ParentKey == parentKey {
			return c.Key, nil
		}
	}
	return "", fmt.Errorf("collection %q under %q: %w", name, parentName, zotero.ErrNotFound)
}

// MoveItem moves one item into the destination collection. When
// sourceName is empty the source is inferred from the item's current
// collections minus the destination; inference must leave exactly one
// candidate. The identifier is tried as an item key first, then matched
// against DOI and arXiv IDs of the source collection's items.
func (s *Service) MoveItem(ctx context.Context, sourceName, destName, identifier string) error {
	destID, err := s.gw.CollectionIDByName(ctx, destName)
	if err != nil {
		return err
	}

	sourceID := ""
	if sourceName != "" {
		sourceID, err = s.gw.CollectionIDByName(ctx, sourceName)
		if err != nil {
			return err
		}
	}

	item, err := s.resolveItem(ctx, sourceID, identifier)
	if err != nil {
		return err
	}

	if sourceID == "" {
		sourceID, err = inferSource(item, destID)
		if err != nil {
			return err
		}
	}

	if item.InCollection(destID) && !item.InCollection(sourceID) {
		return nil
	}

	var cols []string
	for _, c := range item.Collections {
		if c != sourceID && c != destID {
			cols = append(cols, c)
		}
	}
	cols = append(cols, destID)

	err = s.gw.UpdateItem(ctx, item.Key, item.Version, map[string]any{"collections": cols})
	if err != nil {
		return fmt.Errorf("moving %s to %s: %w", item.Key, destName, err)
	}
	return nil
}

// resolveItem looks the identifier up as a key, then scans the source
// collection for a DOI or arXiv match. Without a source collection the
// scan fallback is unavailable.
func (s *Service) resolveItem(ctx context.Context, sourceID, identifier string) (types.Item, error) {
	item, err := s.gw.GetItem(ctx, identifier)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, zotero.ErrNotFound) {
		return types.Item{}, err
	}
	if sourceID == "" {
		return types.Item{}, fmt.Errorf("item %q: %w", identifier, zotero.ErrNotFound)
	}

	want := match.NormalizeID(identifier)
	items, err := s.gw.ListItems(ctx, sourceID, true)
	if err != nil {
		return types.Item{}, err
	}
	for _, it := range items {
		if it.DOI != "" && match.NormalizeDOI(it.DOI) == match.NormalizeDOI(identifier) {
			return it, nil
		}
		if it.ArxivID != "" && match.NormalizeID(it.ArxivID) == want {
			return it, nil
		}
	}
	return types.Item{}, fmt.Errorf("item %q in source collection: %w", identifier, zotero.ErrNotFound)
}

func inferSource(item types.Item, destID string) (string, error) {
	var candidates []string
	for _, c := range item.Collections {
		if c != destID {
			candidates = append(candidates, c)
		}
	}
	switch len(candidates) {
	case 1:
		return candidates[0], nil
	case 0:
		return "", fmt.Errorf("item %s has no source collection to leave: %w", item.Key, zotero.ErrNotFound)
	default:
		return "", fmt.Errorf("item %s is in %d collections besides the destination: %w",
			item.Key, len(candidates), ErrAmbiguousSource)
	}
}

// PruneIntersection enforces mutual exclusivity between two collections.
// Every item of the secondary collection that matches an identity in the
// primary is removed from the secondary: shared objects (same item key)
// lose the membership, separately imported duplicates (same DOI or arXiv
// ID under a different key) are deleted outright. Per-item failures are
// counted and reported as warnings, never abort the pass.
func (s *Service) PruneIntersection(ctx context.Context, primaryName, secondaryName string) (PruneStats, error) {
	var stats PruneStats

	primaryID, err := s.gw.CollectionIDByName(ctx, primaryName)
	if err != nil {
		return stats, err
	}
	secondaryID, err := s.gw.CollectionIDByName(ctx, secondaryName)
	if err != nil {
		return stats, err
	}

	primary, err := s.gw.ListItems(ctx, primaryID, true)
	if err != nil {
		return stats, err
	}

	keys := make(map[string]bool)
	dois := make(map[string]bool)
	arxivs := make(map[string]bool)
	for _, it := range primary {
		keys[it.Key] = true
		if it.DOI != "" {
			dois[match.NormalizeDOI(it.DOI)] = true
		}
		if it.ArxivID != "" {
			arxivs[match.NormalizeID(it.ArxivID)] = true
		}
	}

	secondary, err := s.gw.ListItems(ctx, secondaryID, true)
	if err != nil {
		return stats, err
	}

	for _, it := range secondary {
		switch {
		case keys[it.Key]:
			// Same object in both collections: drop the membership only.
			var cols []string
			for _, c := range it.Collections {
				if c != secondaryID {
					cols = append(cols, c)
				}
			}
			err := s.gw.UpdateItem(ctx, it.Key, it.Version, map[string]any{"collections": cols})
			if err != nil {
				stats.Errors++
				fmt.Fprintf(s.warnings, "warning: unlinking %s from %s: %v\n", it.Key, secondaryName, err)
				continue
			}
			stats.Unlinked++

		case it.DOI != "" && dois[match.NormalizeDOI(it.DOI)],
			it.ArxivID != "" && arxivs[match.NormalizeID(it.ArxivID)]:
			// Duplicate import under its own key: delete the object.
			if err := s.gw.DeleteItem(ctx, it.Key, it.Version); err != nil {
				stats.Errors++
				fmt.Fprintf(s.warnings, "warning: deleting duplicate %s: %v\n", it.Key, err)
				continue
			}
			stats.Deleted++
		}
	}
	return stats, nil
}

// EmptyCollection deletes every item in a collection, optionally scoped
// to a parent collection. Read-only gateways are vetoed before any
// enumeration.
func (s *Service) EmptyCollection(ctx context.Context, name, parentName string) (int, error) {
	if !s.gw.SupportsWrite() {
		return 0, fmt.Errorf("empty collection %q: %w", name, zotero.ErrReadOnly)
	}

	id, err := s.ResolveScoped(ctx, name, parentName)
	if err != nil {
		return 0, err
	}
	items, err := s.gw.ListItems(ctx, id, true)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, it := range items {
		if err := s.gw.DeleteItem(ctx, it.Key, it.Version); err != nil {
			fmt.Fprintf(s.warnings, "warning: deleting %s: %v\n", it.Key, err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

// FindDuplicates groups items across the named collections by their
// strongest available identity: normalized DOI, then arXiv ID, then
// normalized title. Groups with more than one item are duplicates.
func (s *Service) FindDuplicates(ctx context.Context, collectionNames []string) ([]DuplicateGroup, error) {
	buckets := make(map[string][]types.Item)

	for _, name := range collectionNames {
		id, err := s.gw.CollectionIDByName(ctx, name)
		if err != nil {
			if errors.Is(err, zotero.ErrNotFound) {
				fmt.Fprintf(s.warnings, "warning: collection %q not found, skipping\n", name)
				continue
			}
			return nil, err
		}
		items, err := s.gw.ListItems(ctx, id, true)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			key := identityKey(it)
			if key == "" {
				continue
			}
			buckets[key] = append(buckets[key], it)
		}
	}

	var groups []DuplicateGroup
	for key, items := range buckets {
		if len(items) < 2 {
			continue
		}
		g := DuplicateGroup{Identifier: key, Title: items[0].Title}
		for _, it := range items {
			g.Keys = append(g.Keys, it.Key)
		}
		sort.Strings(g.Keys)
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Identifier < groups[j].Identifier })
	return groups, nil
}

func identityKey(it types.Item) string {
	if it.DOI != "" {
		return "doi:" + match.NormalizeDOI(it.DOI)
	}
	if it.ArxivID != "" {
		return "arxiv:" + match.NormalizeID(it.ArxivID)
	}
	if t := match.NormalizeTitle(it.Title); t != "" {
		return "title:" + t
	}
	return ""
}
