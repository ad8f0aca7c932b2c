// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package purge bulk-removes attachments, notes and tags from items.
// Every entry point is vetoed against read-only gateways before any
// enumeration, and defaults to dry-run at the CLI layer.
package purge

import (
	"context"
	"fmt"
	"io"

	"github.com/pdiddy/screening-engine/internal/sdb"
	"github.com/pdiddy/screening-engine/internal/zotero"
)

// Asset selects a purgeable asset class.
type Asset string

const (
	AssetFiles Asset = "files"
	AssetNotes Asset = "notes"
	AssetTags  Asset = "tags"
)

// AllAssets is the default asset selection.
var AllAssets = []Asset{AssetFiles, AssetNotes, AssetTags}

// Stats counts what a purge pass did. Dry runs count would-be deletions
// as skipped.
type Stats struct {
	Deleted int
	Skipped int
	Errors  int
}

func (s *Stats) merge(o Stats) {
	s.Deleted += o.Deleted
	s.Skipped += o.Skipped
	s.Errors += o.Errors
}

// NoteFilter narrows a note purge to decision notes, optionally of one
// screening phase.
type NoteFilter struct {
	SDBOnly bool
	Phase   string
}

func (f NoteFilter) matches(note string) bool {
	if !f.SDBOnly && f.Phase == "" {
		return true
	}
	raw, ok := sdb.Classify(note)
	if f.SDBOnly && !ok {
		return false
	}
	if f.Phase != "" {
		if !ok {
			return false
		}
		phase, _ := raw["phase"].(string)
		return phase == f.Phase
	}
	return true
}

// Service performs bulk asset removal.
type Service struct {
	gw       zotero.Gateway
	warnings io.Writer
}

// NewService builds a purge service.
func NewService(gw zotero.Gateway, w io.Writer) *Service {
	if w == nil {
		w = io.Discard
	}
	return &Service{gw: gw, warnings: w}
}

// veto rejects any purge against a read-only gateway, dry-run included.
func (s *Service) veto(op string) error {
	if !s.gw.SupportsWrite() {
		return fmt.Errorf("%s: %w", op, zotero.ErrReadOnly)
	}
	return nil
}

// PurgeAttachments deletes all attachments under the given parent items.
func (s *Service) PurgeAttachments(ctx context.Context, itemKeys []string, dryRun bool) (Stats, error) {
	if err := s.veto("purge attachments"); err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, parent := range itemKeys {
		children, err := s.gw.GetChildren(ctx, parent)
		if err != nil {
			stats.Errors++
			fmt.Fprintf(s.warnings, "warning: listing children of %s: %v\n", parent, err)
			continue
		}
		for _, c := range children {
			if c.ItemType != "attachment" {
				continue
			}
			s.deleteChild(ctx, c.Key, c.Version, dryRun, &stats)
		}
	}
	return stats, nil
}

// PurgeNotes deletes notes under the given parent items, optionally
// restricted to decision notes of one phase.
func (s *Service) PurgeNotes(ctx context.Context, itemKeys []string, filter NoteFilter, dryRun bool) (Stats, error) {
	if err := s.veto("purge notes"); err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, parent := range itemKeys {
		children, err := s.gw.GetChildren(ctx, parent)
		if err != nil {
			stats.Errors++
			fmt.Fprintf(s.warnings, "warning: listing children of %s: %v\n", parent, err)
			continue
		}
		for _, c := range children {
			if !c.IsNote() || !filter.matches(c.Note) {
				continue
			}
			s.deleteChild(ctx, c.Key, c.Version, dryRun, &stats)
		}
	}
	return stats, nil
}

func (s *Service) deleteChild(ctx context.Context, key string, version int, dryRun bool, stats *Stats) {
	if dryRun {
		stats.Skipped++
		return
	}
	if err := s.gw.DeleteItem(ctx, key, version); err != nil {
		stats.Errors++
		fmt.Fprintf(s.warnings, "warning: deleting %s: %v\n", key, err)
		return
	}
	stats.Deleted++
}

// PurgeTags removes tags from the given items. An empty tagName removes
// every tag; otherwise only items carrying that tag are touched.
func (s *Service) PurgeTags(ctx context.Context, itemKeys []string, tagName string, dryRun bool) (Stats, error) {
	if err := s.veto("purge tags"); err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, key := range itemKeys {
		item, err := s.gw.GetItem(ctx, key)
		if err != nil {
			stats.Errors++
			fmt.Fprintf(s.warnings, "warning: fetching %s: %v\n", key, err)
			continue
		}
		if len(item.Tags) == 0 {
			continue
		}

		var kept []string
		if tagName != "" {
			if !item.HasTag(tagName) {
				continue
			}
			for _, t := range item.Tags {
				if t != tagName {
					kept = append(kept, t)
				}
			}
		}

		if dryRun {
			stats.Skipped++
			continue
		}
		payload := make([]map[string]string, 0, len(kept))
		for _, t := range kept {
			payload = append(payload, map[string]string{"tag": t})
		}
		if err := s.gw.UpdateItem(ctx, item.Key, item.Version, map[string]any{"tags": payload}); err != nil {
			stats.Errors++
			fmt.Fprintf(s.warnings, "warning: retagging %s: %v\n", key, err)
			continue
		}
		stats.Deleted++
	}
	return stats, nil
}

// PurgeItemAssets purges the selected asset classes from one item.
func (s *Service) PurgeItemAssets(ctx context.Context, itemKey string, assets []Asset, dryRun bool) (Stats, error) {
	return s.purgeAssets(ctx, []string{itemKey}, assets, dryRun)
}

// PurgeCollectionAssets purges the selected asset classes from every
// item of a collection. With recursive set, child items are included.
func (s *Service) PurgeCollectionAssets(ctx context.Context, collectionName string, assets []Asset, recursive, dryRun bool) (Stats, error) {
	if err := s.veto("purge collection assets"); err != nil {
		return Stats{}, err
	}

	colID, err := s.gw.CollectionIDByName(ctx, collectionName)
	if err != nil {
		return Stats{}, err
	}
	items, err := s.gw.ListItems(ctx, colID, !recursive)
	if err != nil {
		return Stats{}, err
	}

	keys := make([]string, 0, len(items))
	for _, it := range items {
		keys = append(keys, it.Key)
	}
	return s.purgeAssets(ctx, keys, assets, dryRun)
}

func (s *Service) purgeAssets(ctx context.Context, itemKeys []string, assets []Asset, dryRun bool) (Stats, error) {
	if err := s.veto("purge assets"); err != nil {
		return Stats{}, err
	}
	if len(assets) == 0 {
		assets = AllAssets
	}

	selected := make(map[Asset]bool, len(assets))
	for _, a := range assets {
		selected[a] = true
	}

	var combined Stats
	if selected[AssetFiles] {
		st, err := s.PurgeAttachments(ctx, itemKeys, dryRun)
		if err != nil {
			return combined, err
		}
		combined.merge(st)
	}
	if selected[AssetNotes] {
		st, err := s.PurgeNotes(ctx, itemKeys, NoteFilter{}, dryRun)
		if err != nil {
			return combined, err
		}
		combined.merge(st)
	}
	if selected[AssetTags] {
		st, err := s.PurgeTags(ctx, itemKeys, "", dryRun)
		if err != nil {
			return combined, err
		}
		combined.merge(st)
	}
	return combined, nil
}
