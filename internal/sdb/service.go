// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sdb

import (
	"context"
	"fmt"
	"sort"

	"github.com/pdiddy/screening-engine/internal/zotero"
	"github.com/pdiddy/screening-engine/pkg/types"
)

// Entry is a decision record together with the note that carries it.
// Raw preserves fields the typed record does not model so an edit never
// drops unknown keys written by other tools.
type Entry struct {
	Record      types.DecisionRecord
	Raw         map[string]any
	NoteKey     string
	NoteVersion int
}

// EditResult describes what an edit did, or would do under dry-run.
type EditResult struct {
	NoteKey string
	Changes []string
	Applied bool
}

// UpgradeStats counts the outcome of a schema upgrade sweep.
type UpgradeStats struct {
	Scanned  int
	Upgraded int
	Skipped  int
	Errors   int
}

// Service manages decision records in place on their parent items.
type Service struct {
	gw zotero.Gateway
}

// NewService builds a decision record service over a gateway.
func NewService(gw zotero.Gateway) *Service {
	return &Service{gw: gw}
}

// Inspect returns every valid decision entry attached to an item. Notes
// that fail classification are skipped silently.
func (s *Service) Inspect(ctx context.Context, itemKey string) ([]Entry, error) {
	children, err := s.gw.GetChildren(ctx, itemKey)
	if err != nil {
		return nil, fmt.Errorf("inspecting %s: %w", itemKey, err)
	}

	var entries []Entry
	for _, child := range children {
		if !child.IsNote() {
			continue
		}
		raw, ok := Classify(child.Note)
		if !ok {
			continue
		}
		rec, err := DecodeRecord(raw)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Record:      rec,
			Raw:         raw,
			NoteKey:     child.Key,
			NoteVersion: child.Version,
		})
	}
	return entries, nil
}

// Find returns the entry matching a persona and phase, if any.
func (s *Service) Find(ctx context.Context, itemKey, persona, phase string) (Entry, bool, error) {
	entries, err := s.Inspect(ctx, itemKey)
	if err != nil {
		return Entry{}, false, err
	}
	for _, e := range entries {
		if e.Record.Matches(persona, phase) {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

// Edit updates fields of the entry matching persona and phase. Nil
// update values are ignored. A missing target is an explicit NotFound,
// unlike classification where unmatched notes are silently skipped.
// Under dry-run the result lists the changes without writing.
func (s *Service) Edit(ctx context.Context, itemKey, persona, phase string, updates map[string]any, dryRun bool) (EditResult, error) {
	target, found, err := s.Find(ctx, itemKey, persona, phase)
	if err != nil {
		return EditResult{}, err
	}
	if !found {
		return EditResult{}, fmt.Errorf("no decision entry for persona %q phase %q on %s: %w",
			persona, phase, itemKey, zotero.ErrNotFound)
	}

	keys := make([]string, 0, len(updates))
	for k, v := range updates {
		if v != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	result := EditResult{NoteKey: target.NoteKey}
	for _, k := range keys {
		result.Changes = append(result.Changes,
			fmt.Sprintf("%s: %v -> %v", k, target.Raw[k], updates[k]))
		target.Raw[k] = updates[k]
	}

	if dryRun {
		return result, nil
	}

	content, err := Wrap(target.Raw)
	if err != nil {
		return EditResult{}, err
	}
	if err := s.gw.UpdateNote(ctx, target.NoteKey, target.NoteVersion, content); err != nil {
		return EditResult{}, fmt.Errorf("updating note %s: %w", target.NoteKey, err)
	}
	result.Applied = true
	return result, nil
}

// Upgrade scans every decision entry in a collection and rewrites
// entries below the current schema version: the version is bumped and
// the legacy comment field becomes reason_text. Per-note write failures
// are counted, not fatal. Dry-run counts upgradable entries as skipped.
func (s *Service) Upgrade(ctx context.Context, collectionName string, dryRun bool) (UpgradeStats, error) {
	var stats UpgradeStats

	colID, err := s.gw.CollectionIDByName(ctx, collectionName)
	if err != nil {
		return stats, err
	}
	items, err := s.gw.ListItems(ctx, colID, true)
	if err != nil {
		return stats, err
	}

	for _, item := range items {
		entries, err := s.Inspect(ctx, item.Key)
		if err != nil {
			stats.Errors++
			continue
		}
		for _, entry := range entries {
			stats.Scanned++
			if entry.Record.EffectiveVersion() >= types.SchemaVersion {
				continue
			}

			entry.Raw["audit_version"] = types.SchemaVersion
			if comment, ok := entry.Raw["comment"]; ok {
				if _, has := entry.Raw["reason_text"]; !has {
					entry.Raw["reason_text"] = comment
					delete(entry.Raw, "comment")
				}
			}

			if dryRun {
				stats.Skipped++
				continue
			}
			content, err := Wrap(entry.Raw)
			if err != nil {
				stats.Errors++
				continue
			}
			if err := s.gw.UpdateNote(ctx, entry.NoteKey, entry.NoteVersion, content); err != nil {
				stats.Errors++
				continue
			}
			stats.Upgraded++
		}
	}
	return stats, nil
}
