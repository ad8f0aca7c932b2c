// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package snapshot captures collection state for drift detection and
// rebuilds reviewer CSV files from the decision notes in the library.
package snapshot

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/screening-engine/internal/sdb"
	"github.com/pdiddy/screening-engine/internal/zotero"
)

// ItemState is one item's membership state inside a snapshot.
// Collections are stored by name so snapshots stay readable after
// collection keys change across library rebuilds.
type ItemState struct {
	Key         string   `yaml:"key"`
	Title       string   `yaml:"title"`
	Version     int      `yaml:"version"`
	Collections []string `yaml:"collections"`
	Tags        []string `yaml:"tags,omitempty"`
}

// Snapshot is a point-in-time record of a collection's items.
type Snapshot struct {
	Collection string      `yaml:"collection"`
	TakenAt    string      `yaml:"taken_at"`
	Items      []ItemState `yaml:"items"`
}

// Shift describes an item whose collection membership changed between
// two snapshots.
type Shift struct {
	Key   string
	Title string
	From  []string
	To    []string
}

// Service builds snapshots and recovery exports from the live library.
type Service struct {
	gw  zotero.Gateway
	sdb *sdb.Service
	now func() time.Time
}

// NewService builds a snapshot service.
func NewService(gw zotero.Gateway) *Service {
	return &Service{gw: gw, sdb: sdb.NewService(gw), now: time.Now}
}

// Save snapshots a collection's items and writes the snapshot as YAML.
func (s *Service) Save(ctx context.Context, collectionName string, w io.Writer) (Snapshot, error) {
	colID, err := s.gw.CollectionIDByName(ctx, collectionName)
	if err != nil {
		return Snapshot{}, err
	}
	items, err := s.gw.ListItems(ctx, colID, true)
	if err != nil {
		return Snapshot{}, err
	}

	names, err := s.collectionNames(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Collection: collectionName,
		TakenAt:    s.now().UTC().Format(time.RFC3339),
	}
	for _, it := range items {
		state := ItemState{Key: it.Key, Title: it.Title, Version: it.Version, Tags: it.Tags}
		for _, colKey := range it.Collections {
			if name, ok := names[colKey]; ok {
				state.Collections = append(state.Collections, name)
			} else {
				state.Collections = append(state.Collections, colKey)
			}
		}
		sort.Strings(state.Collections)
		snap.Items = append(snap.Items, state)
	}

	if err := yaml.NewEncoder(w).Encode(snap); err != nil {
		return Snapshot{}, fmt.Errorf("encoding snapshot: %w", err)
	}
	return snap, nil
}

func (s *Service) collectionNames(ctx context.Context) (map[string]string, error) {
	cols, err := s.gw.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(cols))
	for _, c := range cols {
		names[c.Key] = c.Name
	}
	return names, nil
}

// Load reads a snapshot previously written by Save.
func Load(r io.Reader) (Snapshot, error) {
	var snap Snapshot
	if err := yaml.NewDecoder(r).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	return snap, nil
}

// DetectShifts compares two snapshots and reports every item present in
// both whose collection membership changed. Items that appeared or
// vanished are not shifts; they show up in audit counts instead.
func DetectShifts(old, latest Snapshot) []Shift {
	oldByKey := make(map[string]ItemState, len(old.Items))
	for _, it := range old.Items {
		oldByKey[it.Key] = it
	}

	var shifts []Shift
	for _, it := range latest.Items {
		prev, ok := oldByKey[it.Key]
		if !ok {
			continue
		}
		if !sameStrings(prev.Collections, it.Collections) {
			shifts = append(shifts, Shift{Key: it.Key, Title: it.Title, From: prev.Collections, To: it.Collections})
		}
	}
	return shifts
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// RecoverCSV rebuilds a reviewer CSV from the decision notes of a
// collection, one row per item with at least one decision entry. It
// returns the number of rows written. Items without decisions are
// simply absent from the output.
func (s *Service) RecoverCSV(ctx context.Context, collectionName string, w io.Writer) (int, error) {
	colID, err := s.gw.CollectionIDByName(ctx, collectionName)
	if err != nil {
		return 0, err
	}
	items, err := s.gw.ListItems(ctx, colID, true)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"key", "title", "decision", "reason", "criteria", "timestamp"}); err != nil {
		return 0, err
	}

	rows := 0
	for _, item := range items {
		entries, err := s.sdb.Inspect(ctx, item.Key)
		if err != nil || len(entries) == 0 {
			continue
		}
		rec := entries[0].Record

		reason := rec.ReasonText
		if reason == "" {
			reason = rec.Comment
		}
		row := []string{
			item.Key,
			item.Title,
			rec.Decision,
			reason,
			strings.Join(rec.ReasonCode, ","),
			rec.Timestamp,
		}
		if err := cw.Write(row); err != nil {
			return rows, err
		}
		rows++
	}
	cw.Flush()
	return rows, cw.Error()
}
