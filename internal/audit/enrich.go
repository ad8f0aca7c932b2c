// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/screening-engine/internal/match"
	"github.com/pdiddy/screening-engine/internal/sdb"
	"github.com/pdiddy/screening-engine/internal/zotero"
	"github.com/pdiddy/screening-engine/pkg/types"
)

// EnrichOptions controls a CSV decision import.
type EnrichOptions struct {
	Reviewer string
	Phase    string // defaults to title_abstract

	// DryRun and Force gate the write phase: notes are only written
	// when Force is set and DryRun is not. All other combinations just
	// count what would happen.
	DryRun bool
	Force  bool

	// MoveIncluded and MoveExcluded name destination collections for
	// decided items. Moves only happen alongside real writes.
	MoveIncluded string
	MoveExcluded string
}

// EnrichStats aggregates the per-row outcomes of an import.
type EnrichStats struct {
	Total     int
	Matched   int
	Unmatched int
	Updated   int
	Created   int
	Skipped   int
	Failed    int

	// UnmatchedTitles records what each unmatched row called the paper,
	// for operator review.
	UnmatchedTitles []string
}

type csvRow struct {
	Key      string
	DOI      string
	Title    string
	Status   string
	Code     string
	Reason   string
	Evidence string
}

// EnrichFromCSV imports reviewer decisions from a CSV export. Matching
// runs sequentially over indices built from the whole library; the
// decision-note upserts then fan out through the bounded worker pool.
func (a *Auditor) EnrichFromCSV(ctx context.Context, path string, opts EnrichOptions) (EnrichStats, error) {
	var stats EnrichStats

	if opts.Reviewer == "" {
		return stats, fmt.Errorf("enrich: reviewer persona is required")
	}
	if opts.Phase == "" {
		opts.Phase = types.PhaseTitleAbstract
	}

	rows, err := a.readRows(path)
	if err != nil {
		return stats, err
	}
	stats.Total = len(rows)

	items, err := a.gw.SearchItems(ctx, zotero.Query{})
	if err != nil {
		return stats, err
	}
	idx := buildIndex(items)

	type task struct {
		row  csvRow
		item types.Item
	}
	var tasks []task

	for _, row := range rows {
		if parseVerdict(row.Status) == "" {
			stats.Skipped++
			continue
		}
		item, ok := idx.match(row)
		if !ok {
			stats.Unmatched++
			title := row.Title
			if title == "" {
				title = row.Key
			}
			if title == "" {
				title = row.DOI
			}
			stats.UnmatchedTitles = append(stats.UnmatchedTitles, title)
			continue
		}
		stats.Matched++
		tasks = append(tasks, task{row: row, item: item})
	}

	type outcome struct {
		updated bool
		created bool
		failed  bool
	}

	ch := make(chan outcome, len(tasks))
	sem := make(chan struct{}, a.workers)
	var wg sync.WaitGroup

	for _, tk := range tasks {
		wg.Add(1)
		go func(tk task) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			updated, created, failed := a.upsertDecision(ctx, tk.row, tk.item, opts)
			ch <- outcome{updated: updated, created: created, failed: failed}
		}(tk)
	}

	go func() {
		wg.Wait()
		close(ch)
	}()

	for out := range ch {
		switch {
		case out.failed:
			stats.Failed++
		case out.updated:
			stats.Updated++
		case out.created:
			stats.Created++
		}
	}
	return stats, nil
}

// upsertDecision writes (or would write) one decision note and returns
// the outcome flags in order: updated, created, failed.
func (a *Auditor) upsertDecision(ctx context.Context, row csvRow, item types.Item, opts EnrichOptions) (bool, bool, bool) {
	existing, found, err := a.sdb.Find(ctx, item.Key, opts.Reviewer, opts.Phase)
	if err != nil {
		fmt.Fprintf(a.warnings, "warning: inspecting %s: %v\n", item.Key, err)
		return false, false, true
	}

	write := opts.Force && !opts.DryRun
	if write {
		verdict := parseVerdict(row.Status)
		rec := types.DecisionRecord{
			AuditVersion: types.SchemaVersion,
			Decision:     verdict,
			ReasonCode:   splitCodes(row.Code),
			ReasonText:   row.Reason,
			Evidence:     row.Evidence,
			Timestamp:    a.now().UTC().Format(time.RFC3339),
			Agent:        a.agent,
			Persona:      opts.Reviewer,
			Phase:        opts.Phase,
			Action:       types.ActionScreeningDecision,
		}
		content, err := sdb.Wrap(rec)
		if err != nil {
			return false, false, true
		}
		if found {
			err = a.gw.UpdateNote(ctx, existing.NoteKey, existing.NoteVersion, content)
		} else {
			err = a.gw.CreateNote(ctx, item.Key, content)
		}
		if err != nil {
			fmt.Fprintf(a.warnings, "warning: writing decision for %s: %v\n", item.Key, err)
			return false, false, true
		}

		if dest := a.moveDestination(verdict, opts); dest != "" {
			if err := a.cols.MoveItem(ctx, "", dest, item.Key); err != nil {
				fmt.Fprintf(a.warnings, "warning: decision written but moving %s failed: %v\n", item.Key, err)
			}
		}
	}
	return found, !found, false
}

func (a *Auditor) moveDestination(verdict string, opts EnrichOptions) string {
	if verdict == types.DecisionAccepted {
		return opts.MoveIncluded
	}
	return opts.MoveExcluded
}

// readRows parses the CSV using the configured column map. The status
// column and at least one identifying column (key, DOI or title) must
// be present.
func (a *Auditor) readRows(path string) ([]csvRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	cols := a.columns
	defaults := types.DefaultColumns()
	pick := func(configured, fallback string) string {
		if configured != "" {
			return configured
		}
		return fallback
	}

	find := func(name string) int {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
		return -1
	}

	keyIdx := find(pick(cols.Key, defaults.Key))
	doiIdx := find(pick(cols.DOI, defaults.DOI))
	titleIdx := find(pick(cols.Title, defaults.Title))
	statusIdx := find(pick(cols.Status, defaults.Status))
	codeIdx := find(pick(cols.Code, defaults.Code))
	reasonIdx := find(pick(cols.Reason, defaults.Reason))
	evidenceIdx := find(pick(cols.Evidence, defaults.Evidence))

	if statusIdx < 0 {
		return nil, fmt.Errorf("CSV is missing the status column %q", pick(cols.Status, defaults.Status))
	}
	if keyIdx < 0 && doiIdx < 0 && titleIdx < 0 {
		return nil, fmt.Errorf("CSV needs at least one identifying column (key, DOI or title)")
	}

	get := func(record []string, idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var rows []csvRow
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV: %w", err)
		}
		rows = append(rows, csvRow{
			Key:      get(record, keyIdx),
			DOI:      get(record, doiIdx),
			Title:    get(record, titleIdx),
			Status:   get(record, statusIdx),
			Code:     get(record, codeIdx),
			Reason:   get(record, reasonIdx),
			Evidence: get(record, evidenceIdx),
		})
	}
	return rows, nil
}

// parseVerdict maps reviewer status spellings ("Included", "INCLUDE",
// "excluded") onto decision values. Unrecognized statuses return "".
func parseVerdict(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	switch {
	case strings.HasPrefix(s, "incl"), strings.HasPrefix(s, "accept"):
		return types.DecisionAccepted
	case strings.HasPrefix(s, "excl"), strings.HasPrefix(s, "reject"):
		return types.DecisionRejected
	}
	return ""
}

func splitCodes(code string) []string {
	out := []string{}
	for _, c := range strings.Split(code, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// index holds the matching-cascade lookup tables, built once per import
// and discarded with it.
type index struct {
	byKey   map[string]types.Item
	byDOI   map[string]types.Item
	byTitle map[string]types.Item
	titles  []string // normalized, aligned with titleItems
	items   []types.Item
}

func buildIndex(items []types.Item) *index {
	idx := &index{
		byKey:   make(map[string]types.Item, len(items)),
		byDOI:   make(map[string]types.Item),
		byTitle: make(map[string]types.Item),
	}
	for _, it := range items {
		idx.byKey[it.Key] = it
		if it.DOI != "" {
			idx.byDOI[match.NormalizeDOI(it.DOI)] = it
		}
		if t := match.NormalizeTitle(it.Title); t != "" {
			idx.byTitle[t] = it
			idx.titles = append(idx.titles, t)
			idx.items = append(idx.items, it)
		}
	}
	return idx
}

// match applies the cascade: exact key, normalized DOI, normalized
// title, then fuzzy title against candidates within the length window.
func (idx *index) match(row csvRow) (types.Item, bool) {
	if row.Key != "" {
		if it, ok := idx.byKey[row.Key]; ok {
			return it, true
		}
	}
	if row.DOI != "" {
		if it, ok := idx.byDOI[match.NormalizeDOI(row.DOI)]; ok {
			return it, true
		}
	}
	if row.Title == "" {
		return types.Item{}, false
	}
	want := match.NormalizeTitle(row.Title)
	if it, ok := idx.byTitle[want]; ok {
		return it, true
	}

	best := -1
	bestRatio := match.DefaultFuzzyThreshold - 1
	for i, cand := range idx.titles {
		if !match.WithinLengthWindow(want, cand, match.DefaultLengthWindow) {
			continue
		}
		if r := match.TitleRatio(want, cand); r > bestRatio {
			bestRatio = r
			best = i
		}
	}
	if best < 0 {
		return types.Item{}, false
	}
	return idx.items[best], true
}
