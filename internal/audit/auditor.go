// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package audit checks collection health and enriches the library with
// screening decisions imported from reviewer CSV exports.
package audit

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/pdiddy/screening-engine/internal/collection"
	"github.com/pdiddy/screening-engine/internal/sdb"
	"github.com/pdiddy/screening-engine/internal/zotero"
	"github.com/pdiddy/screening-engine/pkg/types"
)

const defaultWorkers = 10

// Report lists the items of one collection that fail a completeness
// rule. It is rebuilt from scratch on every audit call.
type Report struct {
	TotalItems        int
	MissingIdentifier []types.Item
	MissingTitle      []types.Item
	MissingAbstract   []types.Item
	MissingPDF        []types.Item
	MissingDecision   []types.Item
}

// Auditor audits collections and imports CSV decisions.
type Auditor struct {
	gw       zotero.Gateway
	sdb      *sdb.Service
	cols     *collection.Service
	agent    string
	workers  int
	columns  types.ColumnMap
	warnings io.Writer
	now      func() time.Time
}

// NewAuditor builds an auditor. Warnings about per-item failures inside
// batch operations go to w.
func NewAuditor(gw zotero.Gateway, cols *collection.Service, cfg types.AuditConfig, agent string, w io.Writer) *Auditor {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if agent == "" {
		agent = "screening-engine"
	}
	if w == nil {
		w = io.Discard
	}
	return &Auditor{
		gw:       gw,
		sdb:      sdb.NewService(gw),
		cols:     cols,
		agent:    agent,
		workers:  cfg.Workers,
		columns:  cfg.Columns,
		warnings: w,
		now:      time.Now,
	}
}

// AuditCollection streams the collection's top-level items, checking
// identifier, title and abstract inline, then fans out one children
// fetch per item through a bounded worker pool to detect a PDF
// attachment and a decision note. A failed children fetch marks the
// item as missing both and is reported as a warning, never aborts the
// scan.
func (a *Auditor) AuditCollection(ctx context.Context, name string) (Report, error) {
	colID, err := a.gw.CollectionIDByName(ctx, name)
	if err != nil {
		return Report{}, err
	}
	items, err := a.gw.ListItems(ctx, colID, true)
	if err != nil {
		return Report{}, err
	}

	report := Report{TotalItems: len(items)}
	for _, item := range items {
		if !item.HasIdentifier() {
			report.MissingIdentifier = append(report.MissingIdentifier, item)
		}
		if item.Title == "" {
			report.MissingTitle = append(report.MissingTitle, item)
		}
		if item.Abstract == "" {
			report.MissingAbstract = append(report.MissingAbstract, item)
		}
	}

	type childCheck struct {
		item        types.Item
		hasPDF      bool
		hasDecision bool
		err         error
	}

	ch := make(chan childCheck, len(items))
	sem := make(chan struct{}, a.workers)
	var wg sync.WaitGroup

	for _, item := range items {
		wg.Add(1)
		go func(item types.Item) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			children, err := a.gw.GetChildren(ctx, item.Key)
			if err != nil {
				ch <- childCheck{item: item, err: err}
				return
			}
			check := childCheck{item: item}
			for _, c := range children {
				if c.IsPDFAttachment() {
					check.hasPDF = true
				}
				if c.IsNote() {
					if _, ok := sdb.Classify(c.Note); ok {
						check.hasDecision = true
					}
				}
			}
			ch <- check
		}(item)
	}

	go func() {
		wg.Wait()
		close(ch)
	}()

	for check := range ch {
		if check.err != nil {
			fmt.Fprintf(a.warnings, "warning: checking children of %s: %v\n", check.item.Key, check.err)
		}
		if !check.hasPDF {
			report.MissingPDF = append(report.MissingPDF, check.item)
		}
		if !check.hasDecision {
			report.MissingDecision = append(report.MissingDecision, check.item)
		}
	}

	sortByKey(report.MissingPDF)
	sortByKey(report.MissingDecision)
	return report, nil
}

func sortByKey(items []types.Item) {
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
}
