// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package screening records include/exclude decisions on library items
// and lists the items still awaiting one.
package screening

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pdiddy/screening-engine/internal/collection"
	"github.com/pdiddy/screening-engine/internal/sdb"
	"github.com/pdiddy/screening-engine/internal/zotero"
	"github.com/pdiddy/screening-engine/pkg/types"
)

// TagPrefix marks every tag managed by the screening workflow.
const TagPrefix = "screening:"

// DecisionRequest carries one reviewer verdict on one item.
type DecisionRequest struct {
	ItemKey  string
	Decision string // INCLUDE or EXCLUDE, case-insensitive
	Code     string // comma-separated exclusion criteria codes
	Reason   string
	Evidence string
	Persona  string
	Phase    string

	// When both are set the item is moved after the decision is
	// recorded. A failed move degrades to a warning.
	SourceCollection string
	TargetCollection string
}

// Service records screening decisions.
type Service struct {
	gw       zotero.Gateway
	sdb      *sdb.Service
	cols     *collection.Service
	agent    string
	warnings io.Writer
	now      func() time.Time
}

// NewService builds a screening service. The agent string is written
// into every decision record; warnings about non-fatal follow-up
// failures go to w.
func NewService(gw zotero.Gateway, cols *collection.Service, agent string, w io.Writer) *Service {
	if agent == "" {
		agent = "screening-engine"
	}
	if w == nil {
		w = io.Discard
	}
	return &Service{
		gw:       gw,
		sdb:      sdb.NewService(gw),
		cols:     cols,
		agent:    agent,
		warnings: w,
		now:      time.Now,
	}
}

// RecordDecision upserts the decision note for (item, persona, phase),
// retags the item, and optionally moves it between collections. The
// upsert updates an existing matching note in place, so repeating a
// call leaves exactly one note for the pair.
func (s *Service) RecordDecision(ctx context.Context, req DecisionRequest) error {
	rec, err := s.buildRecord(req)
	if err != nil {
		return err
	}

	content, err := sdb.Wrap(rec)
	if err != nil {
		return err
	}

	existing, found, err := s.sdb.Find(ctx, req.ItemKey, req.Persona, req.Phase)
	if err != nil {
		return err
	}
	if found {
		err = s.gw.UpdateNote(ctx, existing.NoteKey, existing.NoteVersion, content)
	} else {
		err = s.gw.CreateNote(ctx, req.ItemKey, content)
	}
	if err != nil {
		return fmt.Errorf("recording decision on %s: %w", req.ItemKey, err)
	}

	if err := s.applyTags(ctx, req.ItemKey, rec); err != nil {
		fmt.Fprintf(s.warnings, "warning: decision recorded but tagging %s failed: %v\n", req.ItemKey, err)
	}

	if req.SourceCollection != "" && req.TargetCollection != "" {
		err := s.cols.MoveItem(ctx, req.SourceCollection, req.TargetCollection, req.ItemKey)
		if err != nil {
			fmt.Fprintf(s.warnings, "warning: decision recorded but moving %s failed: %v\n", req.ItemKey, err)
		}
	}
	return nil
}

func (s *Service) buildRecord(req DecisionRequest) (types.DecisionRecord, error) {
	var decided string
	switch strings.ToUpper(req.Decision) {
	case "INCLUDE":
		decided = types.DecisionAccepted
	case "EXCLUDE":
		decided = types.DecisionRejected
	default:
		return types.DecisionRecord{}, fmt.Errorf("invalid decision %q: must be INCLUDE or EXCLUDE", req.Decision)
	}

	phase := req.Phase
	if phase == "" {
		phase = types.PhaseTitleAbstract
	}
	persona := req.Persona
	if persona == "" {
		persona = "unknown"
	}

	codes := []string{}
	if decided == types.DecisionRejected {
		for _, c := range strings.Split(req.Code, ",") {
			if c = strings.TrimSpace(c); c != "" {
				codes = append(codes, c)
			}
		}
	}

	return types.DecisionRecord{
		AuditVersion: types.SchemaVersion,
		Decision:     decided,
		ReasonCode:   codes,
		ReasonText:   req.Reason,
		Evidence:     req.Evidence,
		Timestamp:    s.now().UTC().Format(time.RFC3339),
		Agent:        s.agent,
		Persona:      persona,
		Phase:        phase,
		Action:       types.ActionScreeningDecision,
	}, nil
}

// applyTags replaces the item's screening tags with the ones implied by
// the new decision: the phase tag always, then either the include tag
// or one exclude tag per criteria code.
func (s *Service) applyTags(ctx context.Context, itemKey string, rec types.DecisionRecord) error {
	item, err := s.gw.GetItem(ctx, itemKey)
	if err != nil {
		return err
	}

	var tags []string
	for _, t := range item.Tags {
		if !strings.HasPrefix(t, TagPrefix) {
			tags = append(tags, t)
		}
	}
	phaseTag := "phase:" + rec.Phase
	if !contains(tags, phaseTag) {
		tags = append(tags, phaseTag)
	}
	if rec.Decision == types.DecisionAccepted {
		tags = append(tags, TagPrefix+"include")
	} else {
		for _, code := range rec.ReasonCode {
			tags = append(tags, TagPrefix+"exclude:"+code)
		}
		if len(rec.ReasonCode) == 0 {
			tags = append(tags, TagPrefix+"exclude")
		}
	}

	payload := make([]map[string]string, 0, len(tags))
	for _, t := range tags {
		payload = append(payload, map[string]string{"tag": t})
	}
	return s.gw.UpdateItem(ctx, itemKey, item.Version, map[string]any{"tags": payload})
}

func contains(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}

// PendingItems returns the items of a collection without a recorded
// decision. Items carrying a screening tag are classified by the tag
// alone; only untagged items pay for a children fetch and note scan.
func (s *Service) PendingItems(ctx context.Context, collectionName string) ([]types.Item, error) {
	colID, err := s.gw.CollectionIDByName(ctx, collectionName)
	if err != nil {
		return nil, err
	}
	items, err := s.gw.ListItems(ctx, colID, true)
	if err != nil {
		return nil, err
	}

	var pending []types.Item
	for _, item := range items {
		if item.HasTagPrefix(TagPrefix) {
			continue
		}
		entries, err := s.sdb.Inspect(ctx, item.Key)
		if err != nil {
			// Fail open: an unreadable item cannot prove a decision.
			fmt.Fprintf(s.warnings, "warning: inspecting %s: %v\n", item.Key, err)
			pending = append(pending, item)
			continue
		}
		if len(entries) == 0 {
			pending = append(pending, item)
		}
	}
	return pending, nil
}
