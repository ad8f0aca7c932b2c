// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sdb reads and writes the screening decision records embedded
// in library notes. A decision lives as a JSON payload inside a note
// body wrapped in a div container; classification is deliberately
// permissive (anything unparseable is simply not a decision note) while
// field access goes through the strict types.DecisionRecord decode.
package sdb

import (
	"encoding/json"
	"regexp"

	"github.com/pdiddy/screening-engine/pkg/types"
)

var jsonBlockRE = regexp.MustCompile(`(?s)\{.*\}`)

// Classify extracts the JSON payload from a note body and reports
// whether it carries a screening decision. Malformed JSON and notes
// without decision markers return ok=false, never an error.
func Classify(content string) (map[string]any, bool) {
	if content == "" {
		return nil, false
	}
	block := jsonBlockRE.FindString(content)
	if block == "" {
		return nil, false
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(block), &data); err != nil {
		return nil, false
	}
	if !hasDecisionMarkers(data) {
		return nil, false
	}
	return data, true
}

// hasDecisionMarkers checks for the action marker or a schema version
// field. Legacy records carry sdb_version instead of audit_version.
func hasDecisionMarkers(data map[string]any) bool {
	if action, _ := data["action"].(string); action == types.ActionScreeningDecision {
		return true
	}
	if _, ok := data["audit_version"]; ok {
		return true
	}
	_, ok := data["sdb_version"]
	return ok
}

// DecodeRecord converts a classified payload into a typed record.
func DecodeRecord(data map[string]any) (types.DecisionRecord, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return types.DecisionRecord{}, err
	}
	var rec types.DecisionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return types.DecisionRecord{}, err
	}
	return rec, nil
}

// Wrap renders a decision payload as a note body in the canonical
// container format written by every decision author.
func Wrap(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return "<div>" + string(b) + "</div>", nil
}
