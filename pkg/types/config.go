// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings for components that talk to the
// remote library service.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "screening-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// LibraryConfig holds settings for the remote bibliography service.
type LibraryConfig struct {
	HTTPConfig `yaml:",inline"`

	// LibraryID identifies the remote library.
	LibraryID string `json:"library_id" yaml:"library_id"`

	// LibraryType is "group" (shared review library) or "user".
	LibraryType string `json:"library_type" yaml:"library_type"`

	// APIKey authenticates against the remote service. Usually supplied
	// through .secrets/zotero-api-key rather than the config file.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// RequestsPerSecond bounds the client-side request rate (default 3).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	// OfflineDB, when set, points at a local SQLite mirror and switches
	// the engine to a read-only gateway.
	OfflineDB string `json:"offline_db,omitempty" yaml:"offline_db,omitempty"`
}

// ColumnMap maps logical CSV enrichment fields to header names. Header
// matching is case-insensitive; empty fields fall back to the defaults.
type ColumnMap struct {
	Key      string `json:"key" yaml:"key"`
	DOI      string `json:"doi" yaml:"doi"`
	Title    string `json:"title" yaml:"title"`
	Status   string `json:"status" yaml:"status"`
	Code     string `json:"code" yaml:"code"`
	Reason   string `json:"reason" yaml:"reason"`
	Evidence string `json:"evidence" yaml:"evidence"`
}

// DefaultColumns returns the standard enrichment CSV header names.
func DefaultColumns() ColumnMap {
	return ColumnMap{
		Key:      "key",
		DOI:      "doi",
		Title:    "title",
		Status:   "status",
		Code:     "code",
		Reason:   "reason",
		Evidence: "evidence",
	}
}

// AuditConfig holds settings for collection audits and CSV enrichment.
type AuditConfig struct {
	// Workers bounds the children-fetch and note-upsert fan-out
	// (default 10).
	Workers int `json:"workers" yaml:"workers"`

	// Columns maps CSV headers for enrichment input.
	Columns ColumnMap `json:"columns" yaml:"columns"`
}

// EngineConfig groups all configuration for the screening engine.
type EngineConfig struct {
	Library LibraryConfig `json:"library" yaml:"library"`
	Audit   AuditConfig   `json:"audit" yaml:"audit"`

	// Agent names this tool in decision records it writes.
	Agent string `json:"agent" yaml:"agent"`
}
