// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared value types exchanged between the
// screening-engine services: library items, decision records, and
// configuration.
package types

import (
	"regexp"
	"strings"
)

// arxivExtraPattern matches the "arXiv: 2301.07041" convention used in the
// item's extra field.
var arxivExtraPattern = regexp.MustCompile(`(?i)arXiv:\s*([\d.]+v?\d*)`)

// arxivURLPattern extracts an arXiv ID from an abs/ or pdf/ URL.
var arxivURLPattern = regexp.MustCompile(`(?:arxiv\.org/abs/|arxiv\.org/pdf/)([\d.]+)`)

// Item is a bibliographic item in the remote library. Items are created
// and updated by external import tooling; this engine only mutates them
// through version-guarded writes.
type Item struct {
	// Key is the opaque stable identifier assigned by the remote library.
	Key string `json:"key" yaml:"key"`

	// Version is the monotonic version token used for optimistic
	// concurrency. A write carrying a stale version is rejected remotely.
	Version int `json:"version" yaml:"version"`

	// ItemType is the remote item type (e.g. "journalArticle").
	ItemType string `json:"item_type" yaml:"item_type"`

	Title    string   `json:"title" yaml:"title"`
	Abstract string   `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	DOI      string   `json:"doi,omitempty" yaml:"doi,omitempty"`
	ArxivID  string   `json:"arxiv_id,omitempty" yaml:"arxiv_id,omitempty"`
	URL      string   `json:"url,omitempty" yaml:"url,omitempty"`
	Date     string   `json:"date,omitempty" yaml:"date,omitempty"`
	Authors  []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Collections holds the keys of the collections the item belongs to.
	Collections []string `json:"collections,omitempty" yaml:"collections,omitempty"`

	// Tags holds the item's tag strings.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// HasIdentifier reports whether the item carries a DOI or an arXiv ID.
func (i Item) HasIdentifier() bool {
	return i.DOI != "" || i.ArxivID != ""
}

// InCollection reports whether the item belongs to the collection key.
func (i Item) InCollection(key string) bool {
	for _, c := range i.Collections {
		if c == key {
			return true
		}
	}
	return false
}

// HasTag reports whether the item carries the exact tag.
func (i Item) HasTag(tag string) bool {
	for _, t := range i.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// HasTagPrefix reports whether any item tag starts with prefix.
func (i Item) HasTagPrefix(prefix string) bool {
	for _, t := range i.Tags {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return false
}

// ExtractArxivID pulls an arXiv ID out of an item's extra field or URL.
// Returns "" when neither carries one.
func ExtractArxivID(extra, url string) string {
	if m := arxivExtraPattern.FindStringSubmatch(extra); m != nil {
		return m[1]
	}
	if url != "" && strings.Contains(url, "arxiv.org") {
		if m := arxivURLPattern.FindStringSubmatch(url); m != nil {
			return m[1]
		}
	}
	return ""
}

// Child is a child object attached to an item: a note or an attachment.
type Child struct {
	Key      string `json:"key" yaml:"key"`
	Version  int    `json:"version" yaml:"version"`
	ItemType string `json:"item_type" yaml:"item_type"`

	// Note is the note body (notes only). The screening engine stores
	// decision records as JSON wrapped in a minimal HTML container here.
	Note string `json:"note,omitempty" yaml:"note,omitempty"`

	// LinkMode, Filename and ContentType describe attachments.
	LinkMode    string `json:"link_mode,omitempty" yaml:"link_mode,omitempty"`
	Filename    string `json:"filename,omitempty" yaml:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty" yaml:"content_type,omitempty"`

	Title string `json:"title,omitempty" yaml:"title,omitempty"`
}

// IsNote reports whether the child is a note.
func (c Child) IsNote() bool { return c.ItemType == "note" }

// IsPDFAttachment reports whether the child is an imported PDF file.
func (c Child) IsPDFAttachment() bool {
	return c.ItemType == "attachment" &&
		c.LinkMode == "imported_file" &&
		strings.HasSuffix(strings.ToLower(c.Filename), ".pdf")
}
