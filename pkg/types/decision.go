// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// SchemaVersion is the current screening-database (SDB) schema version.
// Records below this version are eligible for upgrade.
const SchemaVersion = "1.2"

// ActionScreeningDecision marks a note payload as a screening decision.
// Kept stable across schema versions so old notes remain classifiable.
const ActionScreeningDecision = "screening_decision"

// Decision values. An empty decision means the item is still pending.
const (
	DecisionAccepted = "accepted"
	DecisionRejected = "rejected"
)

// Screening phases. The phase is half of a record's uniqueness key; the
// persona is the other half.
const (
	PhaseTitleAbstract = "title_abstract"
	PhaseFullText      = "full_text"
)

// DecisionRecord is a schema-versioned screening decision embedded in a
// child note of a library item. At most one live record exists per
// (item, persona, phase); re-recording updates the note in place.
type DecisionRecord struct {
	// AuditVersion is the schema version tag ("1.2"). Older notes carry
	// "1.0" or "1.1" or omit the field entirely.
	AuditVersion string `json:"audit_version,omitempty"`

	// Decision is "accepted" or "rejected"; absent means pending.
	Decision string `json:"decision,omitempty"`

	// ReasonCode holds ordered short criteria codes (e.g. "EC2").
	// Empty when the decision is accepted.
	ReasonCode []string `json:"reason_code"`

	// ReasonText is a free-text justification.
	ReasonText string `json:"reason_text"`

	// Evidence quotes the passage the decision is based on.
	Evidence string `json:"evidence,omitempty"`

	// Timestamp is the decision time in RFC 3339 UTC.
	Timestamp string `json:"timestamp"`

	// Agent names the authoring tool.
	Agent string `json:"agent"`

	// Persona is the reviewer identity.
	Persona string `json:"persona"`

	// Phase is the screening stage, title_abstract or full_text.
	Phase string `json:"phase"`

	// Action is the marker value ActionScreeningDecision.
	Action string `json:"action"`

	// Comment is the legacy pre-1.2 name for ReasonText. Upgrade renames
	// it; it is never written by current code.
	Comment string `json:"comment,omitempty"`
}

// EffectiveVersion returns the record's schema version, defaulting to
// "1.0" for notes written before the field existed.
func (r DecisionRecord) EffectiveVersion() string {
	if r.AuditVersion == "" {
		return "1.0"
	}
	return r.AuditVersion
}

// Matches reports whether the record belongs to the (persona, phase) pair.
func (r DecisionRecord) Matches(persona, phase string) bool {
	return r.Persona == persona && r.Phase == phase
}
