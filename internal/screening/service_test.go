// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package screening

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/screening-engine/internal/collection"
	"github.com/pdiddy/screening-engine/internal/sdb"
	"github.com/pdiddy/screening-engine/internal/zoterotest"
	"github.com/pdiddy/screening-engine/pkg/types"
)

func newService(t *testing.T) (*zoterotest.Fake, *Service, *bytes.Buffer) {
	t.Helper()
	fake := zoterotest.New()
	fake.AddCollection("RAW", "Raw Imports", "")
	fake.AddCollection("INC", "Included", "")
	fake.AddItem(types.Item{Key: "K1", Title: "Paxos", Tags: []string{"methods"}, Collections: []string{"RAW"}})

	var warnings bytes.Buffer
	svc := NewService(fake, collection.NewService(fake, &warnings), "test-agent", &warnings)
	svc.now = func() time.Time { return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC) }
	return fake, svc, &warnings
}

func TestRecordDecisionCreatesNote(t *testing.T) {
	fake, svc, _ := newService(t)

	err := svc.RecordDecision(context.Background(), DecisionRequest{
		ItemKey:  "K1",
		Decision: "exclude",
		Code:     "EC1, EC2",
		Reason:   "wrong population",
		Evidence: "abstract, line 3",
		Persona:  "alice",
		Phase:    types.PhaseTitleAbstract,
	})
	require.NoError(t, err)

	bodies := fake.NoteBodies("K1")
	require.Len(t, bodies, 1)

	raw, ok := sdb.Classify(bodies[0])
	require.True(t, ok)
	rec, err := sdb.DecodeRecord(raw)
	require.NoError(t, err)

	assert.Equal(t, types.SchemaVersion, rec.AuditVersion)
	assert.Equal(t, types.DecisionRejected, rec.Decision)
	assert.Equal(t, []string{"EC1", "EC2"}, rec.ReasonCode)
	assert.Equal(t, "wrong population", rec.ReasonText)
	assert.Equal(t, "abstract, line 3", rec.Evidence)
	assert.Equal(t, "2026-03-14T09:26:53Z", rec.Timestamp)
	assert.Equal(t, "test-agent", rec.Agent)
	assert.Equal(t, types.ActionScreeningDecision, rec.Action)
}

func TestRecordDecisionIsIdempotentPerPersonaPhase(t *testing.T) {
	fake, svc, _ := newService(t)
	ctx := context.Background()

	first := DecisionRequest{ItemKey: "K1", Decision: "EXCLUDE", Code: "EC1", Persona: "alice", Phase: types.PhaseTitleAbstract}
	require.NoError(t, svc.RecordDecision(ctx, first))

	second := first
	second.Decision = "INCLUDE"
	require.NoError(t, svc.RecordDecision(ctx, second))

	bodies := fake.NoteBodies("K1")
	require.Len(t, bodies, 1, "re-recording must update the note, not add one")

	raw, ok := sdb.Classify(bodies[0])
	require.True(t, ok)
	assert.Equal(t, types.DecisionAccepted, raw["decision"])

	// A different persona gets its own note.
	third := first
	third.Persona = "bob"
	require.NoError(t, svc.RecordDecision(ctx, third))
	assert.Len(t, fake.NoteBodies("K1"), 2)
}

func TestRecordDecisionAppliesTags(t *testing.T) {
	fake, svc, _ := newService(t)
	ctx := context.Background()

	req := DecisionRequest{ItemKey: "K1", Decision: "EXCLUDE", Code: "EC1,EC2", Persona: "alice", Phase: types.PhaseFullText}
	require.NoError(t, svc.RecordDecision(ctx, req))

	it, _ := fake.Item("K1")
	assert.ElementsMatch(t, []string{"methods", "phase:full_text", "screening:exclude:EC1", "screening:exclude:EC2"}, it.Tags)

	// Flipping the decision replaces the screening tags.
	req.Decision = "INCLUDE"
	req.Code = ""
	require.NoError(t, svc.RecordDecision(ctx, req))

	it, _ = fake.Item("K1")
	assert.ElementsMatch(t, []string{"methods", "phase:full_text", "screening:include"}, it.Tags)
}

func TestRecordDecisionMovesItem(t *testing.T) {
	fake, svc, warnings := newService(t)

	err := svc.RecordDecision(context.Background(), DecisionRequest{
		ItemKey: "K1", Decision: "INCLUDE", Persona: "alice",
		SourceCollection: "Raw Imports", TargetCollection: "Included",
	})
	require.NoError(t, err)
	assert.Empty(t, warnings.String())

	it, _ := fake.Item("K1")
	assert.Equal(t, []string{"INC"}, it.Collections)
}

func TestRecordDecisionMoveFailureIsWarning(t *testing.T) {
	fake, svc, warnings := newService(t)

	err := svc.RecordDecision(context.Background(), DecisionRequest{
		ItemKey: "K1", Decision: "INCLUDE", Persona: "alice",
		SourceCollection: "Raw Imports", TargetCollection: "No Such Collection",
	})
	require.NoError(t, err, "a failed move must not invalidate the decision")
	assert.Contains(t, warnings.String(), "moving K1 failed")
	assert.Len(t, fake.NoteBodies("K1"), 1)
}

func TestRecordDecisionInvalidVerdict(t *testing.T) {
	_, svc, _ := newService(t)

	err := svc.RecordDecision(context.Background(), DecisionRequest{ItemKey: "K1", Decision: "MAYBE"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAYBE")
}

func TestPendingItems(t *testing.T) {
	fake, svc, _ := newService(t)
	// K1 is untouched and therefore pending.
	// K2 is decided via tag (fast path).
	fake.AddItem(types.Item{Key: "K2", Tags: []string{"screening:include"}, Collections: []string{"RAW"}})
	// K3 has a decision note but no tag (slow path).
	fake.AddItem(types.Item{Key: "K3", Collections: []string{"RAW"}})
	fake.AddChild("K3", types.Child{Key: "N1", ItemType: "note",
		Note: `<div>{"action": "screening_decision", "persona": "alice", "phase": "title_abstract"}</div>`})
	// K4 has only a prose note and stays pending.
	fake.AddItem(types.Item{Key: "K4", Collections: []string{"RAW"}})
	fake.AddChild("K4", types.Child{Key: "N2", ItemType: "note", Note: "<div>reading notes</div>"})

	pending, err := svc.PendingItems(context.Background(), "Raw Imports")
	require.NoError(t, err)

	var keys []string
	for _, it := range pending {
		keys = append(keys, it.Key)
	}
	assert.Equal(t, []string{"K1", "K4"}, keys)
}

func TestPendingItemsSurvivesNoteScanFailure(t *testing.T) {
	fake, svc, warnings := newService(t)
	// K2's children cannot be fetched; K3 is decided via note.
	fake.AddItem(types.Item{Key: "K2", Collections: []string{"RAW"}})
	fake.FailChildren["K2"] = errors.New("boom")
	fake.AddItem(types.Item{Key: "K3", Collections: []string{"RAW"}})
	fake.AddChild("K3", types.Child{Key: "N1", ItemType: "note",
		Note: `<div>{"action": "screening_decision", "persona": "alice", "phase": "title_abstract"}</div>`})

	pending, err := svc.PendingItems(context.Background(), "Raw Imports")
	require.NoError(t, err, "one unreadable item must not abort the scan")

	var keys []string
	for _, it := range pending {
		keys = append(keys, it.Key)
	}
	assert.Equal(t, []string{"K1", "K2"}, keys, "an unreadable item counts as pending")
	assert.Contains(t, warnings.String(), "K2")
}
