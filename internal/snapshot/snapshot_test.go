// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package snapshot

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/screening-engine/internal/zotero"
	"github.com/pdiddy/screening-engine/internal/zoterotest"
	"github.com/pdiddy/screening-engine/pkg/types"
)

func newService(t *testing.T) (*zoterotest.Fake, *Service) {
	t.Helper()
	fake := zoterotest.New()
	fake.AddCollection("RAW", "Raw Imports", "")
	fake.AddCollection("INC", "Included", "")
	svc := NewService(fake)
	svc.now = func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) }
	return fake, svc
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	fake, svc := newService(t)
	fake.AddItem(types.Item{Key: "A", Title: "Paper A", Version: 3, Collections: []string{"RAW"}, Tags: []string{"methods"}})
	fake.AddItem(types.Item{Key: "B", Title: "Paper B", Version: 1, Collections: []string{"RAW", "INC"}})

	var buf bytes.Buffer
	snap, err := svc.Save(context.Background(), "Raw Imports", &buf)
	require.NoError(t, err)

	assert.Equal(t, "Raw Imports", snap.Collection)
	assert.Equal(t, "2026-03-14T09:00:00Z", snap.TakenAt)
	require.Len(t, snap.Items, 2)
	assert.Equal(t, []string{"Raw Imports"}, snap.Items[0].Collections)
	assert.Equal(t, []string{"Included", "Raw Imports"}, snap.Items[1].Collections)

	loaded, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, snap, loaded)
}

func TestSaveUnknownCollection(t *testing.T) {
	_, svc := newService(t)

	var buf bytes.Buffer
	_, err := svc.Save(context.Background(), "Nope", &buf)
	assert.ErrorIs(t, err, zotero.ErrNotFound)
}

func TestDetectShifts(t *testing.T) {
	old := Snapshot{Items: []ItemState{
		{Key: "A", Title: "Paper A", Collections: []string{"Raw"}},
		{Key: "B", Title: "Paper B", Collections: []string{"Raw"}},
		{Key: "GONE", Title: "Removed", Collections: []string{"Raw"}},
	}}
	latest := Snapshot{Items: []ItemState{
		{Key: "A", Title: "Paper A", Collections: []string{"Included"}},
		{Key: "B", Title: "Paper B", Collections: []string{"Raw"}},
		{Key: "NEW", Title: "Added", Collections: []string{"Raw"}},
	}}

	shifts := DetectShifts(old, latest)
	require.Len(t, shifts, 1)
	assert.Equal(t, "A", shifts[0].Key)
	assert.Equal(t, []string{"Raw"}, shifts[0].From)
	assert.Equal(t, []string{"Included"}, shifts[0].To)
}

func TestDetectShiftsIgnoresOrder(t *testing.T) {
	old := Snapshot{Items: []ItemState{{Key: "A", Collections: []string{"X", "Y"}}}}
	latest := Snapshot{Items: []ItemState{{Key: "A", Collections: []string{"Y", "X"}}}}

	assert.Empty(t, DetectShifts(old, latest))
}

func TestRecoverCSV(t *testing.T) {
	fake, svc := newService(t)
	fake.AddItem(types.Item{Key: "A", Title: "Paper A", Collections: []string{"RAW"}})
	fake.AddChild("A", types.Child{Key: "N1", ItemType: "note", Note: `<div>{
		"audit_version": "1.2", "decision": "rejected", "reason_code": ["EC1", "EC2"],
		"reason_text": "off topic", "timestamp": "2026-01-02T03:04:05Z",
		"persona": "alice", "phase": "title_abstract", "action": "screening_decision"}</div>`})
	// Legacy note: the reason lives in the comment field.
	fake.AddItem(types.Item{Key: "B", Title: "Paper B", Collections: []string{"RAW"}})
	fake.AddChild("B", types.Child{Key: "N2", ItemType: "note",
		Note: `<div>{"sdb_version": "1.0", "decision": "accepted", "comment": "fits criteria"}</div>`})
	// No decision: absent from the output.
	fake.AddItem(types.Item{Key: "C", Title: "Paper C", Collections: []string{"RAW"}})

	var buf bytes.Buffer
	n, err := svc.RecoverCSV(context.Background(), "Raw Imports", &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "key,title,decision,reason,criteria,timestamp", lines[0])
	assert.Equal(t, "A,Paper A,rejected,off topic,"+`"EC1,EC2"`+",2026-01-02T03:04:05Z", lines[1])
	assert.Equal(t, "B,Paper B,accepted,fits criteria,,", lines[2])
}
