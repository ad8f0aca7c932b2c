// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package zoterotest provides an in-memory Gateway for service tests.
// The fake applies writes immediately (the live client owns the conflict
// retry policy, tested against httptest) and can be configured to deny
// every write, which is how dry-run paths are proven side-effect free.
package zoterotest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pdiddy/screening-engine/internal/zotero"
	"github.com/pdiddy/screening-engine/pkg/types"
)

// ErrWriteDenied is returned for every write when DenyWrites is set. A
// dry-run operation that triggers it has a side-effect bug.
var ErrWriteDenied = errors.New("zoterotest: write attempted on deny-writes fake")

// Fake is an in-memory Gateway.
type Fake struct {
	mu sync.Mutex

	// ReadOnly makes SupportsWrite return false and every write fail
	// with zotero.ErrReadOnly, mimicking the offline mirror.
	ReadOnly bool

	// DenyWrites makes every write fail with ErrWriteDenied while still
	// reporting write support. Used to prove dry runs never write.
	DenyWrites bool

	items       map[string]types.Item
	children    map[string][]types.Child
	collections []zotero.Collection

	// FailChildren injects per-item errors into GetChildren, for tests
	// that exercise fail-open batch behavior.
	FailChildren map[string]error

	noteSeq int

	// Mutation log for assertions.
	CreatedNotes map[string][]string // parent key → note contents
	UpdatedNotes map[string][]string // note key → successive contents
	Deleted      []string
	ItemPatches  map[string]int // item key → patch count
}

// New builds an empty fake gateway.
func New() *Fake {
	return &Fake{
		items:        make(map[string]types.Item),
		children:     make(map[string][]types.Child),
		FailChildren: make(map[string]error),
		CreatedNotes: make(map[string][]string),
		UpdatedNotes: make(map[string][]string),
		ItemPatches:  make(map[string]int),
	}
}

// AddCollection registers a collection and returns its key.
func (f *Fake) AddCollection(key, name, parentKey string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections = append(f.collections, zotero.Collection{Key: key, Version: 1, Name: name, ParentKey: parentKey})
}

// AddItem stores an item, replacing any previous state for its key.
func (f *Fake) AddItem(it types.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if it.Version == 0 {
		it.Version = 1
	}
	f.items[it.Key] = it
}

// AddChild attaches a child to a parent item.
func (f *Fake) AddChild(parentKey string, c types.Child) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.Version == 0 {
		c.Version = 1
	}
	f.children[parentKey] = append(f.children[parentKey], c)
}

// Item returns the current state of an item.
func (f *Fake) Item(key string) (types.Item, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[key]
	return it, ok
}

// Children returns the current children of an item.
func (f *Fake) Children(parentKey string) []types.Child {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Child, len(f.children[parentKey]))
	copy(out, f.children[parentKey])
	return out
}

// NoteBodies returns every live note body under a parent, in key order.
func (f *Fake) NoteBodies(parentKey string) []string {
	var bodies []string
	for _, c := range f.Children(parentKey) {
		if c.IsNote() {
			bodies = append(bodies, c.Note)
		}
	}
	return bodies
}

func (f *Fake) writeGuard(op string) error {
	if f.ReadOnly {
		return fmt.Errorf("%s: %w", op, zotero.ErrReadOnly)
	}
	if f.DenyWrites {
		return fmt.Errorf("%s: %w", op, ErrWriteDenied)
	}
	return nil
}

// SupportsWrite reports write capability per the ReadOnly flag.
func (f *Fake) SupportsWrite() bool { return !f.ReadOnly }

func (f *Fake) GetItem(_ context.Context, key string) (types.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[key]
	if !ok {
		return types.Item{}, fmt.Errorf("item %s: %w", key, zotero.ErrNotFound)
	}
	return it, nil
}

func (f *Fake) ListItems(_ context.Context, collectionID string, _ bool) ([]types.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Item
	for _, it := range f.items {
		if it.InCollection(collectionID) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (f *Fake) SearchItems(_ context.Context, q zotero.Query) ([]types.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Item
	for _, it := range f.items {
		if q.Tag != "" && !it.HasTag(q.Tag) {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (f *Fake) GetChildren(_ context.Context, itemKey string) ([]types.Child, error) {
	f.mu.Lock()
	err := f.FailChildren[itemKey]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Children(itemKey), nil
}

func (f *Fake) ListCollections(_ context.Context) ([]zotero.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]zotero.Collection, len(f.collections))
	copy(out, f.collections)
	return out, nil
}

func (f *Fake) CollectionIDByName(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.collections {
		if c.Name == name {
			return c.Key, nil
		}
	}
	return "", fmt.Errorf("collection %q: %w", name, zotero.ErrNotFound)
}

func (f *Fake) CreateCollection(_ context.Context, name, parentKey string) (string, error) {
	if err := f.writeGuard("create collection"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("COL%03d", len(f.collections)+1)
	f.collections = append(f.collections, zotero.Collection{Key: key, Version: 1, Name: name, ParentKey: parentKey})
	return key, nil
}

func (f *Fake) CreateNote(_ context.Context, parentKey, content string) error {
	if err := f.writeGuard("create note"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noteSeq++
	f.children[parentKey] = append(f.children[parentKey], types.Child{
		Key:      fmt.Sprintf("NOTE%03d", f.noteSeq),
		Version:  1,
		ItemType: "note",
		Note:     content,
	})
	f.CreatedNotes[parentKey] = append(f.CreatedNotes[parentKey], content)
	return nil
}

func (f *Fake) UpdateNote(_ context.Context, noteKey string, version int, content string) error {
	if err := f.writeGuard("update note"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for parent, children := range f.children {
		for i, c := range children {
			if c.Key != noteKey {
				continue
			}
			c.Note = content
			c.Version = version + 1
			f.children[parent][i] = c
			f.UpdatedNotes[noteKey] = append(f.UpdatedNotes[noteKey], content)
			return nil
		}
	}
	return fmt.Errorf("note %s: %w", noteKey, zotero.ErrNotFound)
}

func (f *Fake) UpdateItem(_ context.Context, key string, version int, patch map[string]any) error {
	if err := f.writeGuard("update item"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[key]
	if !ok {
		return fmt.Errorf("item %s: %w", key, zotero.ErrNotFound)
	}
	if cols, ok := patch["collections"]; ok {
		it.Collections = toStrings(cols)
	}
	if tags, ok := patch["tags"]; ok {
		it.Tags = toTags(tags)
	}
	if title, ok := patch["title"].(string); ok {
		it.Title = title
	}
	it.Version = version + 1
	f.items[key] = it
	f.ItemPatches[key]++
	return nil
}

func (f *Fake) DeleteItem(_ context.Context, key string, _ int) error {
	if err := f.writeGuard("delete item"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[key]; ok {
		delete(f.items, key)
		delete(f.children, key)
		f.Deleted = append(f.Deleted, key)
		return nil
	}
	for parent, children := range f.children {
		for i, c := range children {
			if c.Key == key {
				f.children[parent] = append(children[:i:i], children[i+1:]...)
				f.Deleted = append(f.Deleted, key)
				return nil
			}
		}
	}
	return fmt.Errorf("item %s: %w", key, zotero.ErrNotFound)
}

// toStrings accepts []string or []any of strings.
func toStrings(v any) []string {
	switch vv := v.(type) {
	case []string:
		out := make([]string, len(vv))
		copy(out, vv)
		return out
	case []any:
		var out []string
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// toTags accepts the wire tag payload ([]map[string]string or equivalent)
// as well as a plain string slice.
func toTags(v any) []string {
	switch vv := v.(type) {
	case []map[string]string:
		var out []string
		for _, m := range vv {
			if t := m["tag"]; t != "" {
				out = append(out, t)
			}
		}
		return out
	case []map[string]any:
		var out []string
		for _, m := range vv {
			if t, ok := m["tag"].(string); ok && t != "" {
				out = append(out, t)
			}
		}
		return out
	default:
		return toStrings(v)
	}
}

// String summarizes the mutation log, useful in test failure output.
func (f *Fake) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var b strings.Builder
	fmt.Fprintf(&b, "fake{items=%d", len(f.items))
	if len(f.Deleted) > 0 {
		fmt.Fprintf(&b, " deleted=%v", f.Deleted)
	}
	b.WriteString("}")
	return b.String()
}
