// Package items implements the data model of §3: Item, ItemTable, Property
// and PropertyTable. Item identity inside a build is represented by a
// stable handle (see Handle) rather than by pointer equality, so that scope
// frames can record additions/removals/modifications as plain sets of
// handles without ever forming pointer cycles between frames — the same
// arena-of-handles discipline the design notes (spec §9) call for.
package items

import (
	"path/filepath"
	"sort"
	"strings"
)

// Handle is a stable, process-local identity for an Item. Handles are
// assigned by an Arena and never reused within its lifetime.
type Handle uint64

// ReservedMetadata is the set of built-in metadata names that are
// synthesized on read and may never be set explicitly (spec §3).
var ReservedMetadata = map[string]bool{
	"extension":     true,
	"filename":      true,
	"fullpath":      true,
	"recursivedir":  true,
	"identity":      true,
	"relativedir":   true,
	"rootdir":       true,
	"modifiedtime":  true,
	"createdtime":   true,
	"accessedtime":  true,
	"directory":     true,
	"definingprojectdirectory": true,
}

// IsReservedMetadata reports whether name (case-insensitive) is a built-in
// metadata name.
func IsReservedMetadata(name string) bool {
	return ReservedMetadata[strings.ToLower(name)]
}

// Item is an immutable, observed value: an ItemType, an EvaluatedInclude,
// an ordered metadata mapping, and a defining-project path. Once placed in
// an Arena it is never edited in place; all changes flow through
// modification records held by a Scope until that scope commits.
type Item struct {
	handle           Handle
	itemType         string
	evaluatedInclude string
	metadata         *orderedMap
	definingProject  string
}

// Handle returns the item's stable identity.
func (it *Item) Handle() Handle { return it.handle }

// ItemType returns the item's type name.
func (it *Item) ItemType() string { return it.itemType }

// EvaluatedInclude returns the item's spec string. Escape-decoding (spec §6
// hex escapes) is applied by the caller that reads it for expansion, not
// stored pre-decoded, matching "escape-decoded only when read" (spec §3).
func (it *Item) EvaluatedInclude() string { return it.evaluatedInclude }

// DefiningProject returns the path of the project that introduced the item.
func (it *Item) DefiningProject() string { return it.definingProject }

// Metadata returns the value for name and whether it was explicitly set.
// Reserved names are not served from here; callers synthesize those.
func (it *Item) Metadata(name string) (string, bool) {
	return it.metadata.get(name)
}

// MetadataNames returns metadata names in insertion order.
func (it *Item) MetadataNames() []string { return it.metadata.names() }

// IdentityKey produces the (type, include, metadata-multiset) identity used
// for batching/dedupe folding (spec §3 invariants, §4.2 folding).
func (it *Item) IdentityKey() string {
	var b strings.Builder
	b.WriteString(it.itemType)
	b.WriteByte('\x00')
	b.WriteString(it.evaluatedInclude)
	names := append([]string(nil), it.metadata.names()...)
	sort.Strings(names)
	for _, n := range names {
		v, _ := it.metadata.get(n)
		b.WriteByte('\x00')
		b.WriteString(strings.ToLower(n))
		b.WriteByte('=')
		b.WriteString(v)
	}
	return b.String()
}

// Arena assigns stable handles to items and is the single owner of Item
// values; Scopes and ItemTables only ever reference items by Handle or by
// *Item pointers obtained from an Arena.
type Arena struct {
	next  uint64
	items map[Handle]*Item
}

// NewArena constructs an empty arena.
func NewArena() *Arena {
	return &Arena{items: make(map[Handle]*Item)}
}

// NewItem allocates and returns a fresh Item with a new handle.
func (a *Arena) NewItem(itemType, evaluatedInclude, definingProject string, metadata map[string]string, order []string) *Item {
	a.next++
	h := Handle(a.next)
	om := newOrderedMap()
	for _, k := range order {
		if v, ok := metadata[k]; ok {
			om.set(k, v)
		}
	}
	it := &Item{handle: h, itemType: itemType, evaluatedInclude: evaluatedInclude, definingProject: definingProject, metadata: om}
	a.items[h] = it
	return it
}

// Clone returns a deep copy of it with a freshly allocated handle within a
// (for modification records that must not alias the original's metadata map).
func (a *Arena) Clone(it *Item) *Item {
	a.next++
	h := Handle(a.next)
	cp := &Item{handle: h, itemType: it.itemType, evaluatedInclude: it.evaluatedInclude, definingProject: it.definingProject, metadata: it.metadata.clone()}
	a.items[h] = cp
	return cp
}

// Lookup returns the item for a handle, or nil.
func (a *Arena) Lookup(h Handle) *Item { return a.items[h] }

// applyModification returns a new *Item (new handle) with modset applied,
// leaving it untouched. The leave-scope commit into the global frame does
// not use it; that path mutates the stored item via ApplyModificationInPlace.
func (a *Arena) applyModification(it *Item, mod *ModificationSet) *Item {
	cp := a.Clone(it)
	mod.applyTo(cp.metadata)
	return cp
}

// WithModifications returns a derived Item sharing it's handle and identity
// but with mod applied to a private copy of its metadata. Used by Lookup to
// present an item's pending, uncommitted modifications without mutating the
// instance stored in the Arena — the "never in-place edits until a scope
// leaves" invariant of spec §3.
func WithModifications(it *Item, mod *ModificationSet) *Item {
	if mod == nil {
		return it
	}
	md := it.metadata.clone()
	mod.applyTo(md)
	return &Item{handle: it.handle, itemType: it.itemType, evaluatedInclude: it.evaluatedInclude, definingProject: it.definingProject, metadata: md}
}

// ApplyModificationInPlace mutates it's own metadata per mod. Only valid
// once an item has left every scope and is committed to the global table —
// the single point at which spec §4.1's commit algorithm allows applying a
// modification "to the item object itself".
func (it *Item) ApplyModificationInPlace(mod *ModificationSet) {
	mod.applyTo(it.metadata)
}

// reservedBuiltins maps a lower-cased reserved metadata name to a function
// synthesizing its value from the item's EvaluatedInclude path. Names with
// no stable path-independent meaning in this core (timestamps; those are a
// file-system collaborator's contract per spec §1) synthesize to "".
var reservedBuiltins = map[string]func(it *Item) string{
	"identity":     func(it *Item) string { return it.evaluatedInclude },
	"fullpath":     func(it *Item) string { p, _ := filepath.Abs(it.evaluatedInclude); return p },
	"filename":     func(it *Item) string { return strings.TrimSuffix(filepath.Base(it.evaluatedInclude), filepath.Ext(it.evaluatedInclude)) },
	"extension":    func(it *Item) string { return filepath.Ext(it.evaluatedInclude) },
	"rootdir":      func(it *Item) string { return filepath.VolumeName(it.evaluatedInclude) + string(filepath.Separator) },
	"directory":    func(it *Item) string { return filepath.Dir(it.evaluatedInclude) + string(filepath.Separator) },
	"relativedir":  func(it *Item) string { return filepath.Dir(it.evaluatedInclude) },
	"recursivedir": func(it *Item) string { return "" },
	"modifiedtime": func(it *Item) string { return "" },
	"createdtime":  func(it *Item) string { return "" },
	"accessedtime": func(it *Item) string { return "" },
	"definingprojectdirectory": func(it *Item) string {
		return filepath.Dir(it.definingProject) + string(filepath.Separator)
	},
}

// SynthesizeReserved returns the computed value for a built-in metadata
// name and true, or ("", false) if name is not reserved.
func SynthesizeReserved(it *Item, name string) (string, bool) {
	fn, ok := reservedBuiltins[strings.ToLower(name)]
	if !ok {
		return "", false
	}
	return fn(it), true
}

// ResolveMetadata returns the value of name for it: synthesized if name is
// a reserved built-in, otherwise the explicitly-set value ("", false) if
// undefined.
func ResolveMetadata(it *Item, name string) (string, bool) {
	if v, ok := SynthesizeReserved(it, name); ok {
		return v, true
	}
	return it.Metadata(name)
}

// ItemTable is an ordered mapping from ItemType to a sequence of items.
type ItemTable struct {
	order map[string][]*Item
	types []string
}

// NewItemTable constructs an empty table.
func NewItemTable() *ItemTable {
	return &ItemTable{order: make(map[string][]*Item)}
}

// Get returns the items of a type in insertion order; unknown types yield
// an empty (non-nil) slice, never an error (spec §4.1 get_items contract).
func (t *ItemTable) Get(itemType string) []*Item {
	if v, ok := t.order[itemType]; ok {
		return v
	}
	return []*Item{}
}

// Append adds it to the end of itemType's sequence, creating the type entry
// if necessary while preserving declared type order for iteration.
func (t *ItemTable) Append(itemType string, it *Item) {
	if _, ok := t.order[itemType]; !ok {
		t.types = append(t.types, itemType)
	}
	t.order[itemType] = append(t.order[itemType], it)
}

// Types returns item types in first-seen order.
func (t *ItemTable) Types() []string { return append([]string(nil), t.types...) }

// SetType replaces itemType's sequence wholesale, used when committing a
// remove at the global frame (spec §4.1 commit algorithm step 1).
func (t *ItemTable) SetType(itemType string, list []*Item) {
	if _, ok := t.order[itemType]; !ok {
		t.types = append(t.types, itemType)
	}
	t.order[itemType] = list
}

// Clone returns a shallow copy (item pointers shared, slices copied) used
// to snapshot a table for a nested build's globals (spec §5 ordering
// guarantees: "a nested build ... sees a snapshot").
func (t *ItemTable) Clone() *ItemTable {
	cp := NewItemTable()
	cp.types = append([]string(nil), t.types...)
	for k, v := range t.order {
		cp.order[k] = append([]*Item(nil), v...)
	}
	return cp
}

// Property is a name/value pair; name comparisons are case-insensitive
// throughout PropertyTable.
type Property struct {
	Name  string
	Value string
}

// PropertyTable maps name (case-insensitive) to the last-written Property.
type PropertyTable struct {
	values map[string]Property
	order  []string
}

// NewPropertyTable constructs an empty table.
func NewPropertyTable() *PropertyTable {
	return &PropertyTable{values: make(map[string]Property)}
}

// Get returns a property's value and whether it is defined.
func (t *PropertyTable) Get(name string) (string, bool) {
	p, ok := t.values[strings.ToLower(name)]
	if !ok {
		return "", false
	}
	return p.Value, true
}

// Set records name=value, last writer wins.
func (t *PropertyTable) Set(p Property) {
	key := strings.ToLower(p.Name)
	if _, exists := t.values[key]; !exists {
		t.order = append(t.order, key)
	}
	t.values[key] = p
}

// Names returns property names in first-write order.
func (t *PropertyTable) Names() []string { return append([]string(nil), t.order...) }

// Clone returns an independent copy of the table.
func (t *PropertyTable) Clone() *PropertyTable {
	cp := NewPropertyTable()
	cp.order = append([]string(nil), t.order...)
	for k, v := range t.values {
		cp.values[k] = v
	}
	return cp
}

// orderedMap is a small case-insensitive, insertion-ordered string map used
// for item metadata (names case-insensitive, values case-sensitive).
type orderedMap struct {
	keys   []string // original-case names, insertion order
	lower  map[string]string
	values map[string]string
}

func newOrderedMap() *orderedMap {
	return &orderedMap{lower: make(map[string]string), values: make(map[string]string)}
}

func (m *orderedMap) get(name string) (string, bool) {
	lk := strings.ToLower(name)
	orig, ok := m.lower[lk]
	if !ok {
		return "", false
	}
	return m.values[orig], true
}

func (m *orderedMap) set(name, value string) {
	lk := strings.ToLower(name)
	if orig, ok := m.lower[lk]; ok {
		m.values[orig] = value
		return
	}
	m.lower[lk] = name
	m.keys = append(m.keys, name)
	m.values[name] = value
}

func (m *orderedMap) remove(name string) {
	lk := strings.ToLower(name)
	orig, ok := m.lower[lk]
	if !ok {
		return
	}
	delete(m.lower, lk)
	delete(m.values, orig)
	for i, k := range m.keys {
		if k == orig {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

func (m *orderedMap) names() []string { return append([]string(nil), m.keys...) }

func (m *orderedMap) clone() *orderedMap {
	cp := newOrderedMap()
	for _, k := range m.keys {
		v, _ := m.get(k)
		cp.set(k, v)
	}
	return cp
}
