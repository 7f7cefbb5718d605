// Package lookup implements §4.1: a stacked, copy-on-write view over item
// and property tables governing what a task sees, what it may mutate, and
// how mutations propagate when a scope leaves. Grounded on the teacher's
// internal/storage/memory (a read-through in-memory backing store) for the
// overall "view over a shared backing table" shape, and on internal/deps
// for identity-by-handle bookkeeping across a tree of scopes.
package lookup

import (
	"strings"

	"github.com/buildcore/engine/internal/builderrors"
	"github.com/buildcore/engine/internal/items"
)

// Lookup is a stack of scopes over a shared primary ItemTable/PropertyTable.
type Lookup struct {
	arena        *items.Arena
	primaryItems *items.ItemTable
	primaryProps *items.PropertyTable

	stack   []*scope
	nextID  uint64
}

// New constructs a Lookup with no entered scopes, reading straight through
// to primaryItems/primaryProps (the "primary table" of spec §3).
func New(arena *items.Arena, primaryItems *items.ItemTable, primaryProps *items.PropertyTable) *Lookup {
	return &Lookup{arena: arena, primaryItems: primaryItems, primaryProps: primaryProps}
}

// EnterScope pushes a new frame; description is opaque and used only for
// diagnostics.
func (l *Lookup) EnterScope(description string) ScopeHandle {
	l.nextID++
	id := ScopeHandle(l.nextID)
	l.stack = append(l.stack, newScope(id, description))
	return id
}

// currentTop returns the top scope, or a ModifyInGlobalScope error if none
// is entered.
func (l *Lookup) currentTop() (*scope, error) {
	if len(l.stack) == 0 {
		return nil, builderrors.New(builderrors.KindModifyInGlobalScope, "operation requires an entered scope")
	}
	return l.stack[len(l.stack)-1], nil
}

// LeaveScope pops handle, which must be the current top, and commits its
// deltas into its parent (another scope, or the global tables) atomically
// per the algorithm of spec §4.1.
func (l *Lookup) LeaveScope(handle ScopeHandle) error {
	if len(l.stack) == 0 || l.stack[len(l.stack)-1].id != handle {
		return builderrors.New(builderrors.KindInvalidScopeOrder, "leave_scope(%d) does not match current top", handle)
	}
	top := l.stack[len(l.stack)-1]
	l.stack = l.stack[:len(l.stack)-1]

	if len(l.stack) > 0 {
		l.commitIntoScope(top, l.stack[len(l.stack)-1])
	} else {
		l.commitIntoGlobal(top)
	}
	return nil
}

// commitIntoScope implements the three-step commit algorithm of spec §4.1
// when the parent is another scope frame.
func (l *Lookup) commitIntoScope(top, parent *scope) {
	// 1. removes
	for h, t := range top.removes {
		if parent.addSet[h] {
			removeHandleFromAdds(parent, t, h)
			delete(parent.addSet, h)
			continue
		}
		if _, already := parent.removes[h]; !already {
			parent.removes[h] = t
		}
	}
	// 2. modifications
	for h, mod := range top.mods {
		t := top.modItemType[h]
		if existing, ok := parent.mods[h]; ok {
			parent.mods[h] = existing.Merge(mod)
		} else {
			parent.mods[h] = mod
		}
		parent.modItemType[h] = t
	}
	// 3. adds, in order
	for t, adds := range top.adds {
		for _, it := range adds {
			parent.adds[t] = append(parent.adds[t], it)
			parent.addSet[it.Handle()] = true
		}
	}
	// properties
	for k, v := range top.propOverrides {
		parent.propOverrides[k] = v
	}
}

// commitIntoGlobal implements the same algorithm when the parent is the
// primary (global) table: removes delete from the table outright,
// modifications apply to the item object itself, adds append directly.
func (l *Lookup) commitIntoGlobal(top *scope) {
	// 1. removes
	for h, t := range top.removes {
		removeHandleFromTable(l.primaryItems, t, h)
	}
	// 2. modifications
	for h, mod := range top.mods {
		if it := l.arena.Lookup(h); it != nil {
			it.ApplyModificationInPlace(mod)
		}
	}
	// 3. adds, in order
	for t, adds := range top.adds {
		for _, it := range adds {
			l.primaryItems.Append(t, it)
		}
	}
	// properties
	for k, v := range top.propOverrides {
		_ = k
		l.primaryProps.Set(v)
	}
}

func removeHandleFromAdds(s *scope, itemType string, h items.Handle) {
	list := s.adds[itemType]
	for i, it := range list {
		if it.Handle() == h {
			s.adds[itemType] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func removeHandleFromTable(t *items.ItemTable, itemType string, h items.Handle) {
	list := t.Get(itemType)
	out := make([]*items.Item, 0, len(list))
	for _, it := range list {
		if it.Handle() != h {
			out = append(out, it)
		}
	}
	t.SetType(itemType, out)
}

// GetItems reads through the stack: `(primary_T − Σremoves) ∪ Σadds`
// applied bottom-up, with pending modifications folded in (spec §3
// invariants). Unknown types yield an empty, non-nil sequence.
func (l *Lookup) GetItems(itemType string) []*items.Item {
	result := append([]*items.Item(nil), l.primaryItems.Get(itemType)...)
	for _, s := range l.stack {
		if seeded := s.secondary[itemType]; len(seeded) > 0 {
			result = append(result, seeded...)
		}
		if len(s.removes) > 0 {
			filtered := result[:0]
			for _, it := range result {
				if _, removed := s.removes[it.Handle()]; !removed {
					filtered = append(filtered, it)
				}
			}
			result = filtered
		}
		if adds := s.adds[itemType]; len(adds) > 0 {
			result = append(result, adds...)
		}
	}
	if len(result) == 0 {
		return []*items.Item{}
	}
	out := make([]*items.Item, len(result))
	for i, it := range result {
		out[i] = items.WithModifications(it, l.effectiveModification(it.Handle()))
	}
	return out
}

// effectiveModification folds every pending ModificationSet recorded
// against h across the stack, bottom to top, later scopes overriding
// earlier ones per metadata key (spec §4.1 modify_items).
func (l *Lookup) effectiveModification(h items.Handle) *items.ModificationSet {
	var acc *items.ModificationSet
	for _, s := range l.stack {
		if m, ok := s.mods[h]; ok {
			if acc == nil {
				acc = m
			} else {
				acc = acc.Merge(m)
			}
		}
	}
	return acc
}

// AddNewItem appends it to the top frame's add list for its item type.
// Requires at least one entered (non-global) scope.
func (l *Lookup) AddNewItem(it *items.Item) error {
	top, err := l.currentTop()
	if err != nil {
		return err
	}
	top.adds[it.ItemType()] = append(top.adds[it.ItemType()], it)
	top.addSet[it.Handle()] = true
	return nil
}

// AddNewItems appends several items of one type; when dedupe is true, items
// folding to an identity already visible (primary or already-added in this
// scope) are silently skipped (spec §4.1 add_new_items).
func (l *Lookup) AddNewItems(itemType string, newItems []*items.Item, dedupe bool) error {
	top, err := l.currentTop()
	if err != nil {
		return err
	}
	seen := map[string]bool{}
	if dedupe {
		for _, it := range l.GetItems(itemType) {
			seen[it.IdentityKey()] = true
		}
	}
	for _, it := range newItems {
		if dedupe {
			key := it.IdentityKey()
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		top.adds[itemType] = append(top.adds[itemType], it)
		top.addSet[it.Handle()] = true
	}
	return nil
}

// RemoveItem records a remove in the top frame. If it was added in the same
// frame, the add is cancelled instead of recording a remove. Re-removing an
// already-removed item is idempotent.
func (l *Lookup) RemoveItem(it *items.Item) error {
	top, err := l.currentTop()
	if err != nil {
		return err
	}
	h := it.Handle()
	if top.addSet[h] {
		removeHandleFromAdds(top, it.ItemType(), h)
		delete(top.addSet, h)
		return nil
	}
	top.removes[h] = it.ItemType()
	return nil
}

// ModifyItems records per-item metadata modifications in the top frame. A
// subsequent modify on the same item in the same scope merges with the
// earlier one, later keys overriding earlier keys of the same name;
// keepOnlySpecified remains sticky per the merged set's most recent value.
func (l *Lookup) ModifyItems(itemType string, targets []*items.Item, modset *items.ModificationSet) error {
	top, err := l.currentTop()
	if err != nil {
		return err
	}
	if modset == nil {
		return nil
	}
	for _, name := range modset.Names() {
		if items.IsReservedMetadata(name) {
			return builderrors.New(builderrors.KindReservedMetadata, "cannot modify reserved metadata %q", name)
		}
	}
	for _, it := range targets {
		h := it.Handle()
		if existing, ok := top.mods[h]; ok {
			top.mods[h] = existing.Merge(modset)
		} else {
			top.mods[h] = modset
		}
		top.modItemType[h] = itemType
	}
	return nil
}

// PopulateWithItem seeds the top frame's secondary-primary view with a
// pre-computed item, without treating it as a local addition: it is visible
// to reads in this scope and any nested scope but is discarded (not
// committed to the parent) when this scope itself leaves.
func (l *Lookup) PopulateWithItem(it *items.Item) error {
	top, err := l.currentTop()
	if err != nil {
		return err
	}
	top.secondary[it.ItemType()] = append(top.secondary[it.ItemType()], it)
	return nil
}

// GetProperty reads through the stack top-down, falling back to the global
// table.
func (l *Lookup) GetProperty(name string) (string, bool) {
	key := strings.ToLower(name)
	for i := len(l.stack) - 1; i >= 0; i-- {
		if p, ok := l.stack[i].propOverrides[key]; ok {
			return p.Value, true
		}
	}
	return l.primaryProps.Get(name)
}

// SetProperty overrides name in the top frame (or the global table if no
// scope is entered).
func (l *Lookup) SetProperty(p items.Property) {
	key := strings.ToLower(p.Name)
	if len(l.stack) == 0 {
		l.primaryProps.Set(p)
		return
	}
	l.stack[len(l.stack)-1].propOverrides[key] = p
}

// Clone produces an independent snapshot sharing the primary tables and
// arena but with its own copy of the current scope stack: mutations on the
// original and the clone are independent after the call, though adds and
// removes that later commit all the way to the primary table remain
// observable to both, since the primary table is the only shared mutable
// surface (spec §4.1 clone()).
func (l *Lookup) Clone() *Lookup {
	cp := &Lookup{arena: l.arena, primaryItems: l.primaryItems, primaryProps: l.primaryProps, nextID: l.nextID}
	cp.stack = make([]*scope, len(l.stack))
	for i, s := range l.stack {
		cp.stack[i] = s.clone()
	}
	return cp
}

// Snapshot returns an independent copy of the currently-visible item table
// for use by a nested build invocation, which must see the calling entry's
// globals at the moment of the call without leaking later mutations either
// way (spec §5 ordering guarantees). Only item types already present in the
// primary table are copied; a type that exists solely in entered scopes is
// not included. Item pointers are shared with the Lookup, not copied.
func (l *Lookup) Snapshot() (*items.ItemTable, *items.PropertyTable) {
	snapshot := items.NewItemTable()
	for _, t := range l.primaryItems.Types() {
		for _, it := range l.GetItems(t) {
			snapshot.Append(t, it)
		}
	}
	return snapshot, l.primaryProps.Clone()
}
