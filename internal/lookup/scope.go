package lookup

import "github.com/buildcore/engine/internal/items"

// ScopeHandle identifies a pushed frame; it must be presented unchanged to
// LeaveScope and must name the current top of the stack (spec §4.1).
type ScopeHandle uint64

// scope is one pushed frame: adds/removes/modifications/property overrides
// relative to its parent, plus a secondary-primary seed set populated via
// PopulateWithItem (spec §3 "Scope (Lookup frame)").
type scope struct {
	id          ScopeHandle
	description string

	adds   map[string][]*items.Item
	addSet map[items.Handle]bool

	removes map[items.Handle]string // handle -> item type, for routing on commit

	mods        map[items.Handle]*items.ModificationSet
	modItemType map[items.Handle]string

	secondary map[string][]*items.Item

	propOverrides map[string]items.Property
}

func newScope(id ScopeHandle, description string) *scope {
	return &scope{
		id:            id,
		description:   description,
		adds:          make(map[string][]*items.Item),
		addSet:        make(map[items.Handle]bool),
		removes:       make(map[items.Handle]string),
		mods:          make(map[items.Handle]*items.ModificationSet),
		modItemType:   make(map[items.Handle]string),
		secondary:     make(map[string][]*items.Item),
		propOverrides: make(map[string]items.Property),
	}
}

func (s *scope) clone() *scope {
	cp := newScope(s.id, s.description)
	for t, v := range s.adds {
		cp.adds[t] = append([]*items.Item(nil), v...)
	}
	for h, v := range s.addSet {
		cp.addSet[h] = v
	}
	for h, t := range s.removes {
		cp.removes[h] = t
	}
	for h, m := range s.mods {
		cp.mods[h] = m
	}
	for h, t := range s.modItemType {
		cp.modItemType[h] = t
	}
	for t, v := range s.secondary {
		cp.secondary[t] = append([]*items.Item(nil), v...)
	}
	for k, v := range s.propOverrides {
		cp.propOverrides[k] = v
	}
	return cp
}
