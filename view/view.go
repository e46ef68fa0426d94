// Package view patches locally held collections in response to change
// events. It is a pure reducer: Apply never mutates its input state and is
// idempotent per event, so it can be unit tested against snapshots without a
// live channel and re-applied safely after a reconnect replayed a frame.
package view

import (
	"github.com/goliatone/go-entity-sync/realtime"
)

// Item is one entity rendered in a collection. The "id" field addresses it.
type Item map[string]any

// ID returns the item's id, or "" when absent.
func (it Item) ID() string {
	id, _ := it["id"].(string)
	return id
}

func (it Item) clone() Item {
	out := make(Item, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}

// Collection is an ordered sequence of items, typically one fetched page
// plus everything appended since.
type Collection []Item

// ScopeRef is one frame of the drill-down stack: the entity the user
// navigated into. Its EntityID doubles as the scope id of the nested
// collection it opened.
type ScopeRef struct {
	EntityType string
	EntityID   string
}

// State is the snapshot the reducer operates on: collections keyed by scope
// id, plus the stack of open drill-down frames.
type State struct {
	Collections map[string]Collection
	Stack       []ScopeRef
}

// NewState returns an empty snapshot.
func NewState() State {
	return State{Collections: map[string]Collection{}}
}

// Hold materializes an empty collection for the scope so later created
// events append to it. Returns a new state; absent scopes stay untouched.
func (s State) Hold(scopeID string) State {
	if _, ok := s.Collections[scopeID]; ok {
		return s
	}
	next := s.withCollections()
	next.Collections[scopeID] = Collection{}
	return next
}

// Replace installs items as the collection for the scope, e.g. after a page
// fetch. Returns a new state.
func (s State) Replace(scopeID string, items []Item) State {
	next := s.withCollections()
	next.Collections[scopeID] = append(Collection(nil), items...)
	return next
}

// Push opens a drill-down frame.
func (s State) Push(ref ScopeRef) State {
	next := s
	next.Stack = append(append([]ScopeRef(nil), s.Stack...), ref)
	return next
}

// Pop closes the innermost drill-down frame. No-op on an empty stack.
func (s State) Pop() State {
	if len(s.Stack) == 0 {
		return s
	}
	next := s
	next.Stack = append([]ScopeRef(nil), s.Stack[:len(s.Stack)-1]...)
	return next
}

// withCollections shallow-copies the state with a fresh collections map so
// the caller can assign into it.
func (s State) withCollections() State {
	next := s
	next.Collections = make(map[string]Collection, len(s.Collections)+1)
	for k, v := range s.Collections {
		next.Collections[k] = v
	}
	return next
}

// Apply reduces one change event into the snapshot and returns the next
// snapshot. Events for scopes that are not currently held are dropped; no
// phantom collections are created. Unrelated items never move.
func Apply(s State, ev realtime.ChangeEvent) State {
	switch ev.Op {
	case realtime.OpCreated:
		return applyCreated(s, ev)
	case realtime.OpUpdated:
		return applyUpdated(s, ev)
	case realtime.OpDeleted:
		return applyDeleted(s, ev)
	default:
		return s
	}
}

// applyCreated appends to the scope's collection if it is materialized.
// Re-delivery of the same event is a no-op: an item with the same id is
// never appended twice.
func applyCreated(s State, ev realtime.ChangeEvent) State {
	col, ok := s.Collections[ev.ScopeID]
	if !ok {
		return s
	}
	for _, it := range col {
		if it.ID() == ev.EntityID {
			return s
		}
	}

	item := Item{}
	for k, v := range ev.Payload {
		item[k] = v
	}
	item["id"] = ev.EntityID

	next := s.withCollections()
	next.Collections[ev.ScopeID] = append(append(Collection(nil), col...), item)
	return next
}

// applyUpdated shallow-merges the payload into every held copy of the item,
// wherever it appears, preserving its position. An id not present anywhere
// leaves the state unchanged.
func applyUpdated(s State, ev realtime.ChangeEvent) State {
	var next State
	touched := false

	for scope, col := range s.Collections {
		for i, it := range col {
			if it.ID() != ev.EntityID {
				continue
			}
			if !touched {
				next = s.withCollections()
				touched = true
			}
			merged := it.clone()
			for k, v := range ev.Payload {
				merged[k] = v
			}
			merged["id"] = ev.EntityID

			patched := append(Collection(nil), next.Collections[scope]...)
			patched[i] = merged
			next.Collections[scope] = patched
		}
	}

	if !touched {
		return s
	}
	return next
}

// applyDeleted removes the id from every held collection and collapses the
// drill-down stack at the first frame whose subject is the deleted entity,
// so no open sheet references a missing record.
func applyDeleted(s State, ev realtime.ChangeEvent) State {
	next := s
	touched := false

	for scope, col := range s.Collections {
		filtered := col
		for i, it := range col {
			if it.ID() != ev.EntityID {
				continue
			}
			filtered = append(append(Collection(nil), col[:i]...), col[i+1:]...)
			break
		}
		if len(filtered) == len(col) {
			continue
		}
		if !touched {
			next = s.withCollections()
			touched = true
		}
		next.Collections[scope] = filtered
	}

	for i, ref := range next.Stack {
		if ref.EntityID != ev.EntityID {
			continue
		}
		if !touched {
			next = next.withCollections()
		}
		next.Stack = append([]ScopeRef(nil), next.Stack[:i]...)
		touched = true
		break
	}

	if !touched {
		return s
	}
	return next
}
