// Package resource provides the per-request resource table shared by all
// capabilities of a store context.
package resource

// Handle identifies a resource within a table. Zero is never a valid handle.
type Handle uint32

// Dropper is implemented by resources that need cleanup when removed.
type Dropper interface {
	Drop()
}

// Table holds the resources created by capabilities during a single event.
// A table is owned by exactly one store context and must not be shared
// across events; it is not safe for concurrent use.
type Table struct {
	entries map[Handle]any
	next    Handle
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		entries: make(map[Handle]any),
		next:    1,
	}
}

// Add inserts a value and returns its handle.
func (t *Table) Add(value any) Handle {
	h := t.next
	t.next++
	t.entries[h] = value
	return h
}

// Get retrieves a value by handle.
func (t *Table) Get(h Handle) (any, bool) {
	v, ok := t.entries[h]
	return v, ok
}

// Drop removes a resource, running its Drop hook if present.
func (t *Table) Drop(h Handle) (any, bool) {
	v, ok := t.entries[h]
	if !ok {
		return nil, false
	}
	delete(t.entries, h)
	if d, ok := v.(Dropper); ok {
		d.Drop()
	}
	return v, true
}

// Len returns the number of live resources.
func (t *Table) Len() int {
	return len(t.entries)
}

// Clear drops every resource. Called when the store context is discarded at
// end of event.
func (t *Table) Clear() {
	for h := range t.entries {
		t.Drop(h)
	}
}
