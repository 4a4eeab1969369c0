package host

import (
	"github.com/augentic/yetti/link"
	"github.com/augentic/yetti/resource"
)

type keyID struct {
	name string
}

// Key identifies a capability's typed slot on the store context. Each
// capability package creates exactly one key for its context type; the
// assembler fills the slot, and the capability's link closures read it back
// without the store context knowing the capability's internals.
type Key[C any] struct {
	id *keyID
}

// NewKey creates a typed slot key for a capability.
func NewKey[C any](name string) Key[C] {
	return Key[C]{id: &keyID{name: name}}
}

// Name returns the capability name the key was created with.
func (k Key[C]) Name() string {
	return k.id.name
}

// StoreContext is the per-request context shared by all capabilities of one
// event. It owns its resource table exclusively; it is constructed fresh for
// every inbound event and discarded at end of event.
type StoreContext struct {
	slots map[*keyID]any
	table *resource.Table
	pre   *link.InstancePre
}

// NewStoreContext creates a store context referencing the pre-instantiated
// component template.
func NewStoreContext(pre *link.InstancePre) *StoreContext {
	return &StoreContext{
		slots: make(map[*keyID]any),
		table: resource.NewTable(),
		pre:   pre,
	}
}

// Table returns the per-request resource table.
func (sc *StoreContext) Table() *resource.Table {
	return sc.table
}

// Pre returns the pre-instantiated component template.
func (sc *StoreContext) Pre() *link.InstancePre {
	return sc.pre
}

// Slots returns the number of capability contexts attached.
func (sc *StoreContext) Slots() int {
	return len(sc.slots)
}

// Close discards the context's resources at end of event.
func (sc *StoreContext) Close() {
	sc.table.Clear()
}

// Put attaches a capability context to its slot. Called by the assembler's
// slot fillers; one slot per configured host.
func Put[C any](sc *StoreContext, k Key[C], ctx C) {
	sc.slots[k.id] = ctx
}

// View returns the capability context stored under k.
func View[C any](sc *StoreContext, k Key[C]) (C, bool) {
	v, ok := sc.slots[k.id]
	if !ok {
		var zero C
		return zero, false
	}
	return v.(C), true
}

// Data adapts a key into the DataFunc shape hosts receive at link time.
func Data[C any](k Key[C]) DataFunc {
	return func(sc *StoreContext) any {
		v, _ := View(sc, k)
		return v
	}
}
