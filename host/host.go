// Package host defines the protocol by which capability hosts plug into the
// shared linker, the per-request store context they read their data from,
// and the process-wide state that owns the pre-linked component.
package host

import (
	"context"

	"github.com/augentic/yetti/link"
)

// DataFunc retrieves a host's capability data from a store context. The
// runtime assembler supplies it so a host never needs to know the store
// context's layout.
type DataFunc func(sc *StoreContext) any

// Host is implemented by every capability in order to register its exported
// functions into the shared linker.
//
// Link must be idempotent relative to a linker: linking the same host into
// the same linker twice fails deterministically. Link must not block;
// failures are returned as structured errors naming the capability.
type Host interface {
	// Name returns the capability name (e.g. "wasi:keyvalue").
	Name() string

	// Link wires the host's exported functions into the linker.
	Link(l *link.Linker, data DataFunc) error
}

// Server is implemented by hosts that own a blocking run-loop dispatching
// inbound events into instantiated guests. The runtime assembler starts all
// Server hosts concurrently at program entry.
type Server interface {
	Host

	// Run blocks until ctx is cancelled or the host stops serving.
	Run(ctx context.Context, s *State) error
}
