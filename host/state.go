package host

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/augentic/yetti/link"
)

// Filler populates one capability slot on a fresh store context. The runtime
// assembler registers one filler per configured host.
type Filler func(sc *StoreContext)

// State is the process-wide value created once at program start, after all
// backends have connected. It is shared by reference with every dispatched
// event. Immutable after Seal.
type State struct {
	pre      *link.InstancePre
	backends map[string]any
	order    []string
	fillers  []Filler
	sealed   bool
}

// NewState creates an empty state. The assembler adds backends and fillers,
// then seals it.
func NewState() *State {
	return &State{
		backends: make(map[string]any),
	}
}

// AddBackend records a connected backend under its capability name.
func (s *State) AddBackend(capability string, backend any) {
	if s.sealed {
		panic("host: AddBackend after Seal")
	}
	if _, dup := s.backends[capability]; !dup {
		s.order = append(s.order, capability)
	}
	s.backends[capability] = backend
}

// AddFiller registers a store-context slot filler.
func (s *State) AddFiller(f Filler) {
	if s.sealed {
		panic("host: AddFiller after Seal")
	}
	s.fillers = append(s.fillers, f)
}

// SetPre attaches the pre-instantiated component.
func (s *State) SetPre(pre *link.InstancePre) {
	if s.sealed {
		panic("host: SetPre after Seal")
	}
	s.pre = pre
}

// Seal freezes the state. Store may be called only on a sealed state.
func (s *State) Seal() {
	s.sealed = true
}

// Pre returns the pre-instantiated component template.
func (s *State) Pre() *link.InstancePre {
	return s.pre
}

// Backend returns the connected backend for a capability.
func (s *State) Backend(capability string) (any, bool) {
	b, ok := s.backends[capability]
	return b, ok
}

// Capabilities returns the configured capability names in declaration order.
func (s *State) Capabilities() []string {
	return append([]string(nil), s.order...)
}

// Store constructs a fresh store context with the per-request defaults:
// one capability context per configured host plus a new resource table.
// It is cheap and never fails.
func (s *State) Store() *StoreContext {
	sc := NewStoreContext(s.pre)
	for _, fill := range s.fillers {
		fill(sc)
	}
	return sc
}

// Close releases the pre-instance and every backend that holds resources.
func (s *State) Close(ctx context.Context) error {
	var firstErr error
	if s.pre != nil {
		if err := s.pre.Close(ctx); err != nil {
			firstErr = err
		}
	}
	for _, name := range s.order {
		if c, ok := s.backends[name].(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			if err := ctx.Err(); err != nil {
				Logger().Warn("state close interrupted", zap.Error(err))
				break
			}
		}
	}
	return firstErr
}
