package link

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/augentic/yetti/errors"
)

// InstancePre is a component pre-linked against the host's linker: compiled,
// import-checked, host modules instantiated. It is immutable after
// construction and cheap to reference from every request.
//
// NewInstance can be called concurrently; each call yields an independent
// guest instance.
type InstancePre struct {
	linker   *Linker
	compiled wazero.CompiledModule
	name     string
	seq      atomic.Uint64
}

// Instantiate validates and compiles a component against the linker.
// This is the expensive phase - call once, then NewInstance per event.
//
// The set of imports the component expects must be a subset of the functions
// the configured capability hosts defined; every unresolved import is named
// in the returned LinkError.
func (l *Linker) Instantiate(ctx context.Context, c *Component) (*InstancePre, error) {
	if c == nil {
		return nil, errors.Internal(errors.PhaseLink, "nil component", nil)
	}

	if err := l.instantiateHostModules(ctx); err != nil {
		return nil, err
	}

	compiled, err := l.runtime.CompileModule(ctx, c.Raw)
	if err != nil {
		return nil, errors.Internal(errors.PhaseLink, "compile component", err)
	}

	if missing := l.unresolvedImports(compiled); len(missing) > 0 {
		if closeErr := compiled.Close(ctx); closeErr != nil {
			Logger().Warn("failed to close compiled module during cleanup",
				zap.Error(closeErr))
		}
		return nil, errors.LinkFailed(c.Name,
			fmt.Errorf("unresolved imports: %s", strings.Join(missing, ", ")))
	}

	return &InstancePre{
		linker:   l,
		compiled: compiled,
		name:     c.Name,
	}, nil
}

// unresolvedImports returns every imported function the linker cannot
// satisfy, as "namespace#name".
func (l *Linker) unresolvedImports(compiled wazero.CompiledModule) []string {
	var missing []string
	for _, imp := range compiled.ImportedFunctions() {
		ns, name, _ := imp.Import()
		if _, ok := l.Resolve(ns, name); !ok {
			missing = append(missing, ns+"#"+name)
		}
	}
	return missing
}

// NewInstance instantiates the component for a single event. The returned
// instance carries its own linear memory and must be closed when the event
// completes. The per-event store travels in ctx (see WithStore).
func (pre *InstancePre) NewInstance(ctx context.Context) (api.Module, error) {
	n := pre.seq.Add(1)
	cfg := wazero.NewModuleConfig().
		WithName(fmt.Sprintf("%s-%d", pre.name, n)).
		WithStartFunctions() // run per-event entry points explicitly

	mod, err := pre.linker.runtime.InstantiateModule(ctx, pre.compiled, cfg)
	if err != nil {
		return nil, errors.Internal(errors.PhaseDispatch, "instantiate component", err)
	}
	return mod, nil
}

// Name returns the component name.
func (pre *InstancePre) Name() string {
	return pre.name
}

// Close releases the compiled module.
func (pre *InstancePre) Close(ctx context.Context) error {
	if pre.compiled == nil {
		return nil
	}
	err := pre.compiled.Close(ctx)
	pre.compiled = nil
	return err
}
