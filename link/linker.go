// Package link manages the shared linker that capability hosts register
// their functions into, and the pre-instantiation of guest components
// against it. Compilation happens once; instantiation happens per event.
package link

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/augentic/yetti/errors"
)

// Func is a single host function exported to guests under a namespace.
type Func struct {
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
	Call    api.GoModuleFunc
}

// Linker collects host function definitions keyed by namespace and compiles
// guest components against them. Thread-safe.
type Linker struct {
	runtime    wazero.Runtime
	funcs      map[string]map[string]Func // namespace -> name -> def
	namespaces []string                   // declaration order
	mu         sync.RWMutex
}

// New creates a Linker backed by the given wazero runtime.
func New(rt wazero.Runtime) *Linker {
	return &Linker{
		runtime: rt,
		funcs:   make(map[string]map[string]Func),
	}
}

// Runtime returns the wazero runtime.
func (l *Linker) Runtime() wazero.Runtime {
	return l.runtime
}

// DefineFunc registers a host function under a namespace. Defining the same
// namespace#name twice fails deterministically; the linking contract is that
// a capability links exactly once per linker.
func (l *Linker) DefineFunc(namespace string, fn Func) error {
	if namespace == "" || fn.Name == "" {
		return errors.Internal(errors.PhaseLink, "namespace and name are required", nil)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ns, ok := l.funcs[namespace]
	if !ok {
		ns = make(map[string]Func)
		l.funcs[namespace] = ns
		l.namespaces = append(l.namespaces, namespace)
	}
	if _, exists := ns[fn.Name]; exists {
		return errors.Internal(errors.PhaseLink,
			fmt.Sprintf("duplicate definition %s#%s", namespace, fn.Name), nil)
	}
	ns[fn.Name] = fn
	return nil
}

// Resolve looks up a function definition by namespace and name.
func (l *Linker) Resolve(namespace, name string) (Func, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fn, ok := l.funcs[namespace][name]
	return fn, ok
}

// Functions returns every defined function as "namespace#name", sorted.
func (l *Linker) Functions() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []string
	for ns, fns := range l.funcs {
		for name := range fns {
			out = append(out, ns+"#"+name)
		}
	}
	sort.Strings(out)
	return out
}

// instantiateHostModules materializes one wazero host module per namespace.
// Called once during Instantiate; the modules live for the runtime lifetime.
func (l *Linker) instantiateHostModules(ctx context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, ns := range l.namespaces {
		builder := l.runtime.NewHostModuleBuilder(ns)
		for name, fn := range l.funcs[ns] {
			builder.NewFunctionBuilder().
				WithGoModuleFunction(fn.Call, fn.Params, fn.Results).
				Export(name)
		}
		if _, err := builder.Instantiate(ctx); err != nil {
			return errors.LinkFailed(ns, err)
		}
	}
	return nil
}
