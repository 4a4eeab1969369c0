package otel

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/tetratelabs/wazero/api"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/augentic/yetti/host"
	"github.com/augentic/yetti/link"
	"github.com/augentic/yetti/wasi/abi"
)

// Ctx is the per-request view the tracing host needs from the store
// context.
type Ctx struct {
	Provider *Provider
}

// CtxKey is the typed store-context slot for this capability.
var CtxKey = host.NewKey[*Ctx](Name)

// Tracing is the tracing capability host. The dispatcher opens one span
// per event; guests annotate it through this host.
type Tracing struct {
	provider *Provider
}

// NewHost creates the tracing host over a connected provider.
func NewHost(provider *Provider) *Tracing {
	return &Tracing{provider: provider}
}

// Name returns the capability name.
func (h *Tracing) Name() string { return Name }

// Data returns the slot accessor handed to Link.
func (h *Tracing) Data() host.DataFunc { return host.Data(CtxKey) }

// Fill returns the store-context filler for this host.
func (h *Tracing) Fill() host.Filler {
	return func(sc *host.StoreContext) {
		host.Put(sc, CtxKey, &Ctx{Provider: h.provider})
	}
}

// Link wires add-event into the shared linker. Attributes cross the
// boundary as a JSON object of string values.
func (h *Tracing) Link(l *link.Linker, _ host.DataFunc) error {
	// add-event(name_ptr, name_len, attrs_ptr, attrs_len) -> status
	params, results := abi.Sig(4)
	return l.DefineFunc(Name, link.Func{
		Name:    "add-event",
		Params:  params,
		Results: results,
		Call: api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			name, ok := abi.ReadString(mod, abi.I32(stack, 0), abi.I32(stack, 1))
			if !ok {
				abi.Return(stack, abi.StatusError)
				return
			}
			var opts []trace.EventOption
			if attrLen := abi.I32(stack, 3); attrLen > 0 {
				raw, ok := abi.ReadBytes(mod, abi.I32(stack, 2), attrLen)
				if !ok {
					abi.Return(stack, abi.StatusError)
					return
				}
				attrs := map[string]string{}
				if err := json.Unmarshal(raw, &attrs); err != nil {
					abi.Return(stack, abi.StatusError)
					return
				}
				keys := make([]string, 0, len(attrs))
				for k := range attrs {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				kvs := make([]attribute.KeyValue, 0, len(keys))
				for _, k := range keys {
					kvs = append(kvs, attribute.String(k, attrs[k]))
				}
				opts = append(opts, trace.WithAttributes(kvs...))
			}
			trace.SpanFromContext(ctx).AddEvent(name, opts...)
			abi.Return(stack, abi.StatusOK)
		}),
	})
}
