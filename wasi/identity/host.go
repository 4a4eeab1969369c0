package identity

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/augentic/yetti/host"
	"github.com/augentic/yetti/link"
	"github.com/augentic/yetti/wasi/abi"
)

// Ctx is the per-request view the identity host needs from the store
// context.
type Ctx struct {
	Registry *Registry
}

// CtxKey is the typed store-context slot for this capability.
var CtxKey = host.NewKey[*Ctx](Name)

// Identity is the identity capability host.
type Identity struct {
	registry *Registry
}

// NewHost creates the identity host over a connected registry.
func NewHost(registry *Registry) *Identity {
	return &Identity{registry: registry}
}

// Name returns the capability name.
func (h *Identity) Name() string { return Name }

// Data returns the slot accessor handed to Link.
func (h *Identity) Data() host.DataFunc { return host.Data(CtxKey) }

// Fill returns the store-context filler for this host.
func (h *Identity) Fill() host.Filler {
	return func(sc *host.StoreContext) {
		host.Put(sc, CtxKey, &Ctx{Registry: h.registry})
	}
}

// Link wires access-token into the shared linker.
func (h *Identity) Link(l *link.Linker, data host.DataFunc) error {
	ctxOf := func(ctx context.Context) *Ctx {
		sc, _ := link.StoreFrom(ctx).(*host.StoreContext)
		if sc == nil {
			return nil
		}
		c, _ := data(sc).(*Ctx)
		return c
	}

	// access-token(name_ptr, name_len, buf_ptr, buf_cap) -> written | needed
	params, results := abi.Sig(4)
	return l.DefineFunc(Name, link.Func{
		Name:    "access-token",
		Params:  params,
		Results: results,
		Call: api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			c := ctxOf(ctx)
			name, ok := abi.ReadString(mod, abi.I32(stack, 0), abi.I32(stack, 1))
			if c == nil || !ok {
				abi.Return(stack, abi.StatusError)
				return
			}
			token, err := c.Registry.AccessToken(ctx, name)
			if err != nil {
				Logger().Debug("access token failed", zap.String("identity", name), zap.Error(err))
				abi.Return(stack, abi.StatusError)
				return
			}
			abi.Return(stack, abi.WriteResult(mod, abi.I32(stack, 2), abi.I32(stack, 3), []byte(token)))
		}),
	})
}
