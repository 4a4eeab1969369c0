package vault

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/augentic/yetti/host"
	"github.com/augentic/yetti/link"
	"github.com/augentic/yetti/wasi/abi"
)

// Ctx is the per-request view the vault host needs from the store
// context.
type Ctx struct {
	Vault *Vault
}

// CtxKey is the typed store-context slot for this capability.
var CtxKey = host.NewKey[*Ctx](Name)

// Secrets is the vault capability host.
type Secrets struct {
	vault *Vault
}

// NewHost creates the vault host over a connected vault.
func NewHost(vault *Vault) *Secrets {
	return &Secrets{vault: vault}
}

// Name returns the capability name.
func (h *Secrets) Name() string { return Name }

// Data returns the slot accessor handed to Link.
func (h *Secrets) Data() host.DataFunc { return host.Data(CtxKey) }

// Fill returns the store-context filler for this host.
func (h *Secrets) Fill() host.Filler {
	return func(sc *host.StoreContext) {
		host.Put(sc, CtxKey, &Ctx{Vault: h.vault})
	}
}

// Link wires resolve into the shared linker.
func (h *Secrets) Link(l *link.Linker, data host.DataFunc) error {
	ctxOf := func(ctx context.Context) *Ctx {
		sc, _ := link.StoreFrom(ctx).(*host.StoreContext)
		if sc == nil {
			return nil
		}
		c, _ := data(sc).(*Ctx)
		return c
	}

	// resolve(ref_ptr, ref_len, buf_ptr, buf_cap) -> written | needed
	params, results := abi.Sig(4)
	return l.DefineFunc(Name, link.Func{
		Name:    "resolve",
		Params:  params,
		Results: results,
		Call: api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			c := ctxOf(ctx)
			ref, ok := abi.ReadString(mod, abi.I32(stack, 0), abi.I32(stack, 1))
			if c == nil || !ok {
				abi.Return(stack, abi.StatusError)
				return
			}
			value, err := c.Vault.Resolve(ctx, ref)
			if err != nil {
				Logger().Debug("resolve failed", zap.String("ref", ref), zap.Error(err))
				abi.Return(stack, abi.StatusError)
				return
			}
			abi.Return(stack, abi.WriteResult(mod, abi.I32(stack, 2), abi.I32(stack, 3), []byte(value)))
		}),
	})
}
