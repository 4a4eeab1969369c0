package keyvalue

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/augentic/yetti/host"
	"github.com/augentic/yetti/link"
	"github.com/augentic/yetti/wasi/abi"
)

// Name is the capability name.
const Name = "wasi:keyvalue/store"

// Ctx is the per-request view the key-value host needs from the store
// context.
type Ctx struct {
	Store Store
}

// CtxKey is the typed store-context slot for this capability.
var CtxKey = host.NewKey[*Ctx](Name)

// KeyValue is the key-value capability host.
type KeyValue struct {
	store Store
}

// NewHost creates the key-value host over a connected store.
func NewHost(store Store) *KeyValue {
	return &KeyValue{store: store}
}

// Name returns the capability name.
func (h *KeyValue) Name() string { return Name }

// Data returns the slot accessor handed to Link.
func (h *KeyValue) Data() host.DataFunc { return host.Data(CtxKey) }

// Fill returns the store-context filler for this host.
func (h *KeyValue) Fill() host.Filler {
	return func(sc *host.StoreContext) {
		host.Put(sc, CtxKey, &Ctx{Store: h.store})
	}
}

// Link wires get/set/delete into the shared linker.
func (h *KeyValue) Link(l *link.Linker, data host.DataFunc) error {
	ctxOf := func(ctx context.Context) *Ctx {
		sc, _ := link.StoreFrom(ctx).(*host.StoreContext)
		if sc == nil {
			return nil
		}
		c, _ := data(sc).(*Ctx)
		return c
	}

	// get(key_ptr, key_len, buf_ptr, buf_cap) -> written | needed | miss
	getParams, getResults := abi.Sig(4)
	if err := l.DefineFunc(Name, link.Func{
		Name:    "get",
		Params:  getParams,
		Results: getResults,
		Call: api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			c := ctxOf(ctx)
			key, ok := abi.ReadString(mod, abi.I32(stack, 0), abi.I32(stack, 1))
			if c == nil || !ok {
				abi.Return(stack, abi.StatusError)
				return
			}
			value, found, err := c.Store.Get(ctx, key)
			if err != nil {
				Logger().Debug("kv get failed", zap.String("key", key), zap.Error(err))
				abi.Return(stack, abi.StatusError)
				return
			}
			if !found {
				abi.Return(stack, abi.StatusMiss)
				return
			}
			abi.Return(stack, abi.WriteResult(mod, abi.I32(stack, 2), abi.I32(stack, 3), value))
		}),
	}); err != nil {
		return err
	}

	// set(key_ptr, key_len, val_ptr, val_len, ttl_ptr) -> status
	// ttl_ptr references 8 little-endian bytes holding seconds; 0 = no expiry
	setParams, setResults := abi.Sig(5)
	if err := l.DefineFunc(Name, link.Func{
		Name:    "set",
		Params:  setParams,
		Results: setResults,
		Call: api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			c := ctxOf(ctx)
			key, okK := abi.ReadString(mod, abi.I32(stack, 0), abi.I32(stack, 1))
			value, okV := abi.ReadBytes(mod, abi.I32(stack, 2), abi.I32(stack, 3))
			ttlRaw, okT := abi.ReadBytes(mod, abi.I32(stack, 4), 8)
			if c == nil || !okK || !okV || !okT {
				abi.Return(stack, abi.StatusError)
				return
			}
			ttl := time.Duration(binary.LittleEndian.Uint64(ttlRaw)) * time.Second
			if err := c.Store.Set(ctx, key, value, ttl); err != nil {
				Logger().Debug("kv set failed", zap.String("key", key), zap.Error(err))
				abi.Return(stack, abi.StatusError)
				return
			}
			abi.Return(stack, abi.StatusOK)
		}),
	}); err != nil {
		return err
	}

	// delete(key_ptr, key_len) -> status
	delParams, delResults := abi.Sig(2)
	return l.DefineFunc(Name, link.Func{
		Name:    "delete",
		Params:  delParams,
		Results: delResults,
		Call: api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			c := ctxOf(ctx)
			key, ok := abi.ReadString(mod, abi.I32(stack, 0), abi.I32(stack, 1))
			if c == nil || !ok {
				abi.Return(stack, abi.StatusError)
				return
			}
			if err := c.Store.Delete(ctx, key); err != nil {
				abi.Return(stack, abi.StatusError)
				return
			}
			abi.Return(stack, abi.StatusOK)
		}),
	})
}
