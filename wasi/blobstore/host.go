package blobstore

import (
	"context"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/augentic/yetti/host"
	"github.com/augentic/yetti/link"
	"github.com/augentic/yetti/wasi/abi"
)

// Ctx is the per-request view the blob-store host needs from the store
// context.
type Ctx struct {
	Store *FS
}

// CtxKey is the typed store-context slot for this capability.
var CtxKey = host.NewKey[*Ctx](Name)

// BlobStore is the blob-store capability host.
type BlobStore struct {
	store *FS
}

// NewHost creates the blob-store host over a connected store.
func NewHost(store *FS) *BlobStore {
	return &BlobStore{store: store}
}

// Name returns the capability name.
func (h *BlobStore) Name() string { return Name }

// Data returns the slot accessor handed to Link.
func (h *BlobStore) Data() host.DataFunc { return host.Data(CtxKey) }

// Fill returns the store-context filler for this host.
func (h *BlobStore) Fill() host.Filler {
	return func(sc *host.StoreContext) {
		host.Put(sc, CtxKey, &Ctx{Store: h.store})
	}
}

// Link wires read/write/delete/list into the shared linker.
func (h *BlobStore) Link(l *link.Linker, data host.DataFunc) error {
	ctxOf := func(ctx context.Context) *Ctx {
		sc, _ := link.StoreFrom(ctx).(*host.StoreContext)
		if sc == nil {
			return nil
		}
		c, _ := data(sc).(*Ctx)
		return c
	}

	// read(container_ptr, container_len, object_ptr, object_len,
	//      buf_ptr, buf_cap) -> written | needed | miss
	readParams, readResults := abi.Sig(6)
	if err := l.DefineFunc(Name, link.Func{
		Name:    "read",
		Params:  readParams,
		Results: readResults,
		Call: api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			c := ctxOf(ctx)
			container, okC := abi.ReadString(mod, abi.I32(stack, 0), abi.I32(stack, 1))
			object, okO := abi.ReadString(mod, abi.I32(stack, 2), abi.I32(stack, 3))
			if c == nil || !okC || !okO {
				abi.Return(stack, abi.StatusError)
				return
			}
			value, found, err := c.Store.Read(ctx, container, object)
			if err != nil {
				Logger().Debug("blob read failed",
					zap.String("container", container), zap.String("object", object), zap.Error(err))
				abi.Return(stack, abi.StatusError)
				return
			}
			if !found {
				abi.Return(stack, abi.StatusMiss)
				return
			}
			abi.Return(stack, abi.WriteResult(mod, abi.I32(stack, 4), abi.I32(stack, 5), value))
		}),
	}); err != nil {
		return err
	}

	// write(container_ptr, container_len, object_ptr, object_len,
	//       val_ptr, val_len) -> status
	writeParams, writeResults := abi.Sig(6)
	if err := l.DefineFunc(Name, link.Func{
		Name:    "write",
		Params:  writeParams,
		Results: writeResults,
		Call: api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			c := ctxOf(ctx)
			container, okC := abi.ReadString(mod, abi.I32(stack, 0), abi.I32(stack, 1))
			object, okO := abi.ReadString(mod, abi.I32(stack, 2), abi.I32(stack, 3))
			value, okV := abi.ReadBytes(mod, abi.I32(stack, 4), abi.I32(stack, 5))
			if c == nil || !okC || !okO || !okV {
				abi.Return(stack, abi.StatusError)
				return
			}
			if err := c.Store.Write(ctx, container, object, value); err != nil {
				Logger().Debug("blob write failed",
					zap.String("container", container), zap.String("object", object), zap.Error(err))
				abi.Return(stack, abi.StatusError)
				return
			}
			abi.Return(stack, abi.StatusOK)
		}),
	}); err != nil {
		return err
	}

	// delete(container_ptr, container_len, object_ptr, object_len) -> status
	delParams, delResults := abi.Sig(4)
	if err := l.DefineFunc(Name, link.Func{
		Name:    "delete",
		Params:  delParams,
		Results: delResults,
		Call: api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			c := ctxOf(ctx)
			container, okC := abi.ReadString(mod, abi.I32(stack, 0), abi.I32(stack, 1))
			object, okO := abi.ReadString(mod, abi.I32(stack, 2), abi.I32(stack, 3))
			if c == nil || !okC || !okO {
				abi.Return(stack, abi.StatusError)
				return
			}
			if err := c.Store.Delete(ctx, container, object); err != nil {
				abi.Return(stack, abi.StatusError)
				return
			}
			abi.Return(stack, abi.StatusOK)
		}),
	}); err != nil {
		return err
	}

	// list(container_ptr, container_len, buf_ptr, buf_cap) -> written | needed
	// Result is object names joined by '\n'.
	listParams, listResults := abi.Sig(4)
	return l.DefineFunc(Name, link.Func{
		Name:    "list",
		Params:  listParams,
		Results: listResults,
		Call: api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			c := ctxOf(ctx)
			container, ok := abi.ReadString(mod, abi.I32(stack, 0), abi.I32(stack, 1))
			if c == nil || !ok {
				abi.Return(stack, abi.StatusError)
				return
			}
			names, err := c.Store.List(ctx, container)
			if err != nil {
				abi.Return(stack, abi.StatusError)
				return
			}
			joined := strings.Join(names, "\n")
			abi.Return(stack, abi.WriteResult(mod, abi.I32(stack, 2), abi.I32(stack, 3), []byte(joined)))
		}),
	})
}
