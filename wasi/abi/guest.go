package abi

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/augentic/yetti/errors"
)

// Guest entry points follow the inverse of the host convention: the host
// allocates argument buffers through the guest's "alloc" export, passes
// them as (ptr, len) pairs, and the guest returns its reply as a packed
// i64 of (ptr << 32 | len) into its own memory. A zero return means no
// reply; callers treat it as an entry-point failure.

// ExportAlloc is the allocator export every dispatchable guest provides.
const ExportAlloc = "alloc"

// WriteGuest copies data into guest memory via the guest allocator and
// returns its (ptr, len) location.
func WriteGuest(ctx context.Context, mod api.Module, data []byte) (uint32, uint32, error) {
	if len(data) == 0 {
		return 0, 0, nil
	}
	alloc := mod.ExportedFunction(ExportAlloc)
	if alloc == nil {
		return 0, 0, errors.Internal(errors.PhaseDispatch, "guest does not export "+ExportAlloc, nil)
	}
	res, err := alloc.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, 0, errors.Internal(errors.PhaseDispatch, "guest alloc", err)
	}
	ptr := uint32(res[0])
	if ptr == 0 || !mod.Memory().Write(ptr, data) {
		return 0, 0, errors.Internal(errors.PhaseDispatch, "write guest memory", nil)
	}
	return ptr, uint32(len(data)), nil
}

// CallGuest invokes the named entry point with each payload staged into
// guest memory, then reads back the packed reply.
func CallGuest(ctx context.Context, mod api.Module, entry string, payloads ...[]byte) ([]byte, error) {
	fn := mod.ExportedFunction(entry)
	if fn == nil {
		return nil, errors.Internal(errors.PhaseDispatch, "guest does not export "+entry, nil)
	}

	params := make([]uint64, 0, len(payloads)*2)
	for _, p := range payloads {
		ptr, length, err := WriteGuest(ctx, mod, p)
		if err != nil {
			return nil, err
		}
		params = append(params, uint64(ptr), uint64(length))
	}

	res, err := fn.Call(ctx, params...)
	if err != nil {
		return nil, errors.Handler(err)
	}
	if len(res) == 0 {
		return nil, nil
	}
	packed := res[0]
	if packed == 0 {
		return nil, errors.Handler(nil)
	}
	ptr := uint32(packed >> 32)
	length := uint32(packed)
	if length == 0 {
		return nil, nil
	}
	out, ok := ReadBytes(mod, ptr, length)
	if !ok {
		return nil, errors.Internal(errors.PhaseDispatch, "read guest reply", nil)
	}
	return out, nil
}
