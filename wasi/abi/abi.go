// Package abi implements the buffer-style calling convention capability
// hosts expose to guests: strings and byte payloads are passed as
// (ptr, len) pairs in guest memory, results are written into a
// caller-provided buffer, and the return value reports bytes written,
// bytes needed, or a status code.
package abi

import (
	"github.com/tetratelabs/wazero/api"
)

// Status codes returned in place of a byte count. All are negative so a
// non-negative return always means "bytes written".
const (
	StatusMiss  int64 = -2 // lookup succeeded, no value present
	StatusError int64 = -1 // host-side failure
	StatusOK    int64 = 0
)

// ReadBytes copies (ptr, len) out of guest memory.
func ReadBytes(mod api.Module, ptr, length uint32) ([]byte, bool) {
	if length == 0 {
		return nil, true
	}
	data, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return nil, false
	}
	// the view aliases guest memory; copy before the guest runs again
	return append([]byte(nil), data...), true
}

// ReadString copies a UTF-8 string out of guest memory.
func ReadString(mod api.Module, ptr, length uint32) (string, bool) {
	b, ok := ReadBytes(mod, ptr, length)
	if !ok {
		return "", false
	}
	return string(b), true
}

// WriteResult writes data into the caller's buffer when it fits and returns
// the byte count. When the buffer is too small it writes nothing and
// returns the needed length so the guest can retry with a larger buffer.
func WriteResult(mod api.Module, bufPtr, bufCap uint32, data []byte) int64 {
	if len(data) > int(bufCap) {
		return int64(len(data))
	}
	if len(data) == 0 {
		return 0
	}
	if !mod.Memory().Write(bufPtr, data) {
		return StatusError
	}
	return int64(len(data))
}

// I32 reads a stack slot as uint32.
func I32(stack []uint64, i int) uint32 {
	return api.DecodeU32(stack[i])
}

// Return encodes an int64 result into stack slot 0.
func Return(stack []uint64, v int64) {
	stack[0] = api.EncodeI64(v)
}

// Sig builds the common (i32 x n) -> i64 host function signature.
func Sig(nParams int) (params, results []api.ValueType) {
	params = make([]api.ValueType, nParams)
	for i := range params {
		params[i] = api.ValueTypeI32
	}
	return params, []api.ValueType{api.ValueTypeI64}
}
