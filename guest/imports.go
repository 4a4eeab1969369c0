//go:build wasm

package guest

import "unsafe"

// Raw host imports, one per linked capability function. All follow the
// buffer convention: byte arguments as (ptr, len) pairs, results written
// into a caller buffer, return value = bytes written | bytes needed |
// status code.

const (
	statusMiss  int64 = -2
	statusError int64 = -1
)

//go:wasmimport wasi:config/store get
func hostConfigGet(keyPtr, keyLen, bufPtr, bufCap uint32) int64

//go:wasmimport wasi:keyvalue/store get
func hostStateGet(keyPtr, keyLen, bufPtr, bufCap uint32) int64

//go:wasmimport wasi:keyvalue/store set
func hostStateSet(keyPtr, keyLen, valPtr, valLen, ttlPtr uint32) int64

//go:wasmimport wasi:keyvalue/store delete
func hostStateDelete(keyPtr, keyLen uint32) int64

//go:wasmimport wasi:http/outgoing-handler fetch
func hostFetch(reqPtr, reqLen, bufPtr, bufCap uint32) int64

//go:wasmimport wasi:messaging/producer publish
func hostPublish(topicPtr, topicLen, payloadPtr, payloadLen, headersPtr, headersLen uint32) int64

//go:wasmimport wasi:identity/credentials access-token
func hostAccessToken(namePtr, nameLen, bufPtr, bufCap uint32) int64

func bytesPtr(b []byte) uint32 {
	if len(b) == 0 {
		return 0
	}
	return uint32(uintptr(unsafe.Pointer(unsafe.SliceData(b))))
}

func stringPtr(s string) uint32 {
	if len(s) == 0 {
		return 0
	}
	return uint32(uintptr(unsafe.Pointer(unsafe.StringData(s))))
}

// buffered runs a host call that writes into a result buffer, growing the
// buffer once when the host reports a larger needed size.
func buffered(call func(bufPtr, bufCap uint32) int64) ([]byte, int64) {
	buf := make([]byte, 256)
	n := call(bytesPtr(buf), uint32(len(buf)))
	if n > int64(len(buf)) {
		buf = make([]byte, n)
		n = call(bytesPtr(buf), uint32(len(buf)))
	}
	if n < 0 {
		return nil, n
	}
	return buf[:n], n
}
