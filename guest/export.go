//go:build wasm

package guest

import (
	"context"
	"encoding/json"
	"unsafe"

	"github.com/augentic/yetti/capabilities"
)

// The host drives a guest through three exports: "alloc" stages event
// payloads into guest memory, "handle-request" and "handle-message"
// dispatch them. Replies come back as a packed i64 of (ptr << 32 | len);
// zero means the entry point failed.

var served *Guest

// pinned keeps host-visible allocations reachable. Instances are fresh
// per event, so entries live at most one dispatch.
var pinned = make(map[uint32][]byte)

// Serve registers g as the component's dispatch target. Call it from the
// guest's main before blocking.
func Serve(g *Guest) {
	served = g
}

//go:wasmexport alloc
func guestAlloc(size uint32) uint32 {
	if size == 0 {
		return 0
	}
	buf := make([]byte, size)
	ptr := bytesPtr(buf)
	pinned[ptr] = buf
	return ptr
}

func ownBytes(ptr, length uint32) []byte {
	if length == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), length)
}

func pack(reply []byte) uint64 {
	if len(reply) == 0 {
		reply = []byte("{}")
	}
	ptr := bytesPtr(reply)
	pinned[ptr] = reply
	return uint64(ptr)<<32 | uint64(uint32(len(reply)))
}

//go:wasmexport handle-request
func handleRequest(ptr, length uint32) uint64 {
	if served == nil {
		return 0
	}
	var req Request
	if err := json.Unmarshal(ownBytes(ptr, length), &req); err != nil {
		return 0
	}
	resp := served.HandleHTTP(context.Background(), req)
	reply, err := json.Marshal(resp)
	if err != nil {
		return 0
	}
	return pack(reply)
}

//go:wasmexport handle-message
func handleMessage(topicPtr, topicLen, msgPtr, msgLen uint32) uint64 {
	if served == nil {
		return 0
	}
	topic := string(ownBytes(topicPtr, topicLen))
	var msg capabilities.Message
	if err := json.Unmarshal(ownBytes(msgPtr, msgLen), &msg); err != nil {
		return packError(err)
	}
	if err := served.HandleTopic(context.Background(), topic, msg); err != nil {
		return packError(err)
	}
	return pack(nil)
}

// packError carries a dispatch failure back to the host as a structured
// reply, so topic misses and decode errors keep their text instead of
// collapsing into a bare failed call.
func packError(err error) uint64 {
	reply, merr := json.Marshal(map[string]string{"error": err.Error()})
	if merr != nil {
		return 0
	}
	return pack(reply)
}
