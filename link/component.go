package link

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/augentic/yetti/errors"
)

// Component is a portable guest binary loaded at start. Only the header is
// inspected here; the linker compiles the raw bytes.
type Component struct {
	Raw  []byte
	Name string
}

const wasmMagicLen = 8

// IsComponent reports whether the bytes carry the wasm magic with the
// component-model layer marker.
func IsComponent(raw []byte) bool {
	if len(raw) < wasmMagicLen {
		return false
	}
	if string(raw[0:4]) != "\x00asm" {
		return false
	}
	// layer field: 0x01 in bytes 6-7 marks a component; core modules carry 0x00
	return raw[6] == 0x01 && raw[7] == 0x00
}

// IsModule reports whether the bytes carry a core wasm module header.
func IsModule(raw []byte) bool {
	if len(raw) < wasmMagicLen {
		return false
	}
	return string(raw[0:4]) == "\x00asm" && raw[6] == 0x00 && raw[7] == 0x00
}

// Decode wraps raw bytes as a Component after a header check.
func Decode(name string, raw []byte) (*Component, error) {
	if !IsComponent(raw) && !IsModule(raw) {
		return nil, errors.Internal(errors.PhaseStartup, "not a wasm binary", nil)
	}
	return &Component{Raw: raw, Name: name}, nil
}

// LoadComponent reads and decodes a component file. The component name is
// derived from the file name.
func LoadComponent(path string) (*Component, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Internal(errors.PhaseStartup, "read component", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Decode(name, raw)
}
