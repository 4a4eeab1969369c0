package link

import (
	"context"
	"strings"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

func newTestLinker(t *testing.T) *Linker {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { rt.Close(ctx) })
	return New(rt)
}

func noopFunc(name string) Func {
	return Func{
		Name:    name,
		Params:  []api.ValueType{api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI32},
		Call:    api.GoModuleFunc(func(_ context.Context, _ api.Module, _ []uint64) {}),
	}
}

func TestDefineFuncAndResolve(t *testing.T) {
	l := newTestLinker(t)

	if err := l.DefineFunc("wasi:keyvalue/store", noopFunc("get")); err != nil {
		t.Fatalf("DefineFunc failed: %v", err)
	}

	if _, ok := l.Resolve("wasi:keyvalue/store", "get"); !ok {
		t.Error("Resolve should find defined function")
	}
	if _, ok := l.Resolve("wasi:keyvalue/store", "set"); ok {
		t.Error("Resolve should not find undefined function")
	}
}

func TestDuplicateDefineFails(t *testing.T) {
	l := newTestLinker(t)

	if err := l.DefineFunc("wasi:config/store", noopFunc("get")); err != nil {
		t.Fatalf("first define failed: %v", err)
	}
	err := l.DefineFunc("wasi:config/store", noopFunc("get"))
	if err == nil {
		t.Fatal("duplicate define should fail")
	}
	if !strings.Contains(err.Error(), "wasi:config/store#get") {
		t.Errorf("error should name the duplicate: %v", err)
	}
}

func TestFunctionsEnumeration(t *testing.T) {
	l := newTestLinker(t)

	for _, name := range []string{"get", "set", "delete"} {
		if err := l.DefineFunc("wasi:keyvalue/store", noopFunc(name)); err != nil {
			t.Fatalf("DefineFunc(%s) failed: %v", name, err)
		}
	}
	if err := l.DefineFunc("wasi:config/store", noopFunc("get")); err != nil {
		t.Fatalf("DefineFunc failed: %v", err)
	}

	got := l.Functions()
	want := []string{
		"wasi:config/store#get",
		"wasi:keyvalue/store#delete",
		"wasi:keyvalue/store#get",
		"wasi:keyvalue/store#set",
	}
	if len(got) != len(want) {
		t.Fatalf("Functions() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Functions()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestIsComponentHeader(t *testing.T) {
	component := []byte{0x00, 'a', 's', 'm', 0x0d, 0x00, 0x01, 0x00}
	module := []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}

	if !IsComponent(component) {
		t.Error("component header not recognized")
	}
	if IsComponent(module) {
		t.Error("core module misidentified as component")
	}
	if !IsModule(module) {
		t.Error("module header not recognized")
	}
	if IsComponent([]byte("short")) {
		t.Error("short input should not be a component")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode("x", []byte("not wasm at all")); err == nil {
		t.Error("Decode should reject non-wasm bytes")
	}
}

func TestWithStoreRoundTrip(t *testing.T) {
	type store struct{ n int }
	s := &store{n: 7}

	ctx := WithStore(context.Background(), s)
	got := StoreFrom(ctx)
	if got != s {
		t.Errorf("StoreFrom = %v, want %v", got, s)
	}
	if StoreFrom(context.Background()) != nil {
		t.Error("StoreFrom on bare context should be nil")
	}
}
