package runtime

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/augentic/yetti/errors"
	"github.com/augentic/yetti/host"
	"github.com/augentic/yetti/link"
)

// emptyModule is the smallest valid core wasm binary: it imports nothing
// and exports nothing.
var emptyModule = []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}

func testComponent(t *testing.T) *link.Component {
	t.Helper()
	c, err := link.Decode("test", emptyModule)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

type stubHost struct {
	name    string
	linkErr error
	linked  bool
}

func (h *stubHost) Name() string { return h.name }

func (h *stubHost) Link(l *link.Linker, _ host.DataFunc) error {
	h.linked = true
	return h.linkErr
}

func (h *stubHost) Fill() host.Filler {
	return func(sc *host.StoreContext) {}
}

func bindingFor(h host.Host) Binding {
	return Binding{
		Name:    h.Name(),
		Connect: func(context.Context) (host.Host, error) { return h, nil },
	}
}

func TestAssembleOrdersCapabilities(t *testing.T) {
	a := &stubHost{name: "cap:a"}
	b := &stubHost{name: "cap:b"}
	cfg := Config{
		Component: testComponent(t),
		Hosts:     []Binding{bindingFor(a), bindingFor(b)},
	}

	state, err := Assemble(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	defer state.Close(context.Background())

	caps := state.Capabilities()
	if len(caps) != 2 || caps[0] != "cap:a" || caps[1] != "cap:b" {
		t.Errorf("Capabilities() = %v, want [cap:a cap:b]", caps)
	}
	if !a.linked || !b.linked {
		t.Error("not every host was linked")
	}

	sc := state.Store()
	defer sc.Close()
	if sc.Pre() == nil {
		t.Error("store context missing pre-instance")
	}
}

func TestAssembleBackendFailureIsFatal(t *testing.T) {
	boom := errors.BackendUnavailable("cap:bad", fmt.Errorf("connect refused"))
	cfg := Config{
		Component: testComponent(t),
		Hosts: []Binding{
			bindingFor(&stubHost{name: "cap:ok"}),
			{Name: "cap:bad", Connect: func(context.Context) (host.Host, error) {
				return nil, boom
			}},
		},
	}

	_, err := Assemble(context.Background(), cfg)
	if !stderrors.Is(err, boom) {
		t.Errorf("Assemble() error = %v, want %v", err, boom)
	}
}

func TestAssembleNamesLinkFailures(t *testing.T) {
	cfg := Config{
		Component: testComponent(t),
		Hosts: []Binding{
			bindingFor(&stubHost{name: "cap:broken", linkErr: fmt.Errorf("bad signature")}),
		},
	}

	_, err := Assemble(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected link failure")
	}
	var e *errors.Error
	if !stderrors.As(err, &e) {
		t.Fatalf("error type = %T", err)
	}
	if e.Capability != "cap:broken" {
		t.Errorf("Capability = %q, want cap:broken", e.Capability)
	}
}

func TestAssembleRequiresComponent(t *testing.T) {
	if _, err := Assemble(context.Background(), Config{}); err == nil {
		t.Error("expected error for missing component")
	}
}

type stubServer struct {
	stubHost
	run func(ctx context.Context, s *host.State) error
}

func (h *stubServer) Run(ctx context.Context, s *host.State) error {
	return h.run(ctx, s)
}

func TestRunFirstExitCancelsRest(t *testing.T) {
	otherStopped := make(chan struct{})
	quick := &stubServer{
		stubHost: stubHost{name: "cap:quick"},
		run: func(context.Context, *host.State) error {
			return nil
		},
	}
	patient := &stubServer{
		stubHost: stubHost{name: "cap:patient"},
		run: func(ctx context.Context, _ *host.State) error {
			<-ctx.Done()
			close(otherStopped)
			return ctx.Err()
		},
	}
	cfg := Config{
		Main:      true,
		Component: testComponent(t),
		Hosts:     []Binding{bindingFor(quick), bindingFor(patient)},
	}

	state, err := Assemble(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- Run(context.Background(), state, cfg) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after first server exit")
	}
	select {
	case <-otherStopped:
	case <-time.After(time.Second):
		t.Fatal("second server was not cancelled")
	}
}

func TestRunNonMainToleratesCleanExit(t *testing.T) {
	exited := make(chan struct{})
	proceed := make(chan struct{})
	var patientCtxErr error
	quick := &stubServer{
		stubHost: stubHost{name: "cap:quick"},
		run: func(context.Context, *host.State) error {
			close(exited)
			return nil
		},
	}
	patient := &stubServer{
		stubHost: stubHost{name: "cap:patient"},
		run: func(ctx context.Context, _ *host.State) error {
			<-proceed
			patientCtxErr = ctx.Err()
			return nil
		},
	}
	cfg := Config{
		Component: testComponent(t),
		Hosts:     []Binding{bindingFor(quick), bindingFor(patient)},
	}

	state, err := Assemble(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		<-exited
		// give a wrongly-cancelling Run time to propagate before the
		// patient server observes its context
		time.Sleep(50 * time.Millisecond)
		close(proceed)
	}()

	if err := Run(context.Background(), state, cfg); err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if patientCtxErr != nil {
		t.Errorf("clean exit cancelled the remaining server: %v", patientCtxErr)
	}
}

func TestRunSurfacesServerError(t *testing.T) {
	boom := fmt.Errorf("listen failed")
	bad := &stubServer{
		stubHost: stubHost{name: "cap:bad"},
		run: func(context.Context, *host.State) error {
			return boom
		},
	}
	cfg := Config{
		Component: testComponent(t),
		Hosts:     []Binding{bindingFor(bad)},
	}

	state, err := Assemble(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := Run(context.Background(), state, cfg); !stderrors.Is(err, boom) {
		t.Errorf("Run() error = %v, want %v", err, boom)
	}
}

func TestRunRequiresServers(t *testing.T) {
	cfg := Config{
		Component: testComponent(t),
		Hosts:     []Binding{bindingFor(&stubHost{name: "cap:passive"})},
	}
	state, err := Assemble(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer state.Close(context.Background())

	if err := Run(context.Background(), state, cfg); err == nil {
		t.Error("expected error when no server hosts are configured")
	}
}

func TestLoadConfig(t *testing.T) {
	path := t.TempDir() + "/runtime.yaml"
	manifest := "component: app.wasm\nhosts: [http, keyvalue]\nhttp_addr: localhost:9999\n"
	if err := os.WriteFile(path, []byte(manifest), 0o600); err != nil {
		t.Fatal(err)
	}

	m, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if m.Component != "app.wasm" {
		t.Errorf("Component = %q", m.Component)
	}
	if len(m.Hosts) != 2 || m.Hosts[0] != "http" {
		t.Errorf("Hosts = %v", m.Hosts)
	}
	if m.HTTPAddr != "localhost:9999" {
		t.Errorf("HTTPAddr = %q", m.HTTPAddr)
	}

	if _, err := LoadConfig(path + ".missing"); err == nil {
		t.Error("expected error for missing manifest")
	}
}

func TestBindingsRejectsUnknownHost(t *testing.T) {
	if _, err := Bindings(&Manifest{Hosts: []string{"no-such-host"}}); err == nil {
		t.Error("expected error for unknown host name")
	}
}
