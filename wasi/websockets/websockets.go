// Package websockets implements the push capability: a broadcast hub
// guests publish frames into, served to subscribers as an event stream.
// This mirrors the minimal surface the runtime exposes; full duplex
// sockets are out of scope.
package websockets

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/augentic/yetti/env"
	"github.com/augentic/yetti/errors"
	"github.com/augentic/yetti/host"
	"github.com/augentic/yetti/link"
	"github.com/augentic/yetti/wasi/abi"
)

// Name is the capability name.
const Name = "wasi:websockets/hub"

// Options configures the push hub server.
type Options struct {
	Addr string `env:"WS_ADDR" default:"localhost:8081"`
}

// OptionsFromEnv populates Options from the process environment.
func OptionsFromEnv() (Options, error) {
	var opts Options
	err := env.Bind(&opts)
	return opts, err
}

// Hub fans frames out to every connected subscriber. A slow subscriber
// drops frames rather than stalling the hub.
type Hub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

// Publish broadcasts one frame.
func (h *Hub) Publish(data []byte) {
	frame := append([]byte(nil), data...)
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- frame:
		default:
		}
	}
}

func (h *Hub) attach() chan []byte {
	ch := make(chan []byte, 16)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) detach(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Ctx is the per-request view the hub host needs from the store context.
type Ctx struct {
	Hub *Hub
}

// CtxKey is the typed store-context slot for this capability.
var CtxKey = host.NewKey[*Ctx](Name)

// WebSockets is the push capability host.
type WebSockets struct {
	hub  *Hub
	opts Options
}

// NewHost creates the push host.
func NewHost(hub *Hub, opts Options) *WebSockets {
	return &WebSockets{hub: hub, opts: opts}
}

// Name returns the capability name.
func (h *WebSockets) Name() string { return Name }

// Data returns the slot accessor handed to Link.
func (h *WebSockets) Data() host.DataFunc { return host.Data(CtxKey) }

// Fill returns the store-context filler for this host.
func (h *WebSockets) Fill() host.Filler {
	return func(sc *host.StoreContext) {
		host.Put(sc, CtxKey, &Ctx{Hub: h.hub})
	}
}

// Link wires publish into the shared linker.
func (h *WebSockets) Link(l *link.Linker, data host.DataFunc) error {
	ctxOf := func(ctx context.Context) *Ctx {
		sc, _ := link.StoreFrom(ctx).(*host.StoreContext)
		if sc == nil {
			return nil
		}
		c, _ := data(sc).(*Ctx)
		return c
	}

	// publish(data_ptr, data_len) -> status
	params, results := abi.Sig(2)
	return l.DefineFunc(Name, link.Func{
		Name:    "publish",
		Params:  params,
		Results: results,
		Call: api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			c := ctxOf(ctx)
			data, ok := abi.ReadBytes(mod, abi.I32(stack, 0), abi.I32(stack, 1))
			if c == nil || !ok {
				abi.Return(stack, abi.StatusError)
				return
			}
			c.Hub.Publish(data)
			abi.Return(stack, abi.StatusOK)
		}),
	})
}

// Run serves the subscriber stream until ctx is cancelled.
func (h *WebSockets) Run(ctx context.Context, _ *host.State) error {
	ln, err := net.Listen("tcp", h.opts.Addr)
	if err != nil {
		return errors.Internal(errors.PhaseStartup, "listen "+h.opts.Addr, err)
	}

	srv := &http.Server{
		Handler:           http.HandlerFunc(h.stream),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	Logger().Info("hub listening", zap.String("addr", ln.Addr().String()))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-done:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// stream writes hub frames to one subscriber as server-sent events.
func (h *WebSockets) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusNotImplemented)
		return
	}

	ch := h.hub.attach()
	defer h.hub.detach(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case frame := <-ch:
			fmt.Fprintf(w, "data: %s\n\n", frame)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
