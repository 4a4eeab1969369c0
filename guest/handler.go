package guest

import (
	"context"
	"sync/atomic"

	"github.com/augentic/yetti/capabilities"
	"github.com/augentic/yetti/errors"
)

// Context is handed to every handler invocation: who the guest runs as,
// the capability facade, and the event's headers.
type Context struct {
	Owner    string
	Provider capabilities.Provider
	Headers  map[string]string
}

// Handler is implemented by request types. The dispatcher decodes the
// inbound event into the request value and invokes it.
type Handler interface {
	Handle(ctx context.Context, rc *Context) (any, error)
}

// Reply is a handler result carrying an explicit status and headers.
// Handlers returning any other value get a 200 with the value JSON
// encoded as the body.
type Reply[T any] struct {
	Status  int
	Headers map[string]string
	Body    T
}

func (r Reply[T]) respond() (int, map[string]string, any) {
	return r.Status, r.Headers, r.Body
}

type responder interface {
	respond() (int, map[string]string, any)
}

// The handler builder moves through three shapes; each transition
// consumes the previous one. Only the final shape can run, so a handler
// can never execute without its provider and owner.

// PreHandler is a decoded request with no capabilities attached.
type PreHandler struct {
	h Handler
}

// NewHandler starts the builder for a decoded request.
func NewHandler(h Handler) *PreHandler {
	return &PreHandler{h: h}
}

// Provider attaches the capability facade.
func (p *PreHandler) Provider(provider capabilities.Provider) *ProvidedHandler {
	return &ProvidedHandler{h: p.h, provider: provider}
}

// ProvidedHandler has capabilities but no owner identity yet.
type ProvidedHandler struct {
	h        Handler
	provider capabilities.Provider
}

// Owner attaches the owner identity, producing the runnable shape.
func (p *ProvidedHandler) Owner(owner string) *ReadyHandler {
	return &ReadyHandler{
		h:        p.h,
		provider: p.provider,
		owner:    owner,
	}
}

// ReadyHandler is the fully-populated shape. It runs exactly once.
type ReadyHandler struct {
	h        Handler
	provider capabilities.Provider
	owner    string
	headers  map[string]string
	used     atomic.Bool
}

// Headers attaches the event headers.
func (r *ReadyHandler) Headers(h map[string]string) *ReadyHandler {
	r.headers = h
	return r
}

// Handle runs the handler. A second call fails; cancellation of ctx
// reaches the handler directly.
func (r *ReadyHandler) Handle(ctx context.Context) (any, error) {
	if r.used.Swap(true) {
		return nil, errors.Internal(errors.PhaseDispatch, "handler already consumed", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.h.Handle(ctx, &Context{
		Owner:    r.owner,
		Provider: r.provider,
		Headers:  r.headers,
	})
}
