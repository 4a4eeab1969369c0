package http

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/augentic/yetti/errors"
	"github.com/augentic/yetti/host"
	"github.com/augentic/yetti/link"
	"github.com/augentic/yetti/wasi/abi"
)

// Name is the capability name.
const Name = "wasi:http/outgoing-handler"

// EntryPoint is the guest export invoked for each inbound request.
const EntryPoint = "handle-request"

// Ctx is the per-request view the HTTP host needs from the store
// context.
type Ctx struct {
	Proxy *Proxy
}

// CtxKey is the typed store-context slot for this capability.
var CtxKey = host.NewKey[*Ctx](Name)

// HTTP is the HTTP capability host: it links the outbound fetch surface
// and, as a Server, turns each inbound request into one guest event.
type HTTP struct {
	proxy *Proxy
	opts  ServerOptions
}

// NewHost creates the HTTP host.
func NewHost(proxy *Proxy, opts ServerOptions) *HTTP {
	return &HTTP{proxy: proxy, opts: opts}
}

// Name returns the capability name.
func (h *HTTP) Name() string { return Name }

// Data returns the slot accessor handed to Link.
func (h *HTTP) Data() host.DataFunc { return host.Data(CtxKey) }

// Fill returns the store-context filler for this host.
func (h *HTTP) Fill() host.Filler {
	return func(sc *host.StoreContext) {
		host.Put(sc, CtxKey, &Ctx{Proxy: h.proxy})
	}
}

// Link wires fetch into the shared linker. The request crosses as a
// JSON RequestEnvelope; the reply is a JSON ResponseEnvelope whose Error
// field carries the transport code when the upstream call failed.
func (h *HTTP) Link(l *link.Linker, data host.DataFunc) error {
	ctxOf := func(ctx context.Context) *Ctx {
		sc, _ := link.StoreFrom(ctx).(*host.StoreContext)
		if sc == nil {
			return nil
		}
		c, _ := data(sc).(*Ctx)
		return c
	}

	// fetch(req_ptr, req_len, buf_ptr, buf_cap) -> written | needed
	params, results := abi.Sig(4)
	return l.DefineFunc(Name, link.Func{
		Name:    "fetch",
		Params:  params,
		Results: results,
		Call: api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			c := ctxOf(ctx)
			raw, ok := abi.ReadBytes(mod, abi.I32(stack, 0), abi.I32(stack, 1))
			if c == nil || !ok {
				abi.Return(stack, abi.StatusError)
				return
			}
			var env RequestEnvelope
			if err := json.Unmarshal(raw, &env); err != nil {
				abi.Return(stack, abi.StatusError)
				return
			}

			reply := c.fetch(ctx, env)
			encoded, err := json.Marshal(reply)
			if err != nil {
				abi.Return(stack, abi.StatusError)
				return
			}
			abi.Return(stack, abi.WriteResult(mod, abi.I32(stack, 2), abi.I32(stack, 3), encoded))
		}),
	})
}

// fetch performs the outbound call and folds any failure into the reply
// envelope so the guest always sees the stable error code.
func (c *Ctx) fetch(ctx context.Context, env RequestEnvelope) ResponseEnvelope {
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(env.Method), env.URI,
		bytes.NewReader(env.Body))
	if err != nil {
		return errorEnvelope(errors.Transport(errors.CodeURIInvalid, err))
	}
	for k, v := range env.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Proxy.Send(ctx, req)
	if err != nil {
		return errorEnvelope(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorEnvelope(errors.TransportInternal("read response body", err))
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	return ResponseEnvelope{
		Status:  resp.StatusCode,
		Headers: headers,
		Body:    body,
	}
}

func errorEnvelope(err error) ResponseEnvelope {
	var te *errors.TransportError
	if !stderrors.As(err, &te) {
		te = errors.TransportInternal(err.Error(), err)
	}
	Logger().Debug("outbound fetch failed", zap.Error(err))
	return ResponseEnvelope{
		Error: &ErrorEnvelope{Code: te.Code.String(), Message: te.Message},
	}
}
