package messaging

import (
	"context"
	"encoding/json"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/augentic/yetti/capabilities"
	"github.com/augentic/yetti/host"
	"github.com/augentic/yetti/link"
	"github.com/augentic/yetti/wasi/abi"
)

// Name is the capability name.
const Name = "wasi:messaging/producer"

// EntryPoint is the guest export invoked for each broker arrival.
const EntryPoint = "handle-message"

// Ctx is the per-request view the messaging host needs from the store
// context.
type Ctx struct {
	Broker Broker
}

// CtxKey is the typed store-context slot for this capability.
var CtxKey = host.NewKey[*Ctx](Name)

// Messaging is the messaging capability host. It links the producer
// surface and, as a Server, dispatches every broker arrival into the
// guest's message entry point.
type Messaging struct {
	broker Broker
}

// NewHost creates the messaging host over a connected broker.
func NewHost(broker Broker) *Messaging {
	return &Messaging{broker: broker}
}

// Name returns the capability name.
func (h *Messaging) Name() string { return Name }

// Data returns the slot accessor handed to Link.
func (h *Messaging) Data() host.DataFunc { return host.Data(CtxKey) }

// Fill returns the store-context filler for this host.
func (h *Messaging) Fill() host.Filler {
	return func(sc *host.StoreContext) {
		host.Put(sc, CtxKey, &Ctx{Broker: h.broker})
	}
}

// Link wires publish into the shared linker. Headers cross the boundary
// as a JSON object.
func (h *Messaging) Link(l *link.Linker, data host.DataFunc) error {
	ctxOf := func(ctx context.Context) *Ctx {
		sc, _ := link.StoreFrom(ctx).(*host.StoreContext)
		if sc == nil {
			return nil
		}
		c, _ := data(sc).(*Ctx)
		return c
	}

	// publish(topic_ptr, topic_len, payload_ptr, payload_len,
	//         headers_ptr, headers_len) -> status
	params, results := abi.Sig(6)
	return l.DefineFunc(Name, link.Func{
		Name:    "publish",
		Params:  params,
		Results: results,
		Call: api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			c := ctxOf(ctx)
			topic, okT := abi.ReadString(mod, abi.I32(stack, 0), abi.I32(stack, 1))
			payload, okP := abi.ReadBytes(mod, abi.I32(stack, 2), abi.I32(stack, 3))
			if c == nil || !okT || !okP {
				abi.Return(stack, abi.StatusError)
				return
			}
			msg := capabilities.NewMessage(payload)
			if headerLen := abi.I32(stack, 5); headerLen > 0 {
				raw, ok := abi.ReadBytes(mod, abi.I32(stack, 4), headerLen)
				if !ok || json.Unmarshal(raw, &msg.Headers) != nil {
					abi.Return(stack, abi.StatusError)
					return
				}
			}
			if err := c.Broker.Publish(ctx, topic, msg); err != nil {
				Logger().Debug("publish failed", zap.String("topic", topic), zap.Error(err))
				abi.Return(stack, abi.StatusError)
				return
			}
			abi.Return(stack, abi.StatusOK)
		}),
	})
}

// Run subscribes to the broker and dispatches each arrival as one guest
// event until ctx is cancelled.
func (h *Messaging) Run(ctx context.Context, s *host.State) error {
	cancel, err := h.broker.Subscribe(ctx, func(ctx context.Context, topic string, msg capabilities.Message) {
		envelope, err := json.Marshal(msg)
		if err != nil {
			Logger().Warn("encode message envelope", zap.String("topic", topic), zap.Error(err))
			return
		}
		reply, err := host.Dispatch(ctx, s, EntryPoint, []byte(topic), envelope)
		if err != nil {
			Logger().Warn("message dispatch failed",
				zap.String("topic", topic), zap.Error(err))
			return
		}
		if msg := ReplyError(reply); msg != "" {
			Logger().Warn("message rejected",
				zap.String("topic", topic), zap.String("error", msg))
		}
	})
	if err != nil {
		return err
	}
	defer cancel()

	<-ctx.Done()
	return ctx.Err()
}

// ReplyError extracts the error text from a guest message reply. Guests
// answer a failed topic dispatch with {"error": "..."} so misses and
// decode failures keep their text across the boundary.
func ReplyError(reply []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if len(reply) == 0 || json.Unmarshal(reply, &body) != nil {
		return ""
	}
	return body.Error
}
