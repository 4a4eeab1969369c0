package host

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/augentic/yetti/link"
	"github.com/augentic/yetti/wasi/abi"
)

const tracerName = "github.com/augentic/yetti/host"

// Dispatch runs one event through the guest: build a fresh store context,
// instantiate the pre-linked component, call the entry point, tear both
// down. Every event gets its own id, log line, and span.
func Dispatch(ctx context.Context, s *State, entry string, payloads ...[]byte) ([]byte, error) {
	eventID := uuid.NewString()
	start := time.Now()

	ctx, span := otel.Tracer(tracerName).Start(ctx, entry)
	span.SetAttributes(attribute.String("event.id", eventID))
	defer span.End()

	sc := s.Store()
	defer sc.Close()
	ctx = link.WithStore(ctx, sc)

	mod, err := s.Pre().NewInstance(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer mod.Close(ctx)

	reply, err := abi.CallGuest(ctx, mod, entry, payloads...)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		Logger().Debug("event failed",
			zap.String("event_id", eventID),
			zap.String("entry", entry),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, err
	}

	Logger().Debug("event dispatched",
		zap.String("event_id", eventID),
		zap.String("entry", entry),
		zap.Int("reply_bytes", len(reply)),
		zap.Duration("elapsed", time.Since(start)))
	return reply, nil
}
