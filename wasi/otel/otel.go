// Package otel implements the tracing capability: it owns the tracer
// provider for the process and exposes span annotation to guests.
package otel

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	"github.com/augentic/yetti/env"
	"github.com/augentic/yetti/errors"
)

// Name is the capability name.
const Name = "wasi:otel/tracing"

// Options configures the trace exporter.
type Options struct {
	// Endpoint is the OTLP gRPC collector address. Empty selects the
	// stdout exporter, which is only useful for local runs.
	Endpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	ServiceName string `env:"OTEL_SERVICE_NAME" default:"yetti"`
}

// Provider wraps the SDK tracer provider with its shutdown hook.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// Connect builds the provider from the environment.
func Connect(ctx context.Context) (*Provider, error) {
	var opts Options
	if err := env.Bind(&opts); err != nil {
		return nil, err
	}
	return ConnectWith(ctx, opts)
}

// ConnectWith builds the provider using opts and installs it as the
// global tracer provider.
func ConnectWith(ctx context.Context, opts Options) (*Provider, error) {
	var exporter sdktrace.SpanExporter
	var err error
	if opts.Endpoint != "" {
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(opts.Endpoint),
			otlptracegrpc.WithInsecure())
	} else {
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
	}
	if err != nil {
		return nil, errors.BackendUnavailable(Name, err)
	}

	res, err := sdkresource.Merge(sdkresource.Default(),
		sdkresource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(opts.ServiceName)))
	if err != nil {
		return nil, errors.BackendUnavailable(Name, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	return &Provider{tp: tp}, nil
}

// Close flushes and shuts down the provider.
func (p *Provider) Close() error {
	return p.tp.Shutdown(context.Background())
}
