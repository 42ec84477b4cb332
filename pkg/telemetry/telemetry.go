// Package telemetry installs the OpenTelemetry tracer provider used by
// secopsctl.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/dandye/mcp-security/pkg/version"
)

// ServiceName identifies secopsctl in exported traces.
const ServiceName = "secopsctl"

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(ctx context.Context) error

// Options configures [Setup].
type Options struct {
	// Endpoint is the OTLP/gRPC collector address (host:port).
	// Tracing export is disabled when empty.
	Endpoint string
	// Insecure disables TLS to the collector.
	Insecure bool
}

// Setup installs a batching OTLP/gRPC tracer provider as the global provider.
// When no endpoint is configured it does nothing and returns a no-op
// [ShutdownFunc].
func Setup(ctx context.Context, opts Options) (ShutdownFunc, error) {
	if opts.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	clientOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	tp := NewProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)

	slog.DebugContext(ctx, "tracing enabled",
		slog.String("endpoint", opts.Endpoint),
		slog.Bool("insecure", opts.Insecure),
	)

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("shutdown tracer provider: %w", err)
		}

		return nil
	}, nil
}

// NewProvider creates a tracer provider carrying the secopsctl resource
// attributes.
func NewProvider(opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	res := resource.NewSchemaless(
		attribute.String("service.name", ServiceName),
		attribute.String("service.version", version.GetVersion()),
	)

	return sdktrace.NewTracerProvider(append([]sdktrace.TracerProviderOption{sdktrace.WithResource(res)}, opts...)...)
}
