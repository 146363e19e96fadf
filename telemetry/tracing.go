// Package telemetry wires OpenTelemetry tracing for probes.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/amartya2002/uptime-probe/config"
)

// Shutdown flushes and stops the tracer provider.
type Shutdown func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// SetupTracing installs a global tracer provider exporting over OTLP/HTTP. Without an
// endpoint the global no-op provider is left in place.
func SetupTracing(ctx context.Context, cfg config.TracingConfig) (Shutdown, error) {
	if cfg.OTLPEndpoint == "" {
		return noopShutdown, nil
	}

	exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
	if err != nil {
		return noopShutdown, fmt.Errorf("telemetry: otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
