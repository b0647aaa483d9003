package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "pybundle"

// Tracer resolves through the global provider, so spans started before
// SetupTracing are no-ops and spans started after it are exported.
var Tracer = otel.Tracer(tracerName)

// ShutdownFunc flushes and stops the exporter.
type ShutdownFunc func(context.Context) error

// SetupTracing installs an OTLP gRPC exporter when endpoint is set. With an
// empty endpoint it leaves the no-op provider in place.
func SetupTracing(ctx context.Context, endpoint string, runID string) (ShutdownFunc, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	slog.Debug("tracing enabled", "endpoint", endpoint, "run_id", runID)

	return tp.Shutdown, nil
}

// StartStage opens a span for one pipeline stage.
func StartStage(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("pybundle.stage", stage))
	return Tracer.Start(ctx, "pybundle."+stage, trace.WithAttributes(attrs...))
}

// EndStage records err on the span, if any, and ends it.
func EndStage(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
