package tracing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Options configures the process tracer provider.
type Options struct {
	ServiceName string
	// Output receives finished spans as JSON, one object per span. A nil
	// Output keeps sampling for trace IDs but exports nothing. Output is
	// closed on shutdown when it implements io.Closer.
	Output io.Writer
}

var (
	providerMu sync.Mutex
	provider   *sdktrace.TracerProvider
	output     io.Writer
)

// InitOpenTelemetry installs the global tracer provider. Calls after the
// first successful one are no-ops until ShutdownOpenTelemetry.
func InitOpenTelemetry(opts Options) error {
	providerMu.Lock()
	defer providerMu.Unlock()
	if provider != nil {
		return nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(semconv.ServiceName(opts.ServiceName)),
	)
	if err != nil {
		return fmt.Errorf("failed to build trace resource: %w", err)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithResource(res),
	}
	if opts.Output != nil {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(opts.Output))
		if err != nil {
			return fmt.Errorf("failed to create span exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}

	provider = sdktrace.NewTracerProvider(tpOpts...)
	output = opts.Output
	otel.SetTracerProvider(provider)
	return nil
}

// ShutdownOpenTelemetry flushes pending spans and releases the exporter.
func ShutdownOpenTelemetry(ctx context.Context) error {
	providerMu.Lock()
	tp, out := provider, output
	provider, output = nil, nil
	providerMu.Unlock()
	if tp == nil {
		return nil
	}

	err := tp.Shutdown(ctx)
	if c, ok := out.(io.Closer); ok {
		err = errors.Join(err, c.Close())
	}
	return err
}

// StartSpan starts a span and records its trace ID in the context when none is set.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))

	if GetTraceID(ctx) == "" {
		sc := span.SpanContext()
		if sc.IsValid() {
			ctx = WithTraceID(ctx, sc.TraceID().String())
		}
	}

	return ctx, span
}
