// Package telemetry implements core.Telemetry on top of OpenTelemetry,
// exporting traces and metrics over OTLP/HTTP. It plays the role the
// teacher's telemetry module plays for gomind, but scoped down to a
// single injectable Provider rather than a global, package-level API:
// every other component in this module takes its core.Logger /
// core.Telemetry / core.Clock through constructor options, and this
// package follows the same convention instead of introducing a global
// singleton.
package telemetry

import (
	stdctx "context"
	"fmt"
	"sync"
	"time"

	"github.com/astraweave-go/astraweave/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "astraweave-runtime"

// Provider implements core.Telemetry with OpenTelemetry, exporting both
// traces and metrics over OTLP/HTTP from a single pipeline.
type Provider struct {
	tracer         trace.Tracer
	meter          metric.Meter
	traceProvider  *sdktrace.TracerProvider
	metricProvider *sdkmetric.MeterProvider
	instruments    *MetricInstruments

	shutdownOnce sync.Once
	mu           sync.RWMutex
	shutdown     bool
}

// NewProvider creates a Provider using OTLP/HTTP exporters for serviceName.
// endpoint is an OTLP/HTTP collector address (host:port, typically port
// 4318); an empty endpoint defaults to "localhost:4318", and a gRPC-style
// "localhost:4317" is normalized to the HTTP port for convenience.
func NewProvider(serviceName, endpoint string) (*Provider, error) {
	if serviceName == "" {
		return nil, fmt.Errorf("telemetry: service name cannot be empty")
	}

	if endpoint == "" {
		endpoint = "localhost:4318"
	}
	if endpoint == "localhost:4317" {
		endpoint = "localhost:4318"
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String("1.0.0"),
	)

	ctx := stdctx.Background()

	traceExporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: failed to create trace exporter for %s: %w", endpoint, err)
	}

	metricExporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(endpoint),
		otlpmetrichttp.WithInsecure(),
	)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		return nil, fmt.Errorf("telemetry: failed to create metric exporter for %s: %w", endpoint, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(30*time.Second)),
		),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return newProvider(tp, mp), nil
}

// newProvider builds a Provider from already-constructed trace/metric
// providers. Split out from NewProvider so tests can supply in-memory
// SDK providers (a sdktrace.TracerProvider wired to a span recorder, an
// sdkmetric.MeterProvider wired to a manual reader) without dialing a
// real OTLP collector.
func newProvider(tp *sdktrace.TracerProvider, mp *sdkmetric.MeterProvider) *Provider {
	meter := mp.Meter(instrumentationName)
	return &Provider{
		tracer:         tp.Tracer(instrumentationName),
		meter:          meter,
		traceProvider:  tp,
		metricProvider: mp,
		instruments:    NewMetricInstruments(meter),
	}
}

// StartSpan implements core.Telemetry.
func (p *Provider) StartSpan(ctx stdctx.Context, name string) (stdctx.Context, core.Span) {
	p.mu.RLock()
	down := p.shutdown
	p.mu.RUnlock()
	if down || p.tracer == nil {
		return ctx, &noOpSpan{}
	}

	ctx, span := p.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

// RecordMetric implements core.Telemetry. It routes name to the
// appropriate instrument kind using the same substring heuristic the
// teacher's OTelProvider uses, since this module has no explicit
// metric-type registry: names that start or end with "duration"/"latency"/"time"
// become histograms, "count"/"total"/"errors"/"success" become
// counters, and "queue"/"size"/"current" become up-down counters.
func (p *Provider) RecordMetric(name string, value float64, labels map[string]string) {
	p.mu.RLock()
	down := p.shutdown
	p.mu.RUnlock()
	if down || p.instruments == nil {
		return
	}

	ctx := stdctx.Background()
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}

	switch {
	case containsAny(name, "duration", "latency", "time"):
		_ = p.instruments.RecordHistogram(ctx, name, value, metric.WithAttributes(attrs...))
	case containsAny(name, "count", "total", "errors", "success"):
		_ = p.instruments.RecordCounter(ctx, name, int64(value), metric.WithAttributes(attrs...))
	case containsAny(name, "queue", "size", "current"):
		_ = p.instruments.RecordUpDownCounter(ctx, name, int64(value), metric.WithAttributes(attrs...))
	default:
		_ = p.instruments.RecordHistogram(ctx, name, value, metric.WithAttributes(attrs...))
	}
}

// containsAny reports whether name has any of substrings as a prefix or
// suffix, covering both "request_count" and "count_total" style naming.
func containsAny(name string, substrings ...string) bool {
	for _, substr := range substrings {
		if len(name) >= len(substr) &&
			(name[len(name)-len(substr):] == substr || name[:len(substr)] == substr) {
			return true
		}
	}
	return false
}

// noOpSpan implements core.Span with no-op operations. Returned once the
// owning Provider has been shut down, so late callers don't panic on a
// closed tracer.
type noOpSpan struct{}

func (s *noOpSpan) End()                                        {}
func (s *noOpSpan) SetAttribute(key string, value interface{}) {}
func (s *noOpSpan) RecordError(err error)                       {}

// otelSpan wraps an OpenTelemetry span to implement core.Span.
type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() {
	s.span.End()
}

func (s *otelSpan) SetAttribute(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

func (s *otelSpan) RecordError(err error) {
	s.span.RecordError(err)
}

// Shutdown flushes and tears down the trace and metric providers. It is
// idempotent and safe to call more than once.
func (p *Provider) Shutdown(ctx stdctx.Context) error {
	var shutdownErr error
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.shutdown = true
		p.mu.Unlock()

		var errs []error
		if p.metricProvider != nil {
			if err := p.metricProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("metric provider: %w", err))
			}
		}
		if p.traceProvider != nil {
			if err := p.traceProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("trace provider: %w", err))
			}
		}
		if len(errs) > 0 {
			shutdownErr = fmt.Errorf("telemetry: shutdown errors: %v", errs)
		}
	})
	return shutdownErr
}
