package telemetry

import (
	stdctx "context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// newTestProvider builds a Provider wired to in-memory SDK providers
// instead of a real OTLP/HTTP collector, so these tests never touch the
// network.
func newTestProvider(t *testing.T) (*Provider, *tracetest.SpanRecorder, *sdkmetric.ManualReader) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return newProvider(tp, mp), recorder, reader
}

func TestNewProviderRejectsEmptyServiceName(t *testing.T) {
	_, err := NewProvider("", "localhost:4318")
	require.Error(t, err)
}

func TestStartSpanRecordsASpan(t *testing.T) {
	p, recorder, _ := newTestProvider(t)

	_, span := p.StartSpan(stdctx.Background(), "world.tick")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "world.tick", spans[0].Name())
}

func TestStartSpanAfterShutdownReturnsNoOp(t *testing.T) {
	p, recorder, _ := newTestProvider(t)
	require.NoError(t, p.Shutdown(stdctx.Background()))

	_, span := p.StartSpan(stdctx.Background(), "late.span")
	span.End()
	span.SetAttribute("k", "v")
	span.RecordError(nil)

	assert.Empty(t, recorder.Ended(), "a span started after shutdown must not be recorded")
}

func TestRecordMetricRoutesDurationNamesToHistogram(t *testing.T) {
	p, _, reader := newTestProvider(t)

	p.RecordMetric(MetricTickDuration, 12.5, map[string]string{"stage": "perception"})

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(stdctx.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)

	data, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Histogram[float64])
	require.True(t, ok, "a duration metric must be recorded as a histogram")
	require.Len(t, data.DataPoints, 1)
	assert.Equal(t, uint64(1), data.DataPoints[0].Count)
}

func TestRecordMetricRoutesTotalNamesToCounter(t *testing.T) {
	p, _, reader := newTestProvider(t)

	p.RecordMetric(MetricRateLimiterRejected, 1, map[string]string{"dimension": "user"})

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(stdctx.Background(), &rm))
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)

	data, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	require.True(t, ok, "a total metric must be recorded as a counter")
	require.Len(t, data.DataPoints, 1)
	assert.Equal(t, int64(1), data.DataPoints[0].Value)
}

func TestRecordMetricRoutesQueueNamesToUpDownCounter(t *testing.T) {
	p, _, reader := newTestProvider(t)

	p.RecordMetric(MetricQueueDepth, 7, nil)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(stdctx.Background(), &rm))
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)

	data, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(7), data.DataPoints[0].Value)
}

func TestRecordMetricAfterShutdownIsSilentNoOp(t *testing.T) {
	p, _, reader := newTestProvider(t)
	require.NoError(t, p.Shutdown(stdctx.Background()))

	p.RecordMetric(MetricTickDuration, 1, nil)

	var rm metricdata.ResourceMetrics
	err := reader.Collect(stdctx.Background(), &rm)
	if err == nil {
		assert.Empty(t, rm.ScopeMetrics)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	p, _, _ := newTestProvider(t)

	require.NoError(t, p.Shutdown(stdctx.Background()))
	require.NoError(t, p.Shutdown(stdctx.Background()), "a second shutdown must not error")
}
