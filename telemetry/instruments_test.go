package telemetry

import (
	stdctx "context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestInstruments(t *testing.T) (*MetricInstruments, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return NewMetricInstruments(mp.Meter("test")), reader
}

func TestRecordCounterReusesInstrumentAcrossCalls(t *testing.T) {
	instruments, reader := newTestInstruments(t)
	ctx := stdctx.Background()

	require.NoError(t, instruments.RecordCounter(ctx, "requests.total", 1))
	require.NoError(t, instruments.RecordCounter(ctx, "requests.total", 2))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1, "the second call must reuse the cached counter, not create a second instrument")

	data := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	assert.Equal(t, int64(3), data.DataPoints[0].Value)
}

func TestRecordHistogramAccumulatesObservations(t *testing.T) {
	instruments, reader := newTestInstruments(t)
	ctx := stdctx.Background()

	require.NoError(t, instruments.RecordHistogram(ctx, "plan.duration", 10))
	require.NoError(t, instruments.RecordHistogram(ctx, "plan.duration", 20))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	data := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Histogram[float64])
	assert.Equal(t, uint64(2), data.DataPoints[0].Count)
	assert.Equal(t, 30.0, data.DataPoints[0].Sum)
}

func TestRecordUpDownCounterTracksNetValue(t *testing.T) {
	instruments, reader := newTestInstruments(t)
	ctx := stdctx.Background()

	require.NoError(t, instruments.RecordUpDownCounter(ctx, "queue.size", 5))
	require.NoError(t, instruments.RecordUpDownCounter(ctx, "queue.size", -2))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	data := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	assert.Equal(t, int64(3), data.DataPoints[0].Value)
}
