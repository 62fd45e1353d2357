package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func installManualReader(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(previous)
		_ = provider.Shutdown(context.Background())
	})
	return reader
}

func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, point := range data.DataPoints {
					sums[m.Name] += point.Value
				}
			case metricdata.Histogram[int64]:
				for _, point := range data.DataPoints {
					sums[m.Name] += point.Sum
				}
			}
		}
	}
	return sums
}

func TestFetchMetricsRecordsInstruments(t *testing.T) {
	reader := installManualReader(t)
	metrics, err := InitFetchMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordFetch(ctx, "join_fetch_batched", 12*time.Millisecond, 3, 5, "")
	metrics.RecordFetch(ctx, "flat", time.Millisecond, 1, 0, "store")
	metrics.RecordBatchLoad(ctx, "order_items", 2500, 3)
	metrics.RecordBatchLoad(ctx, "items", 0, 0)
	metrics.RecordFlatDuplicates(ctx, 4)
	metrics.RecordIdentityMapHit(ctx, "member")
	metrics.RecordIdentityMapHit(ctx, "item")
	metrics.IncrementActiveRequests(ctx)
	metrics.DecrementActiveRequests(ctx)

	sums := collectSums(t, reader)
	assert.Equal(t, int64(2), sums["ordergraph.fetch.requests"])
	assert.Equal(t, int64(1), sums["ordergraph.fetch.errors"])
	assert.Equal(t, int64(4), sums["ordergraph.fetch.round_trips"])
	assert.Equal(t, int64(5), sums["ordergraph.fetch.results"])
	assert.Equal(t, int64(2500), sums["ordergraph.batch.parent_count"])
	assert.Equal(t, int64(2497), sums["ordergraph.batch.queries_saved"])
	assert.Equal(t, int64(4), sums["ordergraph.flat.duplicate_rows"])
	assert.Equal(t, int64(2), sums["ordergraph.identity_map.hits"])
	assert.Equal(t, int64(0), sums["ordergraph.requests.active"])
}

func TestFetchMetricsNilReceiverIsNoop(t *testing.T) {
	var metrics *FetchMetrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		metrics.RecordFetch(ctx, "flat", time.Millisecond, 1, 1, "")
		metrics.RecordBatchLoad(ctx, "items", 10, 1)
		metrics.RecordFlatDuplicates(ctx, 1)
		metrics.RecordIdentityMapHit(ctx, "member")
		metrics.IncrementActiveRequests(ctx)
		metrics.DecrementActiveRequests(ctx)
	})
}

func TestFetchMetricsContext(t *testing.T) {
	assert.Nil(t, FetchMetricsFromContext(context.Background()))

	metrics := &FetchMetrics{}
	ctx := ContextWithFetchMetrics(context.Background(), metrics)
	assert.Same(t, metrics, FetchMetricsFromContext(ctx))
}
