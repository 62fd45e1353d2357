package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// FetchMetrics holds the instruments recorded by the fetch strategy resolver
// and the HTTP layer in front of it.
type FetchMetrics struct {
	fetchDuration     metric.Float64Histogram
	fetchRequests     metric.Int64Counter
	fetchErrors       metric.Int64Counter
	activeRequests    metric.Int64UpDownCounter
	roundTrips        metric.Int64Histogram
	resultsCount      metric.Int64Histogram
	batchParentCount  metric.Int64Histogram
	batchQueriesSaved metric.Int64Counter
	flatDuplicateRows metric.Int64Counter
	identityMapHits   metric.Int64Counter
}

// InitFetchMetrics creates the resolver instruments on the global meter provider.
func InitFetchMetrics() (*FetchMetrics, error) {
	meter := otel.Meter("ordergraph")

	fetchDuration, err := meter.Float64Histogram(
		"ordergraph.fetch.duration",
		metric.WithDescription("Duration of aggregate fetches in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch duration histogram: %w", err)
	}

	fetchRequests, err := meter.Int64Counter(
		"ordergraph.fetch.requests",
		metric.WithDescription("Total number of aggregate fetches"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch request counter: %w", err)
	}

	fetchErrors, err := meter.Int64Counter(
		"ordergraph.fetch.errors",
		metric.WithDescription("Total number of failed aggregate fetches"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch error counter: %w", err)
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"ordergraph.requests.active",
		metric.WithDescription("Number of read requests in flight"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active requests counter: %w", err)
	}

	roundTrips, err := meter.Int64Histogram(
		"ordergraph.fetch.round_trips",
		metric.WithDescription("Store round trips issued by one aggregate fetch"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create round trips histogram: %w", err)
	}

	resultsCount, err := meter.Int64Histogram(
		"ordergraph.fetch.results",
		metric.WithDescription("Number of roots returned by one aggregate fetch"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create results histogram: %w", err)
	}

	batchParentCount, err := meter.Int64Histogram(
		"ordergraph.batch.parent_count",
		metric.WithDescription("Number of parent keys resolved by one batch load"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch parent count histogram: %w", err)
	}

	batchQueriesSaved, err := meter.Int64Counter(
		"ordergraph.batch.queries_saved",
		metric.WithDescription("Number of per-parent queries avoided by batching"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch queries saved counter: %w", err)
	}

	flatDuplicateRows, err := meter.Int64Counter(
		"ordergraph.flat.duplicate_rows",
		metric.WithDescription("Rows folded into an already seen root by flat deduplication"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create flat duplicate rows counter: %w", err)
	}

	identityMapHits, err := meter.Int64Counter(
		"ordergraph.identity_map.hits",
		metric.WithDescription("Relation loads served from the request identity map"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity map hits counter: %w", err)
	}

	return &FetchMetrics{
		fetchDuration:     fetchDuration,
		fetchRequests:     fetchRequests,
		fetchErrors:       fetchErrors,
		activeRequests:    activeRequests,
		roundTrips:        roundTrips,
		resultsCount:      resultsCount,
		batchParentCount:  batchParentCount,
		batchQueriesSaved: batchQueriesSaved,
		flatDuplicateRows: flatDuplicateRows,
		identityMapHits:   identityMapHits,
	}, nil
}

// RecordFetch records one resolver invocation with its duration, round trips and outcome.
func (m *FetchMetrics) RecordFetch(ctx context.Context, strategy string, duration time.Duration, roundTrips, results int64, errKind string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("strategy", strategy),
		attribute.Bool("has_errors", errKind != ""),
	}

	m.fetchDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	m.fetchRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.roundTrips.Record(ctx, roundTrips, metric.WithAttributes(attribute.String("strategy", strategy)))

	if errKind != "" {
		m.fetchErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("strategy", strategy),
			attribute.String("error_kind", errKind),
		))
		return
	}
	m.resultsCount.Record(ctx, results, metric.WithAttributes(attribute.String("strategy", strategy)))
}

// RecordBatchLoad records a batch load over parentCount keys issued as chunkCount queries.
func (m *FetchMetrics) RecordBatchLoad(ctx context.Context, relation string, parentCount, chunkCount int) {
	if m == nil || parentCount <= 0 {
		return
	}
	attrs := metric.WithAttributes(attribute.String("relation", relation))
	m.batchParentCount.Record(ctx, int64(parentCount), attrs)
	if saved := int64(parentCount - chunkCount); saved > 0 {
		m.batchQueriesSaved.Add(ctx, saved, attrs)
	}
}

// RecordFlatDuplicates records rows that repeated an already seen root.
func (m *FetchMetrics) RecordFlatDuplicates(ctx context.Context, count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.flatDuplicateRows.Add(ctx, count)
}

// RecordIdentityMapHit records a relation load skipped because the entity was already loaded.
func (m *FetchMetrics) RecordIdentityMapHit(ctx context.Context, entity string) {
	if m == nil {
		return
	}
	m.identityMapHits.Add(ctx, 1, metric.WithAttributes(attribute.String("entity", entity)))
}

// IncrementActiveRequests increments the active requests counter
func (m *FetchMetrics) IncrementActiveRequests(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeRequests.Add(ctx, 1)
}

// DecrementActiveRequests decrements the active requests counter
func (m *FetchMetrics) DecrementActiveRequests(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeRequests.Add(ctx, -1)
}

// InitMetrics initializes all custom metrics and returns the FetchMetrics instance
func InitMetrics(logger *slog.Logger) (*FetchMetrics, error) {
	metrics, err := InitFetchMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize fetch metrics: %w", err)
	}

	logger.Info("custom fetch metrics initialized")
	return metrics, nil
}

type fetchMetricsContextKey struct{}

// ContextWithFetchMetrics stores fetch metrics in the provided context.
func ContextWithFetchMetrics(ctx context.Context, metrics *FetchMetrics) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, fetchMetricsContextKey{}, metrics)
}

// FetchMetricsFromContext retrieves fetch metrics from the context.
func FetchMetricsFromContext(ctx context.Context) *FetchMetrics {
	if ctx == nil {
		return nil
	}
	metrics, _ := ctx.Value(fetchMetricsContextKey{}).(*FetchMetrics)
	return metrics
}
