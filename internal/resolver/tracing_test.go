package resolver

import (
	"context"
	"errors"
	"testing"

	"ordergraph/internal/planner"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestListOrderFlat_EmitsTracingSpan(t *testing.T) {
	recorder, cleanup := installResolverSpanRecorder(t)
	defer cleanup()

	executor := &fakeExecutor{responses: [][][]any{{
		{int64(1), "userA", fixtureDate, "ORDERED", "Seoul", "street 1", "1111", int64(1), "JPA1 BOOK", int64(10000), int64(1)},
		{int64(1), "userA", fixtureDate, "ORDERED", "Seoul", "street 1", "1111", int64(2), "JPA2 BOOK", int64(20000), int64(2)},
	}}}
	r := NewResolver(executor, Options{})

	summaries, err := r.ListOrderFlat(context.Background(), planner.OrderSearch{})
	if err != nil {
		t.Fatalf("ListOrderFlat returned error: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}

	span := findEndedSpanByName(recorder.Ended(), "ordergraph.ListOrderFlat")
	if span == nil {
		t.Fatalf("expected ordergraph.ListOrderFlat span")
	}
	if got := readSpanString(span.Attributes(), "fetch.strategy"); got != "flat" {
		t.Fatalf("fetch.strategy = %q, want flat", got)
	}
	if got := readSpanString(span.Attributes(), "fetch.outcome"); got != "success" {
		t.Fatalf("fetch.outcome = %q, want success", got)
	}
	if got := readSpanInt(span.Attributes(), "fetch.round_trips"); got != 1 {
		t.Fatalf("fetch.round_trips = %d, want 1", got)
	}
	if got := readSpanInt(span.Attributes(), "fetch.results"); got != 1 {
		t.Fatalf("fetch.results = %d, want 1", got)
	}
}

func TestListOrderSummariesPaged_RoundTripsOnSpan(t *testing.T) {
	recorder, cleanup := installResolverSpanRecorder(t)
	defer cleanup()

	executor := &fakeExecutor{responses: [][][]any{
		{concatValues(orderValues(1, 1, 1), memberValues(1, "userA"), deliveryValues(1))},
		{orderItemValues(1, 1, 5, 10000, 1)},
		{bookValues(5, "JPA1 BOOK", 10000)},
	}}
	r := NewResolver(executor, Options{})

	if _, err := r.ListOrderSummariesPaged(context.Background(), planner.OrderSearch{}, planner.Page{Limit: 10}); err != nil {
		t.Fatalf("ListOrderSummariesPaged returned error: %v", err)
	}

	span := findEndedSpanByName(recorder.Ended(), "ordergraph.ListOrderSummariesPaged")
	if span == nil {
		t.Fatalf("expected ordergraph.ListOrderSummariesPaged span")
	}
	if got := readSpanString(span.Attributes(), "fetch.strategy"); got != "join_fetch_batched" {
		t.Fatalf("fetch.strategy = %q, want join_fetch_batched", got)
	}
	if got := readSpanInt(span.Attributes(), "fetch.round_trips"); got != 3 {
		t.Fatalf("fetch.round_trips = %d, want 3", got)
	}
}

func TestStoreError_EmitsErrorStatus(t *testing.T) {
	recorder, cleanup := installResolverSpanRecorder(t)
	defer cleanup()

	executor := &fakeExecutor{errAt: map[int]error{0: errors.New("connection refused")}}
	r := NewResolver(executor, Options{})

	if _, err := r.ListSimpleOrderProjections(context.Background(), planner.OrderSearch{}); err == nil {
		t.Fatalf("expected error")
	}

	span := findEndedSpanByName(recorder.Ended(), "ordergraph.ListSimpleOrderProjections")
	if span == nil {
		t.Fatalf("expected ordergraph.ListSimpleOrderProjections span")
	}
	if got := readSpanString(span.Attributes(), "fetch.outcome"); got != "error" {
		t.Fatalf("fetch.outcome = %q, want error", got)
	}
	if span.Status().Code != codes.Error {
		t.Fatalf("span status = %v, want error", span.Status().Code)
	}
	if len(span.Events()) == 0 {
		t.Fatalf("expected recorded error event")
	}
}

func TestInvalidPage_EmitsNoSpan(t *testing.T) {
	recorder, cleanup := installResolverSpanRecorder(t)
	defer cleanup()

	r := NewResolver(&fakeExecutor{}, Options{})
	if _, err := r.ListOrderProjections(context.Background(), planner.OrderSearch{}, planner.Page{Offset: -1, Limit: 1}); err == nil {
		t.Fatalf("expected error")
	}
	if span := findEndedSpanByName(recorder.Ended(), "ordergraph.ListOrderProjections"); span != nil {
		t.Fatalf("expected no span for a rejected page")
	}
}

func installResolverSpanRecorder(t *testing.T) (*tracetest.SpanRecorder, func()) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	tp.RegisterSpanProcessor(recorder)

	oldProvider := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	return recorder, func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(oldProvider)
	}
}

func findEndedSpanByName(spans []sdktrace.ReadOnlySpan, name string) sdktrace.ReadOnlySpan {
	for _, span := range spans {
		if span.Name() == name {
			return span
		}
	}
	return nil
}

func readSpanString(attrs []attribute.KeyValue, key string) string {
	for _, attr := range attrs {
		if string(attr.Key) == key {
			return attr.Value.AsString()
		}
	}
	return ""
}

func readSpanInt(attrs []attribute.KeyValue, key string) int64 {
	for _, attr := range attrs {
		if string(attr.Key) == key {
			return attr.Value.AsInt64()
		}
	}
	return -1
}
