package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"ordergraph/internal/logging"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// GraphQLTracingMiddleware wraps GraphQL execution in a graphql.execute span
// tagged with the fetch strategy of each order read, and annotates the
// request logger with the operation being run.
func GraphQLTracingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := extractGraphQLRequest(r)
			if strings.TrimSpace(req.Query) == "" {
				next.ServeHTTP(w, r)
				return
			}

			tracer := otel.Tracer("ordergraph/graphql")
			ctx, span := tracer.Start(r.Context(), "graphql.execute")
			defer span.End()

			logger := logging.FromContext(ctx)
			if spanCtx := span.SpanContext(); spanCtx.IsValid() {
				logger = logger.WithFields(
					slog.String("trace_id", spanCtx.TraceID().String()),
					slog.String("span_id", spanCtx.SpanID().String()),
				)
			}

			meta, err := extractQueryMetadata(req)
			if err != nil {
				span.SetAttributes(attribute.Bool("graphql.document.invalid", true))
			}
			if meta != nil {
				if span.IsRecording() {
					span.SetAttributes(graphQLSpanAttributes(meta)...)
				}
				logger = logger.WithFields(
					slog.String("operation_type", meta.operationType),
					slog.String("operation_name", meta.operationName),
				)
				if len(meta.strategies) > 0 {
					logger = logger.WithFields(slog.String("strategy", strings.Join(meta.strategies, ",")))
				}
			}
			ctx = logging.WithLogger(ctx, logger)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func graphQLSpanAttributes(meta *queryMetadata) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("graphql.operation.type", meta.operationType),
	}
	if meta.operationName != "" {
		attrs = append(attrs, attribute.String("graphql.operation.name", meta.operationName))
	}
	if len(meta.rootFields) > 0 {
		attrs = append(attrs, attribute.StringSlice("graphql.operation.root_fields", meta.rootFields))
	}
	if len(meta.strategies) > 0 {
		attrs = append(attrs,
			attribute.StringSlice("fetch.strategy", meta.strategies),
			attribute.Bool("fetch.paged", meta.paged),
		)
	}
	return attrs
}
