package middleware

import (
	"net/http"

	"ordergraph/internal/observability"
)

// FetchMetricsMiddleware makes metrics available to the resolver through the
// request context and tracks in-flight requests.
func FetchMetricsMiddleware(metrics *observability.FetchMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := observability.ContextWithFetchMetrics(r.Context(), metrics)
			metrics.IncrementActiveRequests(ctx)
			defer metrics.DecrementActiveRequests(ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
