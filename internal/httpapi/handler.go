// Package httpapi serves the versioned order read endpoints. Each version is
// bound to one fetch strategy so clients can compare them side by side.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"ordergraph/internal/domain"
	"ordergraph/internal/logging"
	"ordergraph/internal/middleware"
	"ordergraph/internal/planner"
	"ordergraph/internal/resolver"
)

// OrderReader is the subset of the resolver the endpoints call.
type OrderReader interface {
	ListOrders(ctx context.Context, search planner.OrderSearch) ([]domain.Order, error)
	ListSimpleOrders(ctx context.Context, search planner.OrderSearch) ([]domain.Order, error)
	Resolve(ctx context.Context, req resolver.Request) ([]resolver.OrderSummary, error)
	ResolveSimple(ctx context.Context, req resolver.Request) ([]resolver.SimpleOrderSummary, error)
	GetOrder(ctx context.Context, id int64) (domain.Order, error)
	Options() resolver.Options
}

// Handler holds the endpoint dependencies.
type Handler struct {
	reader       OrderReader
	defaultLimit int
}

// New creates a Handler. The reader's default page limit applies when a request
// passes offset without limit.
func New(reader OrderReader) *Handler {
	defaultLimit := reader.Options().DefaultPageLimit
	if defaultLimit <= 0 {
		defaultLimit = planner.DefaultPageLimit
	}
	return &Handler{reader: reader, defaultLimit: defaultLimit}
}

// Result wraps a listing with its size.
type Result[T any] struct {
	Count int `json:"count"`
	Data  []T `json:"data"`
}

type summaryRoute struct {
	pattern  string
	strategy resolver.Strategy
	envelope bool
}

var summaryRoutes = []summaryRoute{
	{pattern: "GET /api/v2/orders", strategy: resolver.StrategyEntityGraph, envelope: true},
	{pattern: "GET /api/v3/orders", strategy: resolver.StrategyJoinFetch},
	{pattern: "GET /api/v3.1/orders", strategy: resolver.StrategyJoinFetchBatched},
	{pattern: "GET /api/v4/orders", strategy: resolver.StrategyProjection},
	{pattern: "GET /api/v5/orders", strategy: resolver.StrategyProjectionBatched},
	{pattern: "GET /api/v6/orders", strategy: resolver.StrategyFlat},
}

var simpleRoutes = []summaryRoute{
	{pattern: "GET /api/v2/simple-orders", strategy: resolver.StrategyEntityGraph},
	{pattern: "GET /api/v3/simple-orders", strategy: resolver.StrategyJoinFetch},
	{pattern: "GET /api/v4/simple-orders", strategy: resolver.StrategyProjection},
}

// Register adds every endpoint to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/orders", h.listOrderEntities)
	mux.HandleFunc("GET /api/v1/orders/{id}", h.getOrder)
	mux.HandleFunc("GET /api/v1/simple-orders", h.listSimpleOrderEntities)
	mux.HandleFunc("GET /api/strategies", h.listStrategies)
	mux.HandleFunc("GET /api/orders", h.resolveOrders)

	for _, route := range summaryRoutes {
		mux.Handle(route.pattern, h.summaries(route))
	}
	for _, route := range simpleRoutes {
		mux.Handle(route.pattern, h.simpleSummaries(route))
	}
}

// Routes returns a mux serving only the order endpoints.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func (h *Handler) request(r *http.Request, strategy resolver.Strategy) (resolver.Request, error) {
	query := r.URL.Query()
	search, err := parseSearch(query)
	if err != nil {
		return resolver.Request{}, err
	}
	page, err := parsePage(query, h.defaultLimit)
	if err != nil {
		return resolver.Request{}, err
	}
	return resolver.Request{Strategy: strategy, Search: search, Page: page}, nil
}

// unpaged parses a request for an endpoint that takes no paging parameters.
func (h *Handler) unpaged(r *http.Request, strategy resolver.Strategy) (resolver.Request, error) {
	req, err := h.request(r, strategy)
	if err != nil {
		return resolver.Request{}, err
	}
	if req.Page != nil {
		return resolver.Request{}, &domain.InvalidQueryParameterError{Parameter: "offset/limit", Reason: "endpoint does not support pagination"}
	}
	return req, nil
}

func (h *Handler) listOrderEntities(w http.ResponseWriter, r *http.Request) {
	req, err := h.unpaged(r, resolver.StrategyEntityGraph)
	if err != nil {
		writeError(w, r, err)
		return
	}
	orders, err := h.reader.ListOrders(r.Context(), req.Search)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, orders)
}

func (h *Handler) listSimpleOrderEntities(w http.ResponseWriter, r *http.Request) {
	req, err := h.unpaged(r, resolver.StrategyEntityGraph)
	if err != nil {
		writeError(w, r, err)
		return
	}
	orders, err := h.reader.ListSimpleOrders(r.Context(), req.Search)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, orders)
}

func (h *Handler) summaries(route summaryRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := h.request(r, route.strategy)
		if err != nil {
			writeError(w, r, err)
			return
		}
		summaries, err := h.reader.Resolve(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if summaries == nil {
			summaries = []resolver.OrderSummary{}
		}
		if route.envelope {
			writeJSON(w, r, Result[resolver.OrderSummary]{Count: len(summaries), Data: summaries})
			return
		}
		writeJSON(w, r, summaries)
	}
}

// resolveOrders serves any strategy chosen by the strategy query parameter.
func (h *Handler) resolveOrders(w http.ResponseWriter, r *http.Request) {
	strategy, err := resolver.ParseStrategy(r.URL.Query().Get(paramStrategy))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.summaries(summaryRoute{strategy: strategy})(w, r)
}

func (h *Handler) simpleSummaries(route summaryRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := h.request(r, route.strategy)
		if err != nil {
			writeError(w, r, err)
			return
		}
		summaries, err := h.reader.ResolveSimple(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if summaries == nil {
			summaries = []resolver.SimpleOrderSummary{}
		}
		writeJSON(w, r, summaries)
	}
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	order, err := h.reader.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, order)
}

func (h *Handler) listStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, resolver.Strategies())
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Warn("failed to encode response", slog.String("error", err.Error()))
	}
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	switch domain.Classify(err) {
	case domain.KindBadRequest:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindBusinessRule:
		return http.StatusConflict
	case domain.KindStore:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.Classify(err)
	status := StatusFor(err)
	logger := logging.FromContext(r.Context())

	message := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error("order request failed",
			slog.String("path", r.URL.Path),
			slog.String("error_kind", string(kind)),
			slog.String("error", err.Error()),
		)
		// Driver messages can carry schema details.
		message = http.StatusText(status)
	} else {
		logger.Debug("order request rejected",
			slog.String("path", r.URL.Path),
			slog.String("error_kind", string(kind)),
			slog.String("error", err.Error()),
		)
	}
	middleware.WriteJSONError(w, status, string(kind), message)
}
