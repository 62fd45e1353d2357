package resolver

import (
	"context"
	"fmt"
	"strings"

	"ordergraph/internal/domain"
	"ordergraph/internal/planner"
)

// Strategy names one way of resolving the order aggregate.
type Strategy string

const (
	// StrategyEntityGraph loads roots, then every relation per order through the identity map.
	StrategyEntityGraph Strategy = "entity_graph"
	// StrategyJoinFetch loads roots with every relation in one join and deduplicates in memory.
	StrategyJoinFetch Strategy = "join_fetch"
	// StrategyJoinFetchBatched joins to-one relations, pages roots and batch loads collections.
	StrategyJoinFetchBatched Strategy = "join_fetch_batched"
	// StrategyProjection selects narrowed columns and queries order lines per order.
	StrategyProjection Strategy = "projection"
	// StrategyProjectionBatched selects narrowed columns and batch loads order lines.
	StrategyProjectionBatched Strategy = "projection_batched"
	// StrategyFlat selects everything in one duplicated row stream.
	StrategyFlat Strategy = "flat"
)

// StrategyInfo describes the trade-offs of a strategy.
type StrategyInfo struct {
	Strategy   Strategy `json:"strategy"`
	RoundTrips string   `json:"roundTrips"`
	Dedup      bool     `json:"dedup"`
	Pageable   bool     `json:"pageable"`
	Simple     bool     `json:"simple"`
	Notes      string   `json:"notes"`
}

var strategies = []StrategyInfo{
	{StrategyEntityGraph, "1 + per-relation loads", false, false, true, "exposes entities; relations are loaded explicitly before return"},
	{StrategyJoinFetch, "1", true, false, true, "one to-many join at most; roots repeat per order line"},
	{StrategyJoinFetchBatched, "1 + ceil(N/B) + ceil(I/B)", false, true, false, "default for paged reads"},
	{StrategyProjection, "1 + N", false, true, true, "narrowed columns; one line query per order"},
	{StrategyProjectionBatched, "1 + ceil(N/B)", false, true, false, "narrowed columns; batched line query"},
	{StrategyFlat, "1", true, false, false, "never paged; limit and offset apply to rows, not orders"},
}

// Strategies lists every strategy in a fixed order.
func Strategies() []StrategyInfo {
	return append([]StrategyInfo(nil), strategies...)
}

// Info returns the trade-offs of s.
func (s Strategy) Info() (StrategyInfo, bool) {
	for _, info := range strategies {
		if info.Strategy == s {
			return info, true
		}
	}
	return StrategyInfo{}, false
}

// ParseStrategy validates a strategy name. An empty name selects StrategyJoinFetchBatched.
func ParseStrategy(raw string) (Strategy, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return StrategyJoinFetchBatched, nil
	}
	if _, ok := Strategy(raw).Info(); !ok {
		return "", &domain.InvalidQueryParameterError{Parameter: "strategy", Reason: fmt.Sprintf("unknown strategy %q", raw)}
	}
	return Strategy(raw), nil
}

// Request selects a strategy, the root filters and an optional page.
type Request struct {
	Strategy Strategy
	Search   planner.OrderSearch
	Page     *planner.Page
}

func rejectPage(req Request) error {
	if req.Page != nil {
		return &domain.InvalidQueryParameterError{
			Parameter: "offset/limit",
			Reason:    fmt.Sprintf("strategy %s does not support pagination", req.Strategy),
		}
	}
	return nil
}

func (r *Resolver) pageOrDefault(req Request) planner.Page {
	if req.Page != nil {
		return *req.Page
	}
	return planner.Page{Limit: r.opts.DefaultPageLimit}
}

// Resolve dispatches to the operation implementing req.Strategy.
func (r *Resolver) Resolve(ctx context.Context, req Request) ([]OrderSummary, error) {
	switch req.Strategy {
	case StrategyEntityGraph:
		if err := rejectPage(req); err != nil {
			return nil, err
		}
		return r.ListOrderSummaries(ctx, req.Search)
	case StrategyJoinFetch:
		if err := rejectPage(req); err != nil {
			return nil, err
		}
		return r.ListOrderSummariesJoinFetch(ctx, req.Search)
	case StrategyJoinFetchBatched:
		return r.ListOrderSummariesPaged(ctx, req.Search, r.pageOrDefault(req))
	case StrategyProjection:
		return r.ListOrderProjections(ctx, req.Search, r.pageOrDefault(req))
	case StrategyProjectionBatched:
		return r.ListOrderProjectionsBatched(ctx, req.Search, r.pageOrDefault(req))
	case StrategyFlat:
		if err := rejectPage(req); err != nil {
			return nil, err
		}
		return r.ListOrderFlat(ctx, req.Search)
	default:
		return nil, &domain.InvalidQueryParameterError{Parameter: "strategy", Reason: fmt.Sprintf("unknown strategy %q", req.Strategy)}
	}
}

// ResolveSimple dispatches the to-one-only family. Simple listings are capped, never paged.
func (r *Resolver) ResolveSimple(ctx context.Context, req Request) ([]SimpleOrderSummary, error) {
	info, ok := req.Strategy.Info()
	if !ok || !info.Simple {
		return nil, &domain.InvalidQueryParameterError{Parameter: "strategy", Reason: fmt.Sprintf("strategy %q has no simple form", req.Strategy)}
	}
	if err := rejectPage(req); err != nil {
		return nil, err
	}
	switch req.Strategy {
	case StrategyEntityGraph:
		return r.ListSimpleOrderSummaries(ctx, req.Search)
	case StrategyJoinFetch:
		return r.ListSimpleOrderSummariesJoinFetch(ctx, req.Search)
	default:
		return r.ListSimpleOrderProjections(ctx, req.Search)
	}
}
