// Package resolver resolves the order aggregate with one of several fetch strategies.
// Every strategy returns the same logical data and differs only in round trips,
// row duplication and whether roots can be paged.
package resolver

import (
	"context"
	"log/slog"
	"time"

	"ordergraph/internal/dbexec"
	"ordergraph/internal/domain"
	"ordergraph/internal/logging"
	"ordergraph/internal/observability"
	"ordergraph/internal/planner"

	"go.opentelemetry.io/otel/attribute"
)

// Options tunes a Resolver. Zero values select the defaults.
type Options struct {
	// MaxResults caps unpaged root listings and bounds page limits.
	MaxResults int
	// BatchSize bounds the ids in one IN clause.
	BatchSize int
	// Parallelism allows chunk queries of one batch load to run concurrently on
	// pooled connections. It is forced to 1 when Snapshot is set.
	Parallelism int
	// DefaultPageLimit applies when a pageable strategy is resolved without a page.
	DefaultPageLimit int
	// Snapshot runs each invocation in a read-only repeatable-read transaction.
	Snapshot bool
}

// Resolver executes fetch strategies against a query executor.
type Resolver struct {
	executor dbexec.QueryExecutor
	opts     Options
}

// NewResolver creates a resolver.
func NewResolver(executor dbexec.QueryExecutor, opts Options) *Resolver {
	if opts.MaxResults <= 0 {
		opts.MaxResults = planner.DefaultMaxResults
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = planner.DefaultBatchSize
	}
	if opts.Parallelism < 1 || opts.Snapshot {
		opts.Parallelism = 1
	}
	if opts.DefaultPageLimit <= 0 || opts.DefaultPageLimit > opts.MaxResults {
		opts.DefaultPageLimit = min(planner.DefaultPageLimit, opts.MaxResults)
	}
	return &Resolver{executor: executor, opts: opts}
}

// Options returns the effective options after defaults.
func (r *Resolver) Options() Options {
	return r.opts
}

// run executes fn on the session bound to ctx, or on a session pinned for this call.
func (r *Resolver) run(ctx context.Context, strategy Strategy, op string, fn func(context.Context, *fetchState) (int, error)) (err error) {
	start := time.Now()
	metrics := observability.FetchMetricsFromContext(ctx)
	ctx, span := startResolverSpan(ctx, "ordergraph."+op, attribute.String("fetch.strategy", string(strategy)))
	defer span.End()

	var st *fetchState
	results := 0
	defer func() {
		var trips int64
		if st != nil {
			trips = st.roundTrips.Load()
		}
		finishResolverSpan(span, err, trips, results)
		metrics.RecordFetch(ctx, string(strategy), time.Since(start), trips, int64(results), string(domain.Classify(err)))
		logging.FromContext(ctx).Debug("fetch finished",
			slog.String("operation", op),
			slog.String("strategy", string(strategy)),
			slog.Int64("round_trips", trips),
			slog.Int("results", results),
			slog.Duration("duration", time.Since(start)),
		)
	}()

	session := SessionFromContext(ctx)
	if session == nil {
		owned, openErr := r.executor.Session(ctx, dbexec.SessionOptions{Snapshot: r.opts.Snapshot})
		if openErr != nil {
			return openErr
		}
		defer func() {
			if closeErr := owned.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		session = owned
	}

	var batchQuerier dbexec.Querier
	if r.opts.Parallelism > 1 {
		batchQuerier = r.executor
	}
	st = newFetchState(session, batchQuerier, metrics)
	results, err = fn(ctx, st)
	return err
}

func (r *Resolver) checkPage(page planner.Page) error {
	return planner.ValidatePage(page, r.opts.MaxResults)
}

// ListOrders returns order entities with every relation loaded, one load per
// relation per order, deduplicated by the request identity map.
func (r *Resolver) ListOrders(ctx context.Context, search planner.OrderSearch) ([]domain.Order, error) {
	var orders []domain.Order
	err := r.run(ctx, StrategyEntityGraph, "ListOrders", func(ctx context.Context, st *fetchState) (int, error) {
		var err error
		orders, err = r.loadEntityGraph(ctx, st, search, true)
		return len(orders), err
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ListOrderSummaries loads the entity graph and projects it after every relation is resolved.
func (r *Resolver) ListOrderSummaries(ctx context.Context, search planner.OrderSearch) ([]OrderSummary, error) {
	var summaries []OrderSummary
	err := r.run(ctx, StrategyEntityGraph, "ListOrderSummaries", func(ctx context.Context, st *fetchState) (int, error) {
		orders, err := r.loadEntityGraph(ctx, st, search, true)
		if err != nil {
			return 0, err
		}
		summaries, err = MapOrderSummaries(orders)
		return len(summaries), err
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// ListOrderSummariesJoinFetch loads orders with member, delivery and lines in one
// query. The result cannot be paged because roots repeat once per line.
func (r *Resolver) ListOrderSummariesJoinFetch(ctx context.Context, search planner.OrderSearch) ([]OrderSummary, error) {
	var summaries []OrderSummary
	err := r.run(ctx, StrategyJoinFetch, "ListOrderSummariesJoinFetch", func(ctx context.Context, st *fetchState) (int, error) {
		orders, err := r.loadJoinFetch(ctx, st, search.Conditions())
		if err != nil {
			return 0, err
		}
		summaries, err = MapOrderSummaries(orders)
		return len(summaries), err
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// ListOrderSummariesPaged pages roots joined to their to-one relations, then batch
// loads order lines and their items.
func (r *Resolver) ListOrderSummariesPaged(ctx context.Context, search planner.OrderSearch, page planner.Page) ([]OrderSummary, error) {
	if err := r.checkPage(page); err != nil {
		return nil, err
	}
	if page.Limit == 0 {
		return []OrderSummary{}, nil
	}

	var summaries []OrderSummary
	err := r.run(ctx, StrategyJoinFetchBatched, "ListOrderSummariesPaged", func(ctx context.Context, st *fetchState) (int, error) {
		orders, err := r.loadToOne(ctx, st, search.Conditions(), page)
		if err != nil {
			return 0, err
		}
		if err := r.attachOrderItems(ctx, st, orders); err != nil {
			return 0, err
		}
		summaries, err = MapOrderSummaries(orders)
		return len(summaries), err
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// ListOrderProjections selects narrowed root columns, then one line query per order.
func (r *Resolver) ListOrderProjections(ctx context.Context, search planner.OrderSearch, page planner.Page) ([]OrderSummary, error) {
	if err := r.checkPage(page); err != nil {
		return nil, err
	}
	if page.Limit == 0 {
		return []OrderSummary{}, nil
	}

	var summaries []OrderSummary
	err := r.run(ctx, StrategyProjection, "ListOrderProjections", func(ctx context.Context, st *fetchState) (int, error) {
		roots, err := r.loadProjectionRoots(ctx, st, search.Conditions(), page)
		if err != nil {
			return 0, err
		}
		summaries = make([]OrderSummary, 0, len(roots))
		for _, root := range roots {
			planned, err := planner.PlanOrderItemProjections(root.OrderID)
			if err != nil {
				return 0, err
			}
			rows, err := st.query(ctx, planned, itemProjectWidth)
			if err != nil {
				return 0, err
			}
			lines := make([]OrderItemSummary, 0, len(rows))
			for _, vals := range rows {
				row, err := decodeItemProjection(vals)
				if err != nil {
					return 0, err
				}
				lines = append(lines, row.line)
			}
			summaries = append(summaries, withLines(root, lines))
		}
		return len(summaries), nil
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// ListOrderProjectionsBatched selects narrowed root columns, then batch loads lines.
func (r *Resolver) ListOrderProjectionsBatched(ctx context.Context, search planner.OrderSearch, page planner.Page) ([]OrderSummary, error) {
	if err := r.checkPage(page); err != nil {
		return nil, err
	}
	if page.Limit == 0 {
		return []OrderSummary{}, nil
	}

	var summaries []OrderSummary
	err := r.run(ctx, StrategyProjectionBatched, "ListOrderProjectionsBatched", func(ctx context.Context, st *fetchState) (int, error) {
		roots, err := r.loadProjectionRoots(ctx, st, search.Conditions(), page)
		if err != nil {
			return 0, err
		}
		ids := make([]int64, len(roots))
		for i, root := range roots {
			ids[i] = root.OrderID
		}

		grouped, err := loadBatched(ctx, r, st, "orderItemProjections", ids,
			func(ctx context.Context, chunk []int64) ([]itemProjectionRow, error) {
				planned, err := planner.PlanOrderItemProjectionsBatch(chunk)
				if err != nil {
					return nil, err
				}
				rows, err := st.batchQuery(ctx, planned, itemProjectWidth)
				if err != nil {
					return nil, err
				}
				out := make([]itemProjectionRow, 0, len(rows))
				for _, vals := range rows {
					row, err := decodeItemProjection(vals)
					if err != nil {
						return nil, err
					}
					out = append(out, row)
				}
				return out, nil
			},
			func(row itemProjectionRow) int64 { return row.orderID },
		)
		if err != nil {
			return 0, err
		}

		summaries = make([]OrderSummary, 0, len(roots))
		for _, root := range roots {
			rows := grouped[root.OrderID]
			lines := make([]OrderItemSummary, 0, len(rows))
			for _, row := range rows {
				lines = append(lines, row.line)
			}
			summaries = append(summaries, withLines(root, lines))
		}
		return len(summaries), nil
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

type flatRow struct {
	root SimpleOrderSummary
	line *OrderItemSummary
}

// ListOrderFlat resolves everything in one query and folds the duplicated rows.
// The row stream is never limited, so this listing has no page and no cap.
func (r *Resolver) ListOrderFlat(ctx context.Context, search planner.OrderSearch) ([]OrderSummary, error) {
	var summaries []OrderSummary
	err := r.run(ctx, StrategyFlat, "ListOrderFlat", func(ctx context.Context, st *fetchState) (int, error) {
		planned, err := planner.PlanOrderFlat(search.Conditions())
		if err != nil {
			return 0, err
		}
		rows, err := st.query(ctx, planned, flatWidth)
		if err != nil {
			return 0, err
		}

		decoded := make([]flatRow, 0, len(rows))
		for _, vals := range rows {
			row, err := decodeFlatRow(vals)
			if err != nil {
				return 0, err
			}
			decoded = append(decoded, row)
		}

		dedup := FlatDeduplicator[int64, flatRow, OrderSummary]{
			Key:     func(row flatRow) int64 { return row.root.OrderID },
			NewRoot: func(row flatRow) OrderSummary { return withLines(row.root, []OrderItemSummary{}) },
			AddLeaf: func(acc *OrderSummary, row flatRow) {
				if row.line != nil {
					acc.OrderItems = append(acc.OrderItems, *row.line)
				}
			},
		}
		var duplicates int
		summaries, duplicates = dedup.Apply(decoded)
		st.metrics.RecordFlatDuplicates(ctx, int64(duplicates))
		return len(summaries), nil
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

func decodeFlatRow(vals []interface{}) (flatRow, error) {
	width := planner.ProjectionRootColumnCount
	root, err := decodeProjectionRoot(vals[:width])
	if err != nil {
		return flatRow{}, err
	}
	_, hasLine, err := asInt64(vals[width])
	if err != nil || !hasLine {
		return flatRow{root: root}, err
	}
	name, _ := asString(vals[width+1])
	price, err := requireInt(vals[width+2], "order_price")
	if err != nil {
		return flatRow{}, err
	}
	count, err := requireInt(vals[width+3], "count")
	if err != nil {
		return flatRow{}, err
	}
	return flatRow{root: root, line: &OrderItemSummary{ItemName: name, OrderPrice: price, Count: count}}, nil
}

// ListSimpleOrders returns order entities with member and delivery only.
func (r *Resolver) ListSimpleOrders(ctx context.Context, search planner.OrderSearch) ([]domain.Order, error) {
	var orders []domain.Order
	err := r.run(ctx, StrategyEntityGraph, "ListSimpleOrders", func(ctx context.Context, st *fetchState) (int, error) {
		var err error
		orders, err = r.loadEntityGraph(ctx, st, search, false)
		return len(orders), err
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ListSimpleOrderSummaries projects ListSimpleOrders.
func (r *Resolver) ListSimpleOrderSummaries(ctx context.Context, search planner.OrderSearch) ([]SimpleOrderSummary, error) {
	var summaries []SimpleOrderSummary
	err := r.run(ctx, StrategyEntityGraph, "ListSimpleOrderSummaries", func(ctx context.Context, st *fetchState) (int, error) {
		orders, err := r.loadEntityGraph(ctx, st, search, false)
		if err != nil {
			return 0, err
		}
		summaries, err = MapSimpleOrderSummaries(orders)
		return len(summaries), err
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// ListSimpleOrderSummariesJoinFetch joins member and delivery in one capped query.
func (r *Resolver) ListSimpleOrderSummariesJoinFetch(ctx context.Context, search planner.OrderSearch) ([]SimpleOrderSummary, error) {
	var summaries []SimpleOrderSummary
	err := r.run(ctx, StrategyJoinFetch, "ListSimpleOrderSummariesJoinFetch", func(ctx context.Context, st *fetchState) (int, error) {
		orders, err := r.loadToOne(ctx, st, search.Conditions(), planner.Page{Limit: r.opts.MaxResults})
		if err != nil {
			return 0, err
		}
		summaries, err = MapSimpleOrderSummaries(orders)
		return len(summaries), err
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// ListSimpleOrderProjections selects only the summary columns in one capped query.
func (r *Resolver) ListSimpleOrderProjections(ctx context.Context, search planner.OrderSearch) ([]SimpleOrderSummary, error) {
	var summaries []SimpleOrderSummary
	err := r.run(ctx, StrategyProjection, "ListSimpleOrderProjections", func(ctx context.Context, st *fetchState) (int, error) {
		var err error
		summaries, err = r.loadProjectionRoots(ctx, st, search.Conditions(), planner.Page{Limit: r.opts.MaxResults})
		return len(summaries), err
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// GetOrder loads one order with all relations in a single join.
func (r *Resolver) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	var order domain.Order
	err := r.run(ctx, StrategyJoinFetch, "GetOrder", func(ctx context.Context, st *fetchState) (int, error) {
		orders, err := r.loadJoinFetch(ctx, st, planner.ByOrderID(id))
		if err != nil {
			return 0, err
		}
		if len(orders) == 0 {
			return 0, &domain.NotFoundError{Entity: planner.TableOrder, ID: id}
		}
		order = orders[0]
		return 1, nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (r *Resolver) loadEntityGraph(ctx context.Context, st *fetchState, search planner.OrderSearch, withItems bool) ([]domain.Order, error) {
	planned, err := planner.PlanOrderRoots(search.Conditions(), r.opts.MaxResults)
	if err != nil {
		return nil, err
	}
	rows, err := st.query(ctx, planned, planner.OrderColumnCount)
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(rows))
	for _, vals := range rows {
		row, err := decodeOrder(vals)
		if err != nil {
			return nil, err
		}
		order := row.order
		if order.Member, err = st.member(ctx, row.memberID); err != nil {
			return nil, err
		}
		if order.Delivery, err = st.delivery(ctx, row.deliveryID); err != nil {
			return nil, err
		}
		if withItems {
			if order.OrderItems, err = r.loadOrderItems(ctx, st, order.ID); err != nil {
				return nil, err
			}
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (r *Resolver) loadOrderItems(ctx context.Context, st *fetchState, orderID int64) ([]domain.OrderItem, error) {
	planned, err := planner.PlanOrderItemsByOrder(orderID)
	if err != nil {
		return nil, err
	}
	rows, err := st.query(ctx, planned, planner.OrderItemColumnCount)
	if err != nil {
		return nil, err
	}
	lines := make([]domain.OrderItem, 0, len(rows))
	for _, vals := range rows {
		row, ok, err := decodeOrderItem(vals)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		line := row.orderItem
		if line.Item, err = st.item(ctx, row.itemID); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

type joinedRow struct {
	order domain.Order
	line  *domain.OrderItem
}

func (r *Resolver) loadJoinFetch(ctx context.Context, st *fetchState, conds []planner.Condition) ([]domain.Order, error) {
	planned, err := planner.PlanFetchJoin(conds, planner.RelationMember, planner.RelationDelivery, planner.RelationOrderItems)
	if err != nil {
		return nil, err
	}
	rows, err := st.query(ctx, planned, joinManyWidth)
	if err != nil {
		return nil, err
	}

	decoded := make([]joinedRow, 0, len(rows))
	for _, vals := range rows {
		order, err := decodeToOne(vals[:toOneWidth])
		if err != nil {
			return nil, err
		}
		row := joinedRow{order: order}
		lineRow, ok, err := decodeOrderItem(vals[toOneWidth : toOneWidth+planner.OrderItemColumnCount])
		if err != nil {
			return nil, err
		}
		if ok {
			item, err := decodeItem(vals[toOneWidth+planner.OrderItemColumnCount:])
			if err != nil {
				return nil, err
			}
			if item == nil {
				return nil, &domain.NotFoundError{Entity: planner.TableItem, ID: lineRow.itemID}
			}
			line := lineRow.orderItem
			line.Item = item
			row.line = &line
		}
		decoded = append(decoded, row)
	}

	dedup := FlatDeduplicator[int64, joinedRow, domain.Order]{
		Key: func(row joinedRow) int64 { return row.order.ID },
		NewRoot: func(row joinedRow) domain.Order {
			order := row.order
			order.OrderItems = []domain.OrderItem{}
			return order
		},
		AddLeaf: func(acc *domain.Order, row joinedRow) {
			if row.line != nil {
				acc.OrderItems = append(acc.OrderItems, *row.line)
			}
		},
	}
	orders, duplicates := dedup.Apply(decoded)
	st.metrics.RecordFlatDuplicates(ctx, int64(duplicates))
	return orders, nil
}

func (r *Resolver) loadToOne(ctx context.Context, st *fetchState, conds []planner.Condition, page planner.Page) ([]domain.Order, error) {
	planned, err := planner.PlanOrdersWithToOne(conds, page)
	if err != nil {
		return nil, err
	}
	rows, err := st.query(ctx, planned, toOneWidth)
	if err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(rows))
	for _, vals := range rows {
		order, err := decodeToOne(vals)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (r *Resolver) loadProjectionRoots(ctx context.Context, st *fetchState, conds []planner.Condition, page planner.Page) ([]SimpleOrderSummary, error) {
	planned, err := planner.PlanOrderProjections(conds, page)
	if err != nil {
		return nil, err
	}
	rows, err := st.query(ctx, planned, planner.ProjectionRootColumnCount)
	if err != nil {
		return nil, err
	}
	roots := make([]SimpleOrderSummary, 0, len(rows))
	for _, vals := range rows {
		root, err := decodeProjectionRoot(vals)
		if err != nil {
			return nil, err
		}
		roots = append(roots, root)
	}
	return roots, nil
}

// attachOrderItems batch loads the lines of orders, then the items of those lines.
func (r *Resolver) attachOrderItems(ctx context.Context, st *fetchState, orders []domain.Order) error {
	orderIDs := make([]int64, len(orders))
	for i := range orders {
		orderIDs[i] = orders[i].ID
	}

	lines, err := loadBatched(ctx, r, st, "orderItems", orderIDs,
		func(ctx context.Context, chunk []int64) ([]orderItemRow, error) {
			planned, err := planner.PlanOrderItemsBatch(chunk)
			if err != nil {
				return nil, err
			}
			rows, err := st.batchQuery(ctx, planned, planner.OrderItemColumnCount)
			if err != nil {
				return nil, err
			}
			out := make([]orderItemRow, 0, len(rows))
			for _, vals := range rows {
				row, ok, err := decodeOrderItem(vals)
				if err != nil {
					return nil, err
				}
				if ok {
					out = append(out, row)
				}
			}
			return out, nil
		},
		func(row orderItemRow) int64 { return row.orderItem.OrderID },
	)
	if err != nil {
		return err
	}

	var itemIDs []int64
	for _, id := range orderIDs {
		for _, row := range lines[id] {
			itemIDs = append(itemIDs, row.itemID)
		}
	}
	items, err := loadBatched(ctx, r, st, "items", itemIDs,
		func(ctx context.Context, chunk []int64) ([]*domain.Item, error) {
			planned, err := planner.PlanItemsBatch(chunk)
			if err != nil {
				return nil, err
			}
			rows, err := st.batchQuery(ctx, planned, planner.ItemColumnCount)
			if err != nil {
				return nil, err
			}
			out := make([]*domain.Item, 0, len(rows))
			for _, vals := range rows {
				item, err := decodeItem(vals)
				if err != nil {
					return nil, err
				}
				if item != nil {
					out = append(out, item)
				}
			}
			return out, nil
		},
		func(item *domain.Item) int64 { return item.ID },
	)
	if err != nil {
		return err
	}

	for i := range orders {
		rows := lines[orders[i].ID]
		orderItems := make([]domain.OrderItem, 0, len(rows))
		for _, row := range rows {
			found := items[row.itemID]
			if len(found) == 0 {
				return &domain.NotFoundError{Entity: planner.TableItem, ID: row.itemID}
			}
			line := row.orderItem
			line.Item = found[0]
			orderItems = append(orderItems, line)
		}
		orders[i].OrderItems = orderItems
	}
	return nil
}

// loadBatched runs a BatchLoader configured from the resolver options and records its fan-in.
func loadBatched[V any](
	ctx context.Context,
	r *Resolver,
	st *fetchState,
	relation string,
	ids []int64,
	fetch func(context.Context, []int64) ([]V, error),
	keyOf func(V) int64,
) (map[int64][]V, error) {
	loader := BatchLoader[int64, V]{
		MaxInClause: r.opts.BatchSize,
		Parallelism: r.opts.Parallelism,
		Fetch:       fetch,
		KeyOf:       keyOf,
	}
	grouped, err := loader.Load(ctx, ids)
	if err != nil {
		return nil, err
	}
	st.metrics.RecordBatchLoad(ctx, relation, len(grouped), loader.ChunkCount(len(grouped)))
	return grouped, nil
}
