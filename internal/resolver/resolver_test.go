package resolver

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"ordergraph/internal/dbexec"
	"ordergraph/internal/domain"
	"ordergraph/internal/planner"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixtureDate = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func orderValues(orderID, memberID, deliveryID int64) []any {
	return []any{orderID, memberID, deliveryID, fixtureDate, "ORDERED"}
}

func memberValues(memberID int64, name string) []any {
	return []any{memberID, name, "Seoul", "street 1", "1111"}
}

func deliveryValues(deliveryID int64) []any {
	return []any{deliveryID, "Seoul", "street 1", "1111", "READY"}
}

func orderItemValues(id, orderID, itemID int64, price, count int) []any {
	return []any{id, orderID, itemID, int64(price), int64(count)}
}

func bookValues(itemID int64, name string, price int) []any {
	return []any{itemID, "B", name, int64(price), int64(100), "kim", "111", nil, nil, nil, nil}
}

func concatValues(groups ...[]any) []any {
	var out []any
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func TestPagedStrategiesRejectInvalidPagesBeforeStoreAccess(t *testing.T) {
	pages := []struct {
		name string
		page planner.Page
	}{
		{name: "negative offset", page: planner.Page{Offset: -1, Limit: 2}},
		{name: "negative limit", page: planner.Page{Offset: 0, Limit: -1}},
		{name: "limit above max", page: planner.Page{Offset: 0, Limit: 1001}},
	}
	ops := map[string]func(*Resolver, planner.Page) error{
		"join fetch batched": func(r *Resolver, p planner.Page) error {
			_, err := r.ListOrderSummariesPaged(context.Background(), planner.OrderSearch{}, p)
			return err
		},
		"projection": func(r *Resolver, p planner.Page) error {
			_, err := r.ListOrderProjections(context.Background(), planner.OrderSearch{}, p)
			return err
		},
		"projection batched": func(r *Resolver, p planner.Page) error {
			_, err := r.ListOrderProjectionsBatched(context.Background(), planner.OrderSearch{}, p)
			return err
		},
	}

	for opName, op := range ops {
		for _, tt := range pages {
			t.Run(opName+"/"+tt.name, func(t *testing.T) {
				executor := &fakeExecutor{}
				r := NewResolver(executor, Options{})

				err := op(r, tt.page)
				var invalid *domain.InvalidQueryParameterError
				require.ErrorAs(t, err, &invalid)
				assert.Zero(t, executor.calls)
				assert.Zero(t, executor.sessions)
			})
		}
	}
}

func TestZeroLimitReturnsEmptyWithoutStoreAccess(t *testing.T) {
	executor := &fakeExecutor{}
	r := NewResolver(executor, Options{})
	page := planner.Page{Offset: 3, Limit: 0}

	summaries, err := r.ListOrderSummariesPaged(context.Background(), planner.OrderSearch{}, page)
	require.NoError(t, err)
	assert.NotNil(t, summaries)
	assert.Empty(t, summaries)

	summaries, err = r.ListOrderProjectionsBatched(context.Background(), planner.OrderSearch{}, page)
	require.NoError(t, err)
	assert.Empty(t, summaries)

	assert.Zero(t, executor.calls)
	assert.Zero(t, executor.sessions)
}

func TestResolveRejectsPageOnUnpagedStrategies(t *testing.T) {
	for _, strategy := range []Strategy{StrategyEntityGraph, StrategyJoinFetch, StrategyFlat} {
		t.Run(string(strategy), func(t *testing.T) {
			executor := &fakeExecutor{}
			r := NewResolver(executor, Options{})

			_, err := r.Resolve(context.Background(), Request{Strategy: strategy, Page: &planner.Page{Offset: 0, Limit: 10}})
			var invalid *domain.InvalidQueryParameterError
			require.ErrorAs(t, err, &invalid)
			assert.Zero(t, executor.calls)
		})
	}
}

func TestResolveSimpleRejectsStrategiesWithoutSimpleForm(t *testing.T) {
	r := NewResolver(&fakeExecutor{}, Options{})

	_, err := r.ResolveSimple(context.Background(), Request{Strategy: StrategyFlat})
	var invalid *domain.InvalidQueryParameterError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "strategy", invalid.Parameter)
}

func TestListOrdersLoadsRelationsThroughIdentityMap(t *testing.T) {
	executor := &fakeExecutor{responses: [][][]any{
		{orderValues(1, 1, 1), orderValues(2, 1, 2)},
		{memberValues(1, "userA")},
		{deliveryValues(1)},
		{orderItemValues(1, 1, 7, 10000, 1)},
		{bookValues(7, "JPA1 BOOK", 10000)},
		// order 2: member 1 and item 7 are already loaded
		{deliveryValues(2)},
		{orderItemValues(2, 2, 7, 10000, 3)},
	}}
	r := NewResolver(executor, Options{})

	orders, err := r.ListOrders(context.Background(), planner.OrderSearch{})
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assert.Equal(t, 7, executor.calls)
	assert.Same(t, orders[0].Member, orders[1].Member)
	assert.Same(t, orders[0].OrderItems[0].Item, orders[1].OrderItems[0].Item)
	assert.Equal(t, int64(2), orders[1].Delivery.ID)
	assert.Equal(t, 3, orders[1].OrderItems[0].Count)
	assert.Equal(t, 1, executor.sessions)
	assert.Equal(t, 1, executor.closed)
}

func TestListOrdersMissingMemberIsNotFound(t *testing.T) {
	executor := &fakeExecutor{responses: [][][]any{
		{orderValues(1, 42, 1)},
		{},
	}}
	r := NewResolver(executor, Options{})

	_, err := r.ListOrders(context.Background(), planner.OrderSearch{})
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, int64(42), notFound.ID)
	assert.Equal(t, 1, executor.closed)
}

func TestListOrderSummariesPagedBatchesCollections(t *testing.T) {
	toOne := func(orderID, memberID int64, name string) []any {
		return concatValues(orderValues(orderID, memberID, orderID), memberValues(memberID, name), deliveryValues(orderID))
	}
	executor := &fakeExecutor{responses: [][][]any{
		{toOne(1, 1, "userA"), toOne(2, 2, "userB"), toOne(3, 1, "userA")},
		{
			orderItemValues(1, 1, 10, 10000, 1),
			orderItemValues(2, 1, 11, 20000, 2),
			orderItemValues(3, 2, 10, 10000, 5),
		},
		{bookValues(10, "JPA1 BOOK", 10000), bookValues(11, "JPA2 BOOK", 20000)},
	}}
	r := NewResolver(executor, Options{})

	summaries, err := r.ListOrderSummariesPaged(context.Background(), planner.OrderSearch{}, planner.Page{Offset: 0, Limit: 3})
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	assert.Equal(t, 3, executor.calls)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, executor.args[1])
	assert.Equal(t, []any{int64(10), int64(11)}, executor.args[2])

	assert.Equal(t, []OrderItemSummary{
		{ItemName: "JPA1 BOOK", OrderPrice: 10000, Count: 1},
		{ItemName: "JPA2 BOOK", OrderPrice: 20000, Count: 2},
	}, summaries[0].OrderItems)
	assert.Equal(t, "userB", summaries[1].MemberName)
	assert.NotNil(t, summaries[2].OrderItems)
	assert.Empty(t, summaries[2].OrderItems)
}

func TestListOrderSummariesPagedChunksByBatchSize(t *testing.T) {
	const orders = 5
	roots := make([][]any, 0, orders)
	for i := int64(1); i <= orders; i++ {
		roots = append(roots, concatValues(orderValues(i, 1, i), memberValues(1, "userA"), deliveryValues(i)))
	}
	executor := &fakeExecutor{responses: [][][]any{roots}}
	r := NewResolver(executor, Options{BatchSize: 2})

	summaries, err := r.ListOrderSummariesPaged(context.Background(), planner.OrderSearch{}, planner.Page{Limit: orders})
	require.NoError(t, err)
	require.Len(t, summaries, orders)

	// 1 root query + ceil(5/2) line chunks; no lines means no item query.
	assert.Equal(t, 4, executor.calls)
	assert.Len(t, executor.args[1], 2)
	assert.Len(t, executor.args[3], 1)
}

func TestListOrderProjectionsIssuesOneLineQueryPerRoot(t *testing.T) {
	root := func(id int64) []any {
		return []any{id, "userA", fixtureDate, "ORDERED", "Seoul", "street 1", "1111"}
	}
	executor := &fakeExecutor{responses: [][][]any{
		{root(1), root(2)},
		{{int64(1), "JPA1 BOOK", int64(10000), int64(1)}},
		{},
	}}
	r := NewResolver(executor, Options{})

	summaries, err := r.ListOrderProjections(context.Background(), planner.OrderSearch{}, planner.Page{Limit: 10})
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, 3, executor.calls)
	assert.Len(t, summaries[0].OrderItems, 1)
	assert.Empty(t, summaries[1].OrderItems)
}

func TestStoreErrorsPropagateUnchanged(t *testing.T) {
	storeErr := errors.New("server has gone away")
	toOne := concatValues(orderValues(1, 1, 1), memberValues(1, "userA"), deliveryValues(1))

	tests := []struct {
		name      string
		responses [][][]any
		errAt     int
		run       func(*Resolver) error
	}{
		{name: "root query", errAt: 0, run: func(r *Resolver) error {
			_, err := r.ListOrderFlat(context.Background(), planner.OrderSearch{})
			return err
		}},
		{name: "lazy relation", responses: [][][]any{{orderValues(1, 1, 1)}}, errAt: 1, run: func(r *Resolver) error {
			_, err := r.ListOrders(context.Background(), planner.OrderSearch{})
			return err
		}},
		{name: "batch chunk", responses: [][][]any{{toOne}}, errAt: 1, run: func(r *Resolver) error {
			_, err := r.ListOrderSummariesPaged(context.Background(), planner.OrderSearch{}, planner.Page{Limit: 10})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor := &fakeExecutor{responses: tt.responses, errAt: map[int]error{tt.errAt: storeErr}}
			r := NewResolver(executor, Options{})

			err := tt.run(r)
			assert.Same(t, storeErr, err)
			assert.Equal(t, tt.errAt+1, executor.calls, "no retry")
			assert.Equal(t, 1, executor.closed)
		})
	}
}

func TestBoundSessionIsReused(t *testing.T) {
	executor := &fakeExecutor{}
	session := &fakeSession{executor: executor}
	r := NewResolver(executor, Options{})
	ctx := WithSession(context.Background(), session)

	_, err := r.ListOrderFlat(ctx, planner.OrderSearch{})
	require.NoError(t, err)
	_, err = r.ListSimpleOrderProjections(ctx, planner.OrderSearch{})
	require.NoError(t, err)

	assert.Equal(t, 2, executor.calls)
	assert.Zero(t, executor.sessions)
	assert.Zero(t, executor.closed, "a bound session is closed by its owner")
	assert.Same(t, session, SessionFromContext(ctx))
}

func TestListOrderFlatDeduplicatesJoinedRows(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	search := planner.OrderSearch{MemberName: "user"}
	planned, err := planner.PlanOrderFlat(search.Conditions())
	require.NoError(t, err)

	columns := []string{"order_id", "name", "order_date", "status", "city", "street", "zipcode", "order_item_id", "name", "order_price", "count"}
	root := func(id int64, member string) []driver.Value {
		return []driver.Value{id, member, fixtureDate, "ORDERED", "Seoul", "street 1", "1111"}
	}
	rows := sqlmock.NewRows(columns).
		AddRow(append(root(1, "userA"), int64(1), "JPA1 BOOK", int64(10000), int64(1))...).
		AddRow(append(root(1, "userA"), int64(2), "JPA2 BOOK", int64(20000), int64(2))...).
		AddRow(append(root(2, "userB"), int64(3), "SPRING1 BOOK", int64(20000), int64(3))...).
		AddRow(append(root(4, "user_C"), nil, nil, nil, nil)...)
	expectQuery(t, mock, planned.SQL, planned.Args, rows)

	r := NewResolver(dbexec.NewStandardExecutor(db), Options{})
	summaries, err := r.ListOrderFlat(context.Background(), search)
	require.NoError(t, err)

	require.Len(t, summaries, 3)
	assert.Equal(t, []int64{1, 2, 4}, []int64{summaries[0].OrderID, summaries[1].OrderID, summaries[2].OrderID})
	assert.Equal(t, []OrderItemSummary{
		{ItemName: "JPA1 BOOK", OrderPrice: 10000, Count: 1},
		{ItemName: "JPA2 BOOK", OrderPrice: 20000, Count: 2},
	}, summaries[0].OrderItems)
	assert.NotNil(t, summaries[2].OrderItems)
	assert.Empty(t, summaries[2].OrderItems)
	assert.Equal(t, "user_C", summaries[2].MemberName)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListOrderSummariesPagedExactQueries(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	page := planner.Page{Offset: 4, Limit: 2}
	rootPlan, err := planner.PlanOrdersWithToOne(nil, page)
	require.NoError(t, err)
	linePlan, err := planner.PlanOrderItemsBatch([]int64{5})
	require.NoError(t, err)
	itemPlan, err := planner.PlanItemsBatch([]int64{1})
	require.NoError(t, err)

	rootColumns := make([]string, 15)
	for i := range rootColumns {
		rootColumns[i] = "c"
	}
	rootRow := make([]driver.Value, 0, 15)
	for _, v := range concatValues(orderValues(5, 2, 5), memberValues(2, "userB"), deliveryValues(5)) {
		rootRow = append(rootRow, v)
	}
	expectQuery(t, mock, rootPlan.SQL, nil, sqlmock.NewRows(rootColumns).AddRow(rootRow...))
	expectQuery(t, mock, linePlan.SQL, linePlan.Args,
		sqlmock.NewRows([]string{"order_item_id", "order_id", "item_id", "order_price", "count"}).
			AddRow(int64(6), int64(5), int64(1), int64(10000), int64(2)))
	expectQuery(t, mock, itemPlan.SQL, itemPlan.Args,
		sqlmock.NewRows([]string{"item_id", "dtype", "name", "price", "stock_quantity", "author", "isbn", "artist", "etc", "director", "actor"}).
			AddRow(int64(1), "B", "JPA1 BOOK", int64(10000), int64(99), "kim", "111", nil, nil, nil, nil))

	r := NewResolver(dbexec.NewStandardExecutor(db), Options{})
	summaries, err := r.ListOrderSummariesPaged(context.Background(), planner.OrderSearch{}, page)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, int64(5), summaries[0].OrderID)
	assert.Equal(t, []OrderItemSummary{{ItemName: "JPA1 BOOK", OrderPrice: 10000, Count: 2}}, summaries[0].OrderItems)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		raw  string
		want Strategy
	}{
		{"", StrategyJoinFetchBatched},
		{"  ", StrategyJoinFetchBatched},
		{"flat", StrategyFlat},
		{" Entity_Graph ", StrategyEntityGraph},
		{"PROJECTION_BATCHED", StrategyProjectionBatched},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}

	_, err := ParseStrategy("lazy")
	var invalid *domain.InvalidQueryParameterError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "strategy", invalid.Parameter)
}
