package httpapi

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ordergraph/internal/domain"
	"ordergraph/internal/planner"
	"ordergraph/internal/resolver"
	"ordergraph/internal/testutil"
	"ordergraph/internal/testutil/sqlitedb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newFixtureServerWith(t, resolver.Options{})
}

func newFixtureServerWith(t *testing.T, opts resolver.Options) *httptest.Server {
	t.Helper()
	tdb := sqlitedb.NewWithFixtures(t)
	reader := resolver.NewResolver(tdb.Executor, opts)
	srv := httptest.NewServer(New(reader).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, srv *httptest.Server, path string, out any) int {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func summaryIDs(summaries []resolver.OrderSummary) []int64 {
	ids := make([]int64, 0, len(summaries))
	for _, s := range summaries {
		ids = append(ids, s.OrderID)
	}
	return ids
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestOrderEndpointsReturnSameOrders(t *testing.T) {
	srv := newFixtureServer(t)

	var envelope Result[resolver.OrderSummary]
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/api/v2/orders", &envelope))
	assert.Equal(t, testutil.FixtureOrderCount, envelope.Count)
	baseline := envelope.Data

	for _, path := range []string{
		"/api/v3/orders",
		"/api/v3.1/orders",
		"/api/v4/orders",
		"/api/v5/orders",
		"/api/v6/orders",
	} {
		t.Run(path, func(t *testing.T) {
			var got []resolver.OrderSummary
			require.Equal(t, http.StatusOK, getJSON(t, srv, path, &got))
			assert.Equal(t, summaryIDs(baseline), summaryIDs(got))
			for i := range got {
				assert.Equal(t, baseline[i].MemberName, got[i].MemberName)
				assert.Len(t, got[i].OrderItems, len(testutil.FixtureLines[got[i].OrderID]))
			}
		})
	}
}

func TestOrderEntitiesEndpoint(t *testing.T) {
	srv := newFixtureServer(t)

	var orders []domain.Order
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/api/v1/orders?memberName=userB", &orders))
	require.Len(t, orders, 2)
	assert.Equal(t, int64(2), orders[0].ID)
	assert.Equal(t, "userB", orders[0].Member.Name)
	require.Len(t, orders[0].OrderItems, 2)
	assert.Equal(t, "SPRING1 BOOK", orders[0].OrderItems[0].Item.Name)
}

func TestPagedEndpoint(t *testing.T) {
	srv := newFixtureServer(t)

	var got []resolver.OrderSummary
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/api/v3.1/orders?offset=1&limit=2", &got))
	assert.Equal(t, []int64{2, 3}, summaryIDs(got))

	got = nil
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/api/v5/orders?offset=3", &got))
	assert.Equal(t, []int64{4, 5}, summaryIDs(got))
	assert.Empty(t, got[0].OrderItems)

	got = nil
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/api/v4/orders?limit=0", &got))
	assert.Empty(t, got)
}

func TestSimpleOrderEndpoints(t *testing.T) {
	srv := newFixtureServer(t)

	var entities []domain.Order
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/api/v1/simple-orders?status=canceled", &entities))
	require.Len(t, entities, 1)
	assert.Equal(t, int64(3), entities[0].ID)
	assert.Nil(t, entities[0].OrderItems)

	for _, path := range []string{"/api/v2/simple-orders", "/api/v3/simple-orders", "/api/v4/simple-orders"} {
		var got []resolver.SimpleOrderSummary
		require.Equal(t, http.StatusOK, getJSON(t, srv, path+"?memberName=user_C", &got), path)
		require.Len(t, got, 1, path)
		assert.Equal(t, int64(4), got[0].OrderID, path)
		assert.Equal(t, "Jinju", got[0].Address.City, path)
	}
}

func TestGetOrderEndpoint(t *testing.T) {
	srv := newFixtureServer(t)

	var order domain.Order
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/api/v1/orders/5", &order))
	assert.Equal(t, int64(5), order.ID)
	assert.Len(t, order.OrderItems, 3)

	var env errorEnvelope
	require.Equal(t, http.StatusNotFound, getJSON(t, srv, "/api/v1/orders/99", &env))
	assert.Equal(t, string(domain.KindNotFound), env.Error.Code)

	env = errorEnvelope{}
	require.Equal(t, http.StatusBadRequest, getJSON(t, srv, "/api/v1/orders/abc", &env))
	assert.Equal(t, string(domain.KindBadRequest), env.Error.Code)
}

func TestInvalidParametersAreRejected(t *testing.T) {
	srv := newFixtureServer(t)

	tests := []struct {
		path  string
		param string
	}{
		{path: "/api/v6/orders?limit=10", param: "offset/limit"},
		{path: "/api/v6/orders?offset=0", param: "offset/limit"},
		{path: "/api/v1/orders?limit=10", param: "offset/limit"},
		{path: "/api/v3/orders?offset=1&limit=1", param: "offset/limit"},
		{path: "/api/v2/simple-orders?limit=1", param: "offset/limit"},
		{path: "/api/v3.1/orders?limit=-1", param: "limit"},
		{path: "/api/v3.1/orders?offset=-1", param: "offset"},
		{path: "/api/v4/orders?limit=1001", param: "limit"},
		{path: "/api/v5/orders?limit=ten", param: "limit"},
		{path: "/api/v2/orders?status=SHIPPED", param: "status"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var env errorEnvelope
			require.Equal(t, http.StatusBadRequest, getJSON(t, srv, tt.path, &env))
			assert.Equal(t, string(domain.KindBadRequest), env.Error.Code)
			assert.Contains(t, env.Error.Message, tt.param)
		})
	}
}

func TestStrategiesEndpoint(t *testing.T) {
	srv := newFixtureServer(t)

	var infos []resolver.StrategyInfo
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/api/strategies", &infos))
	require.Len(t, infos, 6)
	assert.Equal(t, resolver.StrategyEntityGraph, infos[0].Strategy)
	assert.False(t, infos[5].Pageable)
}

type failingReader struct {
	err error
}

func (f failingReader) ListOrders(context.Context, planner.OrderSearch) ([]domain.Order, error) {
	return nil, f.err
}

func (f failingReader) ListSimpleOrders(context.Context, planner.OrderSearch) ([]domain.Order, error) {
	return nil, f.err
}

func (f failingReader) Resolve(context.Context, resolver.Request) ([]resolver.OrderSummary, error) {
	return nil, f.err
}

func (f failingReader) ResolveSimple(context.Context, resolver.Request) ([]resolver.SimpleOrderSummary, error) {
	return nil, f.err
}

func (f failingReader) GetOrder(context.Context, int64) (domain.Order, error) {
	return domain.Order{}, f.err
}

func (f failingReader) Options() resolver.Options {
	return resolver.Options{}
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    domain.ErrorKind
		wantMessage string
	}{
		{name: "store", err: driver.ErrBadConn, wantStatus: http.StatusServiceUnavailable, wantCode: domain.KindStore, wantMessage: "Service Unavailable"},
		{name: "business rule", err: domain.ErrAlreadyDelivered, wantStatus: http.StatusConflict, wantCode: domain.KindBusinessRule, wantMessage: "order already delivered"},
		{name: "internal", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: domain.KindInternal, wantMessage: "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := New(failingReader{err: tt.err}).Routes()
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/orders", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var env errorEnvelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.Equal(t, string(tt.wantCode), env.Error.Code)
			assert.Equal(t, tt.wantMessage, env.Error.Message)
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := New(failingReader{}).Routes()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v2/orders", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestOrdersByStrategyParameter(t *testing.T) {
	srv := newFixtureServer(t)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantIDs    []int64
	}{
		{name: "default strategy pages", path: "/api/orders?offset=1&limit=2", wantStatus: http.StatusOK, wantIDs: []int64{2, 3}},
		{name: "flat", path: "/api/orders?strategy=flat", wantStatus: http.StatusOK, wantIDs: []int64{1, 2, 3, 4, 5}},
		{name: "case insensitive", path: "/api/orders?strategy=PROJECTION_BATCHED&limit=1", wantStatus: http.StatusOK, wantIDs: []int64{1}},
		{name: "flat rejects paging", path: "/api/orders?strategy=flat&limit=2", wantStatus: http.StatusBadRequest},
		{name: "unknown strategy", path: "/api/orders?strategy=lazy", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantStatus != http.StatusOK {
				var env errorEnvelope
				require.Equal(t, tt.wantStatus, getJSON(t, srv, tt.path, &env))
				assert.Equal(t, string(domain.KindBadRequest), env.Error.Code)
				return
			}
			var got []resolver.OrderSummary
			require.Equal(t, tt.wantStatus, getJSON(t, srv, tt.path, &got))
			assert.Equal(t, tt.wantIDs, summaryIDs(got))
		})
	}
}

func TestOffsetOnlyUsesConfiguredDefaultLimit(t *testing.T) {
	srv := newFixtureServerWith(t, resolver.Options{MaxResults: 3})

	var got []resolver.OrderSummary
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/api/v3.1/orders?offset=1", &got))
	assert.Equal(t, []int64{2, 3, 4}, summaryIDs(got))
}
