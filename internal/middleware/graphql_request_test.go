package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractQueryMetadata(t *testing.T) {
	tests := []struct {
		name    string
		req     graphQLRequest
		want    *queryMetadata
		wantErr bool
	}{
		{
			name: "enum literal",
			req:  graphQLRequest{Query: `query { orders(strategy: FLAT) { orderId orderItems { itemName } } }`},
			want: &queryMetadata{
				operationType: "query",
				rootFields:    []string{"orders"},
				strategies:    []string{"flat"},
			},
		},
		{
			name: "field defaults",
			req:  graphQLRequest{Query: `{ orders { orderId } simpleOrders { orderId } strategies { strategy } }`},
			want: &queryMetadata{
				operationType: "query",
				rootFields:    []string{"orders", "simpleOrders", "strategies"},
				strategies:    []string{"join_fetch_batched", "entity_graph"},
			},
		},
		{
			name: "strategy and page from variables",
			req: graphQLRequest{
				Query: `query Paged($s: FetchStrategy, $offset: Int, $limit: Int) {
					orders(strategy: $s, offset: $offset, limit: $limit) { orderId }
				}`,
				OperationName: "Paged",
				Variables:     map[string]any{"s": "PROJECTION_BATCHED", "limit": float64(2)},
			},
			want: &queryMetadata{
				operationType: "query",
				operationName: "Paged",
				rootFields:    []string{"orders"},
				strategies:    []string{"projection_batched"},
				paged:         true,
			},
		},
		{
			name: "omitted variables keep defaults",
			req: graphQLRequest{
				Query: `query Q($s: FetchStrategy, $offset: Int) { simpleOrders(strategy: $s) { orderId } orders(offset: $offset) { orderId } }`,
			},
			want: &queryMetadata{
				operationType: "query",
				operationName: "Q",
				rootFields:    []string{"simpleOrders", "orders"},
				strategies:    []string{"entity_graph", "join_fetch_batched"},
			},
		},
		{
			name: "declared default",
			req:  graphQLRequest{Query: `query Q($s: FetchStrategy = JOIN_FETCH) { orders(strategy: $s) { orderId } }`},
			want: &queryMetadata{
				operationType: "query",
				operationName: "Q",
				rootFields:    []string{"orders"},
				strategies:    []string{"join_fetch"},
			},
		},
		{
			name: "unknown strategy",
			req: graphQLRequest{
				Query:     `query Q($s: FetchStrategy) { orders(strategy: $s) { orderId } }`,
				Variables: map[string]any{"s": "LAZY"},
			},
			want: &queryMetadata{
				operationType: "query",
				operationName: "Q",
				rootFields:    []string{"orders"},
				strategies:    []string{strategyUnknown},
			},
		},
		{
			name: "select operation by name",
			req: graphQLRequest{
				Query: `
					query A { strategies { strategy } }
					query B { simpleOrders(strategy: JOIN_FETCH) { orderId } }
				`,
				OperationName: "B",
			},
			want: &queryMetadata{
				operationType: "query",
				operationName: "B",
				rootFields:    []string{"simpleOrders"},
				strategies:    []string{"join_fetch"},
			},
		},
		{
			name: "mutation",
			req:  graphQLRequest{Query: `mutation { touch }`},
			want: &queryMetadata{
				operationType: "mutation",
				rootFields:    []string{"touch"},
			},
		},
		{
			name:    "malformed",
			req:     graphQLRequest{Query: `query { orders { `},
			wantErr: true,
		},
		{
			name: "empty",
		},
		{
			name: "unknown operation name",
			req:  graphQLRequest{Query: `query A { strategies { strategy } }`, OperationName: "Missing"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractQueryMetadata(tt.req)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractGraphQLRequestKeepsBody(t *testing.T) {
	body := `{"query":"query Q { strategies { strategy } }","operationName":"Q"}`
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	got := extractGraphQLRequest(req)
	assert.Equal(t, "query Q { strategies { strategy } }", got.Query)
	assert.Equal(t, "Q", got.OperationName)

	replayed, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(replayed))
}

func TestExtractGraphQLRequestFromQueryString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/graphql?query=%7Borders%7BorderId%7D%7D&operationName=X&variables=%7B%22s%22%3A%22FLAT%22%7D", nil)

	got := extractGraphQLRequest(req)
	assert.Equal(t, "{orders{orderId}}", got.Query)
	assert.Equal(t, "X", got.OperationName)
	assert.Equal(t, map[string]any{"s": "FLAT"}, got.Variables)
}

func TestExtractGraphQLRequestRawDocument(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader("{ strategies { strategy } }"))
	req.Header.Set("Content-Type", "application/graphql")

	got := extractGraphQLRequest(req)
	assert.Equal(t, "{ strategies { strategy } }", got.Query)
	assert.Empty(t, got.OperationName)
}
