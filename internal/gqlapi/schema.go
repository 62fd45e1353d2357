// Package gqlapi exposes the fetch strategies through a GraphQL schema.
package gqlapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ordergraph/internal/domain"
	"ordergraph/internal/planner"
	"ordergraph/internal/resolver"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"
)

// OrderReader is the subset of the resolver the schema calls.
type OrderReader interface {
	Resolve(ctx context.Context, req resolver.Request) ([]resolver.OrderSummary, error)
	ResolveSimple(ctx context.Context, req resolver.Request) ([]resolver.SimpleOrderSummary, error)
	GetOrder(ctx context.Context, id int64) (domain.Order, error)
	Options() resolver.Options
}

var strategyEnum = graphql.NewEnum(graphql.EnumConfig{
	Name:        "FetchStrategy",
	Description: "How the order aggregate is loaded.",
	Values: graphql.EnumValueConfigMap{
		"ENTITY_GRAPH":       &graphql.EnumValueConfig{Value: resolver.StrategyEntityGraph},
		"JOIN_FETCH":         &graphql.EnumValueConfig{Value: resolver.StrategyJoinFetch},
		"JOIN_FETCH_BATCHED": &graphql.EnumValueConfig{Value: resolver.StrategyJoinFetchBatched},
		"PROJECTION":         &graphql.EnumValueConfig{Value: resolver.StrategyProjection},
		"PROJECTION_BATCHED": &graphql.EnumValueConfig{Value: resolver.StrategyProjectionBatched},
		"FLAT":               &graphql.EnumValueConfig{Value: resolver.StrategyFlat},
	},
})

var orderStatusEnum = graphql.NewEnum(graphql.EnumConfig{
	Name: "OrderStatus",
	Values: graphql.EnumValueConfigMap{
		"ORDERED":  &graphql.EnumValueConfig{Value: domain.OrderStatusOrdered},
		"CANCELED": &graphql.EnumValueConfig{Value: domain.OrderStatusCanceled},
	},
})

var addressType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Address",
	Fields: graphql.Fields{
		"city":    &graphql.Field{Type: graphql.String},
		"street":  &graphql.Field{Type: graphql.String},
		"zipcode": &graphql.Field{Type: graphql.String},
	},
})

var orderItemType = graphql.NewObject(graphql.ObjectConfig{
	Name: "OrderItem",
	Fields: graphql.Fields{
		"itemName":   &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"orderPrice": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"count":      &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
	},
})

func rootFields() graphql.Fields {
	return graphql.Fields{
		"orderId":     &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"memberName":  &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"orderDate":   &graphql.Field{Type: graphql.DateTime},
		"orderStatus": &graphql.Field{Type: orderStatusEnum},
		"address":     &graphql.Field{Type: addressType},
	}
}

var orderType = graphql.NewObject(graphql.ObjectConfig{
	Name:        "Order",
	Description: "An order with its lines.",
	Fields: func() graphql.Fields {
		fields := rootFields()
		fields["orderItems"] = &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(orderItemType)))}
		return fields
	}(),
})

var simpleOrderType = graphql.NewObject(graphql.ObjectConfig{
	Name:        "SimpleOrder",
	Description: "An order with its member and delivery only.",
	Fields:      rootFields(),
})

var strategyInfoType = graphql.NewObject(graphql.ObjectConfig{
	Name: "StrategyInfo",
	Fields: graphql.Fields{
		"strategy":   &graphql.Field{Type: graphql.NewNonNull(strategyEnum)},
		"roundTrips": &graphql.Field{Type: graphql.String},
		"dedup":      &graphql.Field{Type: graphql.Boolean},
		"pageable":   &graphql.Field{Type: graphql.Boolean},
		"simple":     &graphql.Field{Type: graphql.Boolean},
		"notes":      &graphql.Field{Type: graphql.String},
	},
})

func searchArgs() graphql.FieldConfigArgument {
	return graphql.FieldConfigArgument{
		"strategy":   &graphql.ArgumentConfig{Type: strategyEnum},
		"status":     &graphql.ArgumentConfig{Type: orderStatusEnum},
		"memberName": &graphql.ArgumentConfig{Type: graphql.String},
	}
}

var defaultStrategies = map[string]resolver.Strategy{
	"orders":       resolver.StrategyJoinFetchBatched,
	"simpleOrders": resolver.StrategyEntityGraph,
}

// DefaultStrategy reports the strategy a root field uses when no strategy argument is given.
// Only fields that take a strategy argument are reported.
func DefaultStrategy(field string) (resolver.Strategy, bool) {
	s, ok := defaultStrategies[field]
	return s, ok
}

// BuildSchema assembles the query schema over reader.
func BuildSchema(reader OrderReader) (graphql.Schema, error) {
	if reader == nil {
		return graphql.Schema{}, fmt.Errorf("order reader is required")
	}

	defaultLimit := reader.Options().DefaultPageLimit
	if defaultLimit <= 0 {
		defaultLimit = planner.DefaultPageLimit
	}

	ordersArgs := searchArgs()
	ordersArgs["offset"] = &graphql.ArgumentConfig{Type: graphql.Int}
	ordersArgs["limit"] = &graphql.ArgumentConfig{Type: graphql.Int}

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"orders": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(orderType))),
				Description: "Orders with their lines. Offset and limit apply only to pageable strategies.",
				Args:        ordersArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					req := requestFromArgs(p.Args, defaultStrategies["orders"], defaultLimit)
					summaries, err := reader.Resolve(p.Context, req)
					if err != nil {
						return nil, toGraphQLError(err)
					}
					return nonNil(summaries), nil
				},
			},
			"simpleOrders": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(simpleOrderType))),
				Description: "Orders with to-one relations only.",
				Args:        searchArgs(),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					req := requestFromArgs(p.Args, defaultStrategies["simpleOrders"], defaultLimit)
					summaries, err := reader.ResolveSimple(p.Context, req)
					if err != nil {
						return nil, toGraphQLError(err)
					}
					return nonNil(summaries), nil
				},
			},
			"order": &graphql.Field{
				Type: orderType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, _ := p.Args["id"].(int)
					order, err := reader.GetOrder(p.Context, int64(id))
					if err != nil {
						var notFound *domain.NotFoundError
						if errors.As(err, &notFound) {
							return nil, nil
						}
						return nil, toGraphQLError(err)
					}
					summary, err := resolver.MapOrderSummary(order)
					if err != nil {
						return nil, toGraphQLError(err)
					}
					return summary, nil
				},
			},
			"strategies": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(strategyInfoType))),
				Resolve: func(graphql.ResolveParams) (interface{}, error) {
					return resolver.Strategies(), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: query})
}

func requestFromArgs(args map[string]interface{}, fallback resolver.Strategy, defaultLimit int) resolver.Request {
	req := resolver.Request{Strategy: fallback}
	if strategy, ok := args["strategy"].(resolver.Strategy); ok {
		req.Strategy = strategy
	}
	if status, ok := args["status"].(domain.OrderStatus); ok {
		req.Search.Status = &status
	}
	if name, ok := args["memberName"].(string); ok {
		req.Search.MemberName = name
	}

	offset, hasOffset := args["offset"].(int)
	limit, hasLimit := args["limit"].(int)
	if hasOffset || hasLimit {
		page := planner.Page{Offset: offset, Limit: limit}
		if !hasLimit {
			page.Limit = defaultLimit
		}
		req.Page = &page
	}
	return req
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// fieldError carries the error kind to clients as extensions.code.
type fieldError struct {
	err  error
	kind domain.ErrorKind
}

func (e *fieldError) Error() string {
	if e.kind == domain.KindStore || e.kind == domain.KindInternal {
		return "order lookup failed"
	}
	return e.err.Error()
}

func (e *fieldError) Unwrap() error {
	return e.err
}

func (e *fieldError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": string(e.kind)}
}

func toGraphQLError(err error) error {
	return &fieldError{err: err, kind: domain.Classify(err)}
}

// Options configures the GraphQL HTTP handler.
type Options struct {
	GraphiQL bool
	Pretty   bool
}

// NewHandler serves the schema over HTTP.
func NewHandler(reader OrderReader, opts Options) (http.Handler, error) {
	schema, err := BuildSchema(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build GraphQL schema: %w", err)
	}
	return handler.New(&handler.Config{
		Schema:   &schema,
		Pretty:   opts.Pretty,
		GraphiQL: opts.GraphiQL,
	}), nil
}
