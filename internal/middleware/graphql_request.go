package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"ordergraph/internal/gqlapi"
	"ordergraph/internal/resolver"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
)

// maxGraphQLBody bounds how much of a POST body is buffered for inspection.
const maxGraphQLBody = 1 << 20

// strategyUnknown tags selections whose strategy argument names no strategy.
const strategyUnknown = "unknown"

type graphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

// queryMetadata describes which order reads a GraphQL request will run.
type queryMetadata struct {
	operationType string
	operationName string
	rootFields    []string
	// strategies holds one entry per orders or simpleOrders selection, in document order.
	strategies []string
	paged      bool
}

// extractGraphQLRequest reads the request payload without consuming the body.
func extractGraphQLRequest(r *http.Request) graphQLRequest {
	switch r.Method {
	case http.MethodGet:
		values := r.URL.Query()
		req := graphQLRequest{Query: values.Get("query"), OperationName: values.Get("operationName")}
		if raw := values.Get("variables"); raw != "" {
			_ = json.Unmarshal([]byte(raw), &req.Variables)
		}
		return req
	case http.MethodPost:
	default:
		return graphQLRequest{}
	}
	if r.Body == nil {
		return graphQLRequest{}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxGraphQLBody))
	if err != nil {
		return graphQLRequest{}
	}
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), r.Body))

	if strings.Contains(r.Header.Get("Content-Type"), "application/graphql") {
		return graphQLRequest{Query: string(body)}
	}

	var payload graphQLRequest
	if err := json.Unmarshal(body, &payload); err != nil {
		return graphQLRequest{}
	}
	return payload
}

func extractQueryMetadata(req graphQLRequest) (*queryMetadata, error) {
	if req.Query == "" {
		return nil, nil
	}

	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{
			Body: []byte(req.Query),
			Name: "graphql",
		}),
	})
	if err != nil {
		return nil, err
	}

	op := selectOperation(doc, req.OperationName)
	if op == nil {
		return nil, nil
	}

	meta := &queryMetadata{operationType: op.Operation}
	if op.Name != nil {
		meta.operationName = op.Name.Value
	}
	if op.SelectionSet == nil {
		return meta, nil
	}

	variables := variableValues(op, req.Variables)
	for _, selection := range op.SelectionSet.Selections {
		field, ok := selection.(*ast.Field)
		if !ok {
			continue
		}
		meta.rootFields = append(meta.rootFields, field.Name.Value)

		strategy, ok := gqlapi.DefaultStrategy(field.Name.Value)
		if !ok {
			continue
		}
		tag := string(strategy)
		for _, arg := range field.Arguments {
			switch arg.Name.Value {
			case "strategy":
				tag = strategyTag(arg.Value, variables, tag)
			case "offset", "limit":
				if argumentSet(arg.Value, variables) {
					meta.paged = true
				}
			}
		}
		meta.strategies = append(meta.strategies, tag)
	}

	return meta, nil
}

// selectOperation picks the named operation, or the first one when no name is given.
func selectOperation(doc *ast.Document, operationName string) *ast.OperationDefinition {
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok {
			continue
		}
		if operationName == "" {
			return op
		}
		if op.Name != nil && op.Name.Value == operationName {
			return op
		}
	}
	return nil
}

// variableValues merges declared defaults with the supplied variables.
func variableValues(op *ast.OperationDefinition, supplied map[string]any) map[string]any {
	values := make(map[string]any, len(op.VariableDefinitions))
	for _, def := range op.VariableDefinitions {
		if def.Variable == nil || def.Variable.Name == nil || def.DefaultValue == nil {
			continue
		}
		values[def.Variable.Name.Value] = def.DefaultValue.GetValue()
	}
	for name, value := range supplied {
		values[name] = value
	}
	return values
}

// strategyTag resolves a strategy argument. An omitted variable keeps fallback.
func strategyTag(value ast.Value, variables map[string]any, fallback string) string {
	var raw string
	switch v := value.(type) {
	case *ast.EnumValue:
		raw = v.Value
	case *ast.Variable:
		raw, _ = variables[v.Name.Value].(string)
	}
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	strategy, err := resolver.ParseStrategy(raw)
	if err != nil {
		return strategyUnknown
	}
	return string(strategy)
}

func argumentSet(value ast.Value, variables map[string]any) bool {
	if v, ok := value.(*ast.Variable); ok {
		return variables[v.Name.Value] != nil
	}
	return value != nil
}
