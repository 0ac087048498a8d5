package graph

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	gql "github.com/99designs/gqlgen/graphql"
	graphql "github.com/graph-gophers/graphql-go"
	gqlerrors "github.com/graph-gophers/graphql-go/errors"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"
)

//go:embed schema.graphql
var schemaSDL string

// SDL returns the schema in GraphQL schema definition language.
func SDL() string { return schemaSDL }

// Config configures NewExecutableSchema.
type Config struct {
	Resolvers *Resolver
}

// executableSchema serves gqlgen transports. gqlgen parses and validates
// each operation against the schema; resolution is done by a graph-gophers
// schema bound to the resolver tree.
type executableSchema struct {
	schema  *ast.Schema
	full    *graphql.Schema
	private *graphql.Schema // introspection disabled
	log     *zap.Logger
}

// NewExecutableSchema binds the resolvers to the schema. It panics when a
// resolver does not match the schema.
func NewExecutableSchema(cfg Config) gql.ExecutableSchema {
	r := cfg.Resolvers
	opts := []graphql.SchemaOpt{
		graphql.UseFieldResolvers(),
		graphql.Logger(panicLogger{log: r.logger()}),
	}

	return &executableSchema{
		schema:  gqlparser.MustLoadSchema(&ast.Source{Name: "schema.graphql", Input: schemaSDL}),
		full:    graphql.MustParseSchema(schemaSDL, r, opts...),
		private: graphql.MustParseSchema(schemaSDL, r, append(opts, graphql.DisableIntrospection())...),
		log:     r.logger(),
	}
}

func (e *executableSchema) Schema() *ast.Schema {
	return e.schema
}

func (e *executableSchema) Complexity(ctx context.Context, typeName, field string, childComplexity int, args map[string]any) (int, bool) {
	return 0, false
}

func (e *executableSchema) Exec(ctx context.Context) gql.ResponseHandler {
	opCtx := gql.GetOperationContext(ctx)

	schema := e.full
	if opCtx.DisableIntrospection {
		schema = e.private
	}
	vars := normalizeVariables(opCtx.Variables)

	if opCtx.Operation != nil && opCtx.Operation.Operation == ast.Subscription {
		return e.subscribe(schema, opCtx, vars)
	}

	var once sync.Once
	return func(ctx context.Context) *gql.Response {
		var resp *gql.Response
		once.Do(func() {
			resp = convertResponse(schema.Exec(ctx, opCtx.RawQuery, opCtx.OperationName, vars))
		})
		return resp
	}
}

func (e *executableSchema) subscribe(schema *graphql.Schema, opCtx *gql.OperationContext, vars map[string]any) gql.ResponseHandler {
	var (
		started bool
		done    bool
		stream  <-chan interface{}
	)

	return func(ctx context.Context) *gql.Response {
		if done {
			return nil
		}
		if !started {
			started = true
			var err error
			stream, err = schema.Subscribe(ctx, opCtx.RawQuery, opCtx.OperationName, vars)
			if err != nil {
				done = true
				return &gql.Response{Errors: gqlerror.List{gqlerror.Errorf("%s", err.Error())}}
			}
		}

		select {
		case <-ctx.Done():
			done = true
			return nil
		case v, ok := <-stream:
			if !ok {
				done = true
				return nil
			}
			resp, ok := v.(*graphql.Response)
			if !ok {
				e.log.Error("unexpected subscription value", zap.String("type", fmt.Sprintf("%T", v)))
				return nil
			}
			return convertResponse(resp)
		}
	}
}

func convertResponse(resp *graphql.Response) *gql.Response {
	out := &gql.Response{Data: resp.Data, Extensions: resp.Extensions}
	for _, qe := range resp.Errors {
		out.Errors = append(out.Errors, convertError(qe))
	}
	return out
}

func convertError(qe *gqlerrors.QueryError) *gqlerror.Error {
	err := &gqlerror.Error{
		Message:    qe.Message,
		Extensions: qe.Extensions,
		Rule:       qe.Rule,
		Err:        qe.ResolverError,
	}
	for _, loc := range qe.Locations {
		err.Locations = append(err.Locations, gqlerror.Location{Line: loc.Line, Column: loc.Column})
	}
	for _, p := range qe.Path {
		switch v := p.(type) {
		case string:
			err.Path = append(err.Path, ast.PathName(v))
		case int:
			err.Path = append(err.Path, ast.PathIndex(v))
		}
	}
	return err
}

// normalizeVariables converts decoded JSON numbers to float64, the
// representation the resolver runtime coerces from. Uploads pass through.
func normalizeVariables(vars map[string]any) map[string]any {
	if vars == nil {
		return nil
	}
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch v := v.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return v.String()
		}
		return f
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case map[string]any:
		return normalizeVariables(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}

type panicLogger struct {
	log *zap.Logger
}

func (l panicLogger) LogPanic(ctx context.Context, value interface{}) {
	l.log.Error("panic while resolving", zap.Any("panic", value), zap.Stack("stack"))
}
