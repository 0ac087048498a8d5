package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/executor"
	"github.com/99designs/gqlgen/graphql/handler/extension"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"golang.org/x/term"

	"github.com/hmans/taskgraph/internal/auth"
	"github.com/hmans/taskgraph/internal/graph"
)

var (
	queryJSON       bool
	queryVariables  string
	queryOperation  string
	queryToken      string
	querySchemaOnly bool
)

var graphqlCmd = &cobra.Command{
	Use:     "graphql <query>",
	Aliases: []string{"query"},
	Short:   "Execute a GraphQL operation against the local database",
	Long: `Execute a GraphQL query, mutation or subscription without starting a server.

The argument should be a valid GraphQL document. Subscriptions print one
result per event until the stream ends.

Usage examples:
  # List users
  taskgraph graphql '{ allUsers(first: 10) { edges { node { id username } } } }'

  # Act as a user
  taskgraph graphql --token "$(taskgraph token --email me@example.com)" '{ myAllTasks { totalCount } }'

  # Pass variables
  taskgraph graphql -v '{"id": "VGFza05vZGU6MQ=="}' 'query T($id: ID!) { task(id: $id) { title } }'

  # Read from stdin
  cat query.graphql | taskgraph graphql

  # Dump the SDL
  taskgraph graphql --schema`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if querySchemaOnly {
			fmt.Fprint(cmd.OutOrStdout(), formatSchema(graph.NewResolver(nil)))
			return nil
		}

		query, err := queryText(args)
		if err != nil {
			return err
		}
		variables, err := parseVariables(queryVariables)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if queryToken != "" {
			ctx = auth.WithToken(ctx, bareToken(queryToken))
		}

		raw := queryJSON || !term.IsTerminal(int(os.Stdout.Fd()))
		return executeQuery(ctx, a.resolver, query, variables, queryOperation, func(data []byte) {
			writeResult(cmd.OutOrStdout(), data, raw)
		})
	},
}

// queryText takes the document from the argument, falling back to stdin.
func queryText(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	q, err := readFromStdin()
	if err != nil {
		return "", err
	}
	if q == "" {
		return "", errors.New("no query given; pass it as an argument or on stdin")
	}
	return q, nil
}

func parseVariables(s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	var vars map[string]any
	if err := json.Unmarshal([]byte(s), &vars); err != nil {
		return nil, fmt.Errorf("parsing --variables: %w", err)
	}
	return vars, nil
}

// bareToken accepts a token with or without its "Bearer"/"JWT" scheme.
func bareToken(s string) string {
	if token := auth.TokenFromHeader(s); token != "" {
		return token
	}
	return strings.TrimSpace(s)
}

// readFromStdin returns piped input, or "" when stdin is a terminal.
func readFromStdin() (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return "", nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading query from stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// executeQuery runs a GraphQL operation and passes the data of every
// response to emit: once for queries and mutations, once per event for
// subscriptions. The first response carrying errors ends execution with an error.
func executeQuery(ctx context.Context, r *graph.Resolver, query string, variables map[string]any, operationName string, emit func([]byte)) error {
	exec := executor.New(graph.NewExecutableSchema(graph.Config{Resolvers: r}))
	exec.Use(extension.Introspection{})

	ctx = graphql.StartOperationTrace(ctx)
	params := &graphql.RawParams{
		Query:         query,
		Variables:     variables,
		OperationName: operationName,
	}

	opCtx, errs := exec.CreateOperationContext(ctx, params)
	if errs != nil {
		return formatGraphQLErrors(errs)
	}

	handler, ctx := exec.DispatchOperation(ctx, opCtx)
	for {
		resp := handler(ctx)
		if resp == nil {
			return nil
		}
		if len(resp.Errors) > 0 {
			return formatGraphQLErrors(resp.Errors)
		}
		emit(resp.Data)
	}
}

// formatGraphQLErrors folds a response's errors into one, keeping each code.
func formatGraphQLErrors(errs gqlerror.List) error {
	if len(errs) == 0 {
		return nil
	}

	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
		if code, ok := e.Extensions["code"].(string); ok {
			msgs[i] = fmt.Sprintf("%s (%s)", e.Message, code)
		}
	}
	if len(msgs) == 1 {
		return fmt.Errorf("graphql: %s", msgs[0])
	}
	return fmt.Errorf("graphql errors:\n  %s", strings.Join(msgs, "\n  "))
}

// writeResult prints one response. Terminals get indented, colored JSON.
func writeResult(w io.Writer, data []byte, raw bool) {
	if !raw {
		data = pretty.Color(pretty.Pretty(data), nil)
	}
	fmt.Fprintln(w, strings.TrimRight(string(data), "\n"))
}

// formatSchema renders the schema the resolvers are bound to.
func formatSchema(r *graph.Resolver) string {
	es := graph.NewExecutableSchema(graph.Config{Resolvers: r})

	var sb strings.Builder
	formatter.NewFormatter(&sb, formatter.WithIndent("  ")).FormatSchema(es.Schema())
	return sb.String()
}

func init() {
	graphqlCmd.Flags().BoolVar(&queryJSON, "json", false, "Print compact JSON even on a terminal")
	graphqlCmd.Flags().StringVarP(&queryVariables, "variables", "v", "", "Variables as a JSON object")
	graphqlCmd.Flags().StringVarP(&queryOperation, "operation", "o", "", "Operation to run when the document has several")
	graphqlCmd.Flags().StringVarP(&queryToken, "token", "t", "", "API token to authenticate as (from socialAuth or the token command)")
	graphqlCmd.Flags().BoolVar(&querySchemaOnly, "schema", false, "Print the schema SDL instead of running a query")
	rootCmd.AddCommand(graphqlCmd)
}
