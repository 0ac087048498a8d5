package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"

	"github.com/hmans/taskgraph/internal/auth"
	"github.com/hmans/taskgraph/internal/config"
	"github.com/hmans/taskgraph/internal/graph"
	"github.com/hmans/taskgraph/internal/store"
)

// setupCmdTest points the global config at a fresh database in a temp dir.
func setupCmdTest(t *testing.T) func() {
	t.Helper()
	dir := t.TempDir()

	testCfg := config.Default()
	testCfg.Database.DSN = "file:" + filepath.Join(dir, "test.db") + "?_pragma=foreign_keys(1)"
	testCfg.Auth.Secret = "test-secret"
	testCfg.Media.Dir = filepath.Join(dir, "media")

	oldCfg, oldLogger := cfg, logger
	cfg, logger = testCfg, zap.NewNop()

	return func() {
		cfg, logger = oldCfg, oldLogger
	}
}

// seedStore creates users and tasks before the app builds its search index.
func seedStore(t *testing.T, fn func(st *store.Store)) {
	t.Helper()
	st, err := openStore(context.Background())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()
	fn(st)
}

func createCmdTestUser(t *testing.T, st *store.Store, username string) *store.User {
	t.Helper()
	u := &store.User{Username: username, Email: username + "@example.com", IsActive: true}
	if err := st.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

func startTestApp(t *testing.T) *app {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	a, err := newApp(ctx)
	if err != nil {
		cancel()
		t.Fatalf("newApp() error = %v", err)
	}
	a.resolver.Tick = time.Millisecond
	t.Cleanup(func() {
		cancel()
		a.Close()
	})
	return a
}

func runQuery(t *testing.T, ctx context.Context, r *graph.Resolver, query string, vars map[string]any) ([][]byte, error) {
	t.Helper()
	var results [][]byte
	err := executeQuery(ctx, r, query, vars, "", func(data []byte) {
		results = append(results, append([]byte(nil), data...))
	})
	return results, err
}

func TestExecuteQuery(t *testing.T) {
	cleanup := setupCmdTest(t)
	defer cleanup()

	var alice *store.User
	seedStore(t, func(st *store.Store) {
		alice = createCmdTestUser(t, st, "alice")
		createCmdTestUser(t, st, "bob")
		for _, title := range []string{"Water the plants", "Buy groceries"} {
			if err := st.CreateTask(context.Background(), &store.Task{CreatorID: alice.ID, Title: title}); err != nil {
				t.Fatalf("failed to create task: %v", err)
			}
		}
	})
	a := startTestApp(t)

	t.Run("list users", func(t *testing.T) {
		results, err := runQuery(t, context.Background(), a.resolver, `{ allUsers { totalCount edges { node { username } } } }`, nil)
		if err != nil {
			t.Fatalf("executeQuery() error = %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("expected 1 result, got %d", len(results))
		}

		var data struct {
			AllUsers struct {
				TotalCount int `json:"totalCount"`
				Edges      []struct {
					Node struct {
						Username string `json:"username"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"allUsers"`
		}
		if err := json.Unmarshal(results[0], &data); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if data.AllUsers.TotalCount != 2 {
			t.Errorf("totalCount = %d, want 2", data.AllUsers.TotalCount)
		}
		if len(data.AllUsers.Edges) != 2 || data.AllUsers.Edges[0].Node.Username != "alice" {
			t.Errorf("unexpected edges: %+v", data.AllUsers.Edges)
		}
	})

	t.Run("variables", func(t *testing.T) {
		results, err := runQuery(t, context.Background(), a.resolver,
			`query U($name: String) { allUsers(username: $name) { totalCount } }`,
			map[string]any{"name": "bob"})
		if err != nil {
			t.Fatalf("executeQuery() error = %v", err)
		}
		if !strings.Contains(string(results[0]), `"totalCount":1`) {
			t.Errorf("unexpected result: %s", results[0])
		}
	})

	t.Run("authenticated query", func(t *testing.T) {
		token, err := a.resolver.Tokens.Issue(alice.ID, alice.Username, alice.Email)
		if err != nil {
			t.Fatalf("failed to issue token: %v", err)
		}
		ctx := auth.WithToken(context.Background(), token)

		results, err := runQuery(t, ctx, a.resolver, `{ myUserInfo { username } myAllTasks { totalCount } }`, nil)
		if err != nil {
			t.Fatalf("executeQuery() error = %v", err)
		}
		got := string(results[0])
		if !strings.Contains(got, `"username":"alice"`) || !strings.Contains(got, `"totalCount":2`) {
			t.Errorf("unexpected result: %s", got)
		}
	})

	t.Run("search uses the loaded index", func(t *testing.T) {
		results, err := runQuery(t, context.Background(), a.resolver, `{ searchTasks(query: "groceries") { totalCount edges { node { title } } } }`, nil)
		if err != nil {
			t.Fatalf("executeQuery() error = %v", err)
		}
		got := string(results[0])
		if !strings.Contains(got, `"totalCount":1`) || !strings.Contains(got, "Buy groceries") {
			t.Errorf("unexpected result: %s", got)
		}
	})

	t.Run("unauthenticated query fails with code", func(t *testing.T) {
		_, err := runQuery(t, context.Background(), a.resolver, `{ myUserInfo { username } }`, nil)
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "UNAUTHENTICATED") {
			t.Errorf("error = %q, want the UNAUTHENTICATED code", err)
		}
	})

	t.Run("invalid query", func(t *testing.T) {
		_, err := runQuery(t, context.Background(), a.resolver, `{ nope }`, nil)
		if err == nil {
			t.Fatal("expected validation error")
		}
	})

	t.Run("subscription emits every event", func(t *testing.T) {
		results, err := runQuery(t, context.Background(), a.resolver, `subscription { countSeconds(upTo: 2) }`, nil)
		if err != nil {
			t.Fatalf("executeQuery() error = %v", err)
		}
		if len(results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(results))
		}
		for i, want := range []string{"0", "1", "2"} {
			if got := string(results[i]); got != `{"countSeconds":`+want+`}` {
				t.Errorf("result %d = %s", i, got)
			}
		}
	})
}

func TestSearchIndexFollowsWriteBurst(t *testing.T) {
	cleanup := setupCmdTest(t)
	defer cleanup()

	var alice *store.User
	seedStore(t, func(st *store.Store) {
		alice = createCmdTestUser(t, st, "alice")
	})
	a := startTestApp(t)

	const n = 150
	ctx := context.Background()
	for i := 0; i < n; i++ {
		if err := a.store.CreateTask(ctx, &store.Task{CreatorID: alice.ID, Title: "burst task"}); err != nil {
			t.Fatalf("CreateTask() error = %v", err)
		}
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		count, err := a.index.Count()
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		if count == n {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("index holds %d of %d tasks", count, n)
		}
		time.Sleep(10 * time.Millisecond)
	}

	ids, err := a.index.Search("burst", n)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(ids) != n {
		t.Errorf("Search() found %d tasks, want %d", len(ids), n)
	}
}

func TestIssueToken(t *testing.T) {
	cleanup := setupCmdTest(t)
	defer cleanup()

	st, err := openStore(context.Background())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()
	u := createCmdTestUser(t, st, "carol")

	var out bytes.Buffer
	if err := issueToken(context.Background(), st, u.Email, &out); err != nil {
		t.Fatalf("issueToken() error = %v", err)
	}

	tokens, err := auth.NewTokens(cfg.Auth.Secret, cfg.Auth.Issuer, time.Hour)
	if err != nil {
		t.Fatalf("failed to create tokens: %v", err)
	}
	id, claims, err := tokens.Parse(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if id != u.ID || claims.Username != "carol" {
		t.Errorf("token for %d/%s, want %d/carol", id, claims.Username, u.ID)
	}

	t.Run("unknown email", func(t *testing.T) {
		err := issueToken(context.Background(), st, "nobody@example.com", &out)
		if err == nil || !strings.Contains(err.Error(), "no user") {
			t.Errorf("error = %v, want no user error", err)
		}
	})

	t.Run("missing secret", func(t *testing.T) {
		cfg.Auth.Secret = ""
		if err := issueToken(context.Background(), st, u.Email, &out); err == nil {
			t.Error("expected error without a secret")
		}
	})
}

func TestFormatGraphQLErrors(t *testing.T) {
	if err := formatGraphQLErrors(nil); err != nil {
		t.Errorf("formatGraphQLErrors(nil) = %v, want nil", err)
	}

	single := gqlerror.List{{Message: "boom", Extensions: map[string]any{"code": "NOT_FOUND"}}}
	if got := formatGraphQLErrors(single).Error(); got != "graphql: boom (NOT_FOUND)" {
		t.Errorf("single error = %q", got)
	}

	multi := gqlerror.List{{Message: "first"}, {Message: "second"}}
	got := formatGraphQLErrors(multi).Error()
	if !strings.HasPrefix(got, "graphql errors:") || !strings.Contains(got, "first") || !strings.Contains(got, "second") {
		t.Errorf("multiple errors = %q", got)
	}
}

func TestFormatSchema(t *testing.T) {
	schema := formatSchema(graph.NewResolver(nil))

	for _, want := range []string{"type UserNode", "type Query", "type Mutation", "type Subscription", "countSeconds"} {
		if !strings.Contains(schema, want) {
			t.Errorf("schema missing %q", want)
		}
	}
}

func TestBareToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abc.def.ghi", "abc.def.ghi"},
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"JWT abc.def.ghi", "abc.def.ghi"},
		{"  abc.def.ghi\n", "abc.def.ghi"},
	}
	for _, tt := range tests {
		if got := bareToken(tt.in); got != tt.want {
			t.Errorf("bareToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReadFromStdin(t *testing.T) {
	oldStdin := os.Stdin
	defer func() { os.Stdin = oldStdin }()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdin = r

	go func() {
		w.WriteString("  { allUsers { totalCount } }\n")
		w.Close()
	}()

	got, err := readFromStdin()
	if err != nil {
		t.Fatalf("readFromStdin() error = %v", err)
	}
	if got != "{ allUsers { totalCount } }" {
		t.Errorf("readFromStdin() = %q", got)
	}
}

func TestParseVariables(t *testing.T) {
	vars, err := parseVariables("")
	if err != nil || vars != nil {
		t.Errorf("parseVariables(\"\") = %v, %v; want nil, nil", vars, err)
	}

	vars, err = parseVariables(`{"first": 2, "name": "bob"}`)
	if err != nil {
		t.Fatalf("parseVariables() error = %v", err)
	}
	if vars["name"] != "bob" || vars["first"] != float64(2) {
		t.Errorf("parseVariables() = %v", vars)
	}

	if _, err := parseVariables(`{not json`); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestQueryTextFromArgument(t *testing.T) {
	got, err := queryText([]string{"{ allUsers { totalCount } }"})
	if err != nil {
		t.Fatalf("queryText() error = %v", err)
	}
	if got != "{ allUsers { totalCount } }" {
		t.Errorf("queryText() = %q", got)
	}
}

func TestWriteResult(t *testing.T) {
	data := []byte(`{"task":{"title":"x"}}`)

	var raw bytes.Buffer
	writeResult(&raw, data, true)
	if raw.String() != `{"task":{"title":"x"}}`+"\n" {
		t.Errorf("raw output = %q", raw.String())
	}

	var pretty bytes.Buffer
	writeResult(&pretty, data, false)
	if !strings.Contains(pretty.String(), "\n") || !strings.Contains(pretty.String(), "title") {
		t.Errorf("pretty output = %q", pretty.String())
	}
	if strings.HasSuffix(pretty.String(), "\n\n") {
		t.Errorf("pretty output has a blank trailing line: %q", pretty.String())
	}
}
