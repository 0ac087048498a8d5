package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hmans/taskgraph/internal/store"
)

type fakeUsers map[int64]*store.User

func (f fakeUsers) GetUser(_ context.Context, id int64) (*store.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func setupTokens(t *testing.T) *Tokens {
	t.Helper()
	tokens, err := NewTokens("test-secret", "taskgraph", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens() error = %v", err)
	}
	return tokens
}

func TestNewTokensValidation(t *testing.T) {
	if _, err := NewTokens("", "x", time.Hour); err == nil {
		t.Error("NewTokens() expected error for empty secret")
	}
	if _, err := NewTokens("s", "x", 0); err == nil {
		t.Error("NewTokens() expected error for zero ttl")
	}
}

func TestIssueAndParse(t *testing.T) {
	tokens := setupTokens(t)

	raw, err := tokens.Issue(42, "alice", "alice@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	id, claims, err := tokens.Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if id != 42 {
		t.Errorf("Parse() id = %d, want 42", id)
	}
	if claims.Username != "alice" || claims.Email != "alice@example.com" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.ID == "" {
		t.Error("claims.ID (jti) is empty")
	}
}

func TestParseRejects(t *testing.T) {
	tokens := setupTokens(t)

	other, _ := NewTokens("other-secret", "taskgraph", time.Hour)
	wrongSig, _ := other.Issue(1, "a", "")

	wrongIssuer, _ := NewTokens("test-secret", "someone-else", time.Hour)
	wrongIss, _ := wrongIssuer.Issue(1, "a", "")

	expiredIssuer := setupTokens(t)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _ := expiredIssuer.Issue(1, "a", "")

	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "1",
		Issuer:  "taskgraph",
	}).SignedString([]byte("test-secret"))

	badSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "abc",
		Issuer:    "taskgraph",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("test-secret"))

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "1",
		Issuer:    "taskgraph",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]string{
		"garbage":         "not.a.token",
		"wrong signature": wrongSig,
		"wrong issuer":    wrongIss,
		"expired":         expired,
		"no expiry":       noExp,
		"bad subject":     badSubject,
		"alg none":        none,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			if _, _, err := tokens.Parse(raw); err == nil {
				t.Errorf("Parse() expected error")
			}
		})
	}
}

func TestTokenFromHeader(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"JWT abc", "abc"},
		{"  Bearer   abc  ", "abc"},
		{"Basic abc", ""},
		{"abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := TokenFromHeader(tt.header); got != tt.want {
			t.Errorf("TokenFromHeader(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	var seen string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TokenFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	req.Header.Set("Authorization", "JWT tok")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "tok" {
		t.Errorf("token in context = %q, want tok", seen)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/graphql", nil))
	if seen != "" {
		t.Errorf("token in context = %q, want empty", seen)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, anonymous requests must pass", rec.Code)
	}
}

func TestAuthenticate(t *testing.T) {
	tokens := setupTokens(t)
	users := fakeUsers{
		1: {ID: 1, Username: "alice", IsActive: true},
		2: {ID: 2, Username: "inactive", IsActive: false},
	}
	a := NewAuthenticator(tokens, users)

	issue := func(id int64) string {
		raw, err := tokens.Issue(id, "", "")
		if err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
		return raw
	}

	t.Run("valid", func(t *testing.T) {
		u, err := a.Authenticate(WithToken(context.Background(), issue(1)))
		if err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		if u.Username != "alice" {
			t.Errorf("user = %q, want alice", u.Username)
		}
	})

	t.Run("preloaded user", func(t *testing.T) {
		ctx := WithUser(context.Background(), users[1])
		u, err := a.Authenticate(ctx)
		if err != nil || u.ID != 1 {
			t.Errorf("Authenticate() = %v, %v", u, err)
		}
	})

	failures := map[string]context.Context{
		"no token":     context.Background(),
		"bad token":    WithToken(context.Background(), "nope"),
		"unknown user": WithToken(context.Background(), issue(99)),
		"inactive":     WithToken(context.Background(), issue(2)),
	}
	for name, ctx := range failures {
		t.Run(name, func(t *testing.T) {
			_, err := a.Authenticate(ctx)
			if !errors.Is(err, ErrUnauthenticated) {
				t.Errorf("Authenticate() error = %v, want ErrUnauthenticated", err)
			}
		})
	}
}
