package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const (
	contextKeyToken contextKey = "token"
	contextKeyUser  contextKey = "user"
)

// WithToken stores a raw bearer credential in the context.
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, contextKeyToken, token)
}

// TokenFromContext returns the raw credential stored by WithToken.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(contextKeyToken).(string)
	return token
}

// TokenFromHeader extracts the credential from an Authorization header value.
// Both "Bearer <token>" and "JWT <token>" are accepted; anything else yields "".
func TokenFromHeader(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok {
		return ""
	}
	switch strings.ToLower(scheme) {
	case "bearer", "jwt":
		return strings.TrimSpace(token)
	default:
		return ""
	}
}

// Middleware copies the request's bearer credential into its context.
// Requests without a usable header pass through unchanged; verification
// happens only when a resolver asks for the current user.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := TokenFromHeader(r.Header.Get("Authorization")); token != "" {
			r = r.WithContext(WithToken(r.Context(), token))
		}
		next.ServeHTTP(w, r)
	})
}
