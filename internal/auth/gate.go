package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/hmans/taskgraph/internal/store"
)

// ErrUnauthenticated is returned when a request carries no valid credential.
var ErrUnauthenticated = errors.New("authentication credentials were not provided or are invalid")

// UserFinder loads users by ID.
type UserFinder interface {
	GetUser(ctx context.Context, id int64) (*store.User, error)
}

// Authenticator resolves the current user from the credential in a context.
type Authenticator struct {
	tokens *Tokens
	users  UserFinder
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(tokens *Tokens, users UserFinder) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Authenticate verifies the context's credential and loads its user.
// A user already placed in the context by WithUser is returned as is.
// Every failure wraps ErrUnauthenticated except storage errors.
func (a *Authenticator) Authenticate(ctx context.Context) (*store.User, error) {
	if u := UserFromContext(ctx); u != nil {
		return u, nil
	}

	raw := TokenFromContext(ctx)
	if raw == "" {
		return nil, ErrUnauthenticated
	}

	userID, _, err := a.tokens.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	u, err := a.users.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: user %d no longer exists", ErrUnauthenticated, userID)
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, fmt.Errorf("%w: user %d is inactive", ErrUnauthenticated, userID)
	}

	return u, nil
}

// WithUser stores an authenticated user in the context.
func WithUser(ctx context.Context, u *store.User) context.Context {
	return context.WithValue(ctx, contextKeyUser, u)
}

// UserFromContext returns the user stored by WithUser, or nil.
func UserFromContext(ctx context.Context) *store.User {
	u, _ := ctx.Value(contextKeyUser).(*store.User)
	return u
}
