package graph

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hmans/taskgraph/internal/auth"
	"github.com/hmans/taskgraph/internal/relay"
	"github.com/hmans/taskgraph/internal/social"
	"github.com/hmans/taskgraph/internal/store"
)

// Error codes reported in the "code" extension of GraphQL errors.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeNotFound        = "NOT_FOUND"
	CodeBadUserInput    = "BAD_USER_INPUT"
	CodeInternal        = "INTERNAL"
)

// Error is a resolver error carrying a machine readable code.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Extensions is read by the executor and exposed under "extensions".
func (e *Error) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.Code}
}

func authenticationError(err error) *Error {
	return &Error{Code: CodeUnauthenticated, Message: "You do not have permission to perform this action", Err: err}
}

func notFoundError(typeName string) *Error {
	return &Error{Code: CodeNotFound, Message: typeName + " matching query does not exist."}
}

func validationError(format string, args ...any) *Error {
	return &Error{Code: CodeBadUserInput, Message: fmt.Sprintf(format, args...)}
}

// internalError hides err from the client and logs it.
func (r *Resolver) internalError(ctx context.Context, op string, err error) *Error {
	r.logger().Error("resolver failed", zap.String("op", op), zap.Error(err))
	return &Error{Code: CodeInternal, Message: "internal server error", Err: err}
}

// classify maps errors from collaborators onto resolver errors.
// typeName names the entity for not-found messages.
func (r *Resolver) classify(ctx context.Context, op, typeName string, err error) error {
	if err == nil {
		return nil
	}

	var gerr *Error
	switch {
	case errors.As(err, &gerr):
		return gerr
	case errors.Is(err, store.ErrNotFound):
		return notFoundError(typeName)
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, social.ErrRejected),
		errors.Is(err, social.ErrUnverifiedEmail):
		return authenticationError(err)
	case errors.Is(err, relay.ErrMalformedID), errors.Is(err, relay.ErrTypeMismatch),
		errors.Is(err, relay.ErrInvalidPagination), errors.Is(err, social.ErrUnknownProvider),
		errors.Is(err, social.ErrNoEmail):
		return &Error{Code: CodeBadUserInput, Message: err.Error(), Err: err}
	default:
		return r.internalError(ctx, op, err)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
