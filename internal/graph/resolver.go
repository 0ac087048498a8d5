package graph

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hmans/taskgraph/internal/auth"
	"github.com/hmans/taskgraph/internal/media"
	"github.com/hmans/taskgraph/internal/search"
	"github.com/hmans/taskgraph/internal/social"
	"github.com/hmans/taskgraph/internal/store"
)

// UserRepository reads and writes users.
type UserRepository interface {
	GetUser(ctx context.Context, id int64) (*store.User, error)
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
	UsersByIDs(ctx context.Context, ids []int64) (map[int64]*store.User, error)
	CountUsers(ctx context.Context, f store.UserFilter) (int, error)
	ListUsers(ctx context.Context, f store.UserFilter, page store.Page) ([]*store.User, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

// ProfileRepository reads and writes profiles and their following sets.
type ProfileRepository interface {
	CreateProfile(ctx context.Context, p *store.Profile) error
	GetProfile(ctx context.Context, id int64) (*store.Profile, error)
	GetProfileByUser(ctx context.Context, userID int64) (*store.Profile, error)
	CountProfiles(ctx context.Context, f store.ProfileFilter) (int, error)
	ListProfiles(ctx context.Context, f store.ProfileFilter, page store.Page) ([]*store.Profile, error)
	UpdateProfile(ctx context.Context, p *store.Profile, following []int64, replaceFollowing bool) error
	CountFollowing(ctx context.Context, profileID int64) (int, error)
	CountFollowers(ctx context.Context, userID int64) (int, error)
	ListFollowing(ctx context.Context, profileID int64, page store.Page) ([]*store.User, error)
}

// TaskRepository reads and writes tasks.
type TaskRepository interface {
	CreateTask(ctx context.Context, t *store.Task) error
	GetTask(ctx context.Context, id int64) (*store.Task, error)
	CountTasks(ctx context.Context, f store.TaskFilter) (int, error)
	ListTasks(ctx context.Context, f store.TaskFilter, page store.Page) ([]*store.Task, error)
	TasksByIDs(ctx context.Context, ids []int64) (map[int64]*store.Task, error)
	UpdateTask(ctx context.Context, t *store.Task) error
	DeleteTask(ctx context.Context, id int64) (*store.Task, error)
}

// SocialRepository links users to provider accounts.
type SocialRepository interface {
	GetSocialAccount(ctx context.Context, provider, uid string) (*store.SocialAccount, error)
	CreateSocialAccount(ctx context.Context, a *store.SocialAccount) error
	RegisterSocialUser(ctx context.Context, u *store.User, p *store.Profile, a *store.SocialAccount) error
	UpdateSocialAccountData(ctx context.Context, a *store.SocialAccount) error
}

// TaskEventSource publishes committed task changes.
type TaskEventSource interface {
	Subscribe() (<-chan store.TaskEvent, func())
}

// Resolver is the root resolver for the GraphQL schema.
type Resolver struct {
	Users    UserRepository
	Profiles ProfileRepository
	Tasks    TaskRepository
	Socials  SocialRepository
	Events   TaskEventSource

	Auth      *auth.Authenticator
	Tokens    *auth.Tokens
	Providers *social.Registry
	Media     media.Storage
	Search    *search.Index // nil disables searchTasks

	Logger *zap.Logger

	// MaxLimit caps and defaults the page size of every connection.
	MaxLimit int
	// Tick is the countSeconds interval.
	Tick time.Duration
}

// NewResolver creates a resolver backed by st for every repository.
func NewResolver(st *store.Store) *Resolver {
	return &Resolver{
		Users:    st,
		Profiles: st,
		Tasks:    st,
		Socials:  st,
		Events:   st,
		MaxLimit: 100,
		Tick:     time.Second,
	}
}

func (r *Resolver) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// gated runs fn with the authenticated caller, which is also placed in the
// context. Without a valid credential fn never runs.
func gated[T any](ctx context.Context, r *Resolver, fn func(ctx context.Context, me *store.User) (T, error)) (T, error) {
	var zero T
	if r.Auth == nil {
		return zero, authenticationError(auth.ErrUnauthenticated)
	}
	me, err := r.Auth.Authenticate(ctx)
	if err != nil {
		return zero, r.classify(ctx, "authenticate", "User", err)
	}
	return fn(auth.WithUser(ctx, me), me)
}
