package graph

import (
	"context"

	"github.com/hmans/taskgraph/internal/relay"
	"github.com/hmans/taskgraph/internal/store"
)

// connectionResolver resolves the <Type>NodeConnection types.
type connectionResolver[N any] struct {
	conn *relay.Connection[N]
}

type (
	userConnection    = connectionResolver[*userResolver]
	profileConnection = connectionResolver[*profileResolver]
	taskConnection    = connectionResolver[*taskResolver]
)

func (c *connectionResolver[N]) PageInfo() *pageInfoResolver {
	return &pageInfoResolver{info: c.conn.PageInfo}
}

func (c *connectionResolver[N]) Edges() []*edgeResolver[N] {
	edges := make([]*edgeResolver[N], len(c.conn.Edges))
	for i, e := range c.conn.Edges {
		edges[i] = &edgeResolver[N]{edge: e}
	}
	return edges
}

func (c *connectionResolver[N]) TotalCount() int32 {
	return int32(c.conn.TotalCount)
}

type edgeResolver[N any] struct {
	edge relay.Edge[N]
}

func (e *edgeResolver[N]) Node() N        { return e.edge.Node }
func (e *edgeResolver[N]) Cursor() string { return e.edge.Cursor }

type pageInfoResolver struct {
	info relay.PageInfo
}

func (p *pageInfoResolver) HasNextPage() bool     { return p.info.HasNextPage }
func (p *pageInfoResolver) HasPreviousPage() bool { return p.info.HasPreviousPage }
func (p *pageInfoResolver) StartCursor() *string  { return p.info.StartCursor }
func (p *pageInfoResolver) EndCursor() *string    { return p.info.EndCursor }

// connection counts the matching rows, computes the page window selected by
// args and fetches only the rows inside it.
func connection[T any, N any](
	ctx context.Context,
	r *Resolver,
	op string,
	args relay.Args,
	count func(ctx context.Context) (int, error),
	list func(ctx context.Context, page store.Page) ([]T, error),
	wrap func(T) N,
) (*connectionResolver[N], error) {
	total, err := count(ctx)
	if err != nil {
		return nil, r.classify(ctx, op, "", err)
	}

	w, err := relay.Paginate(args, total, r.MaxLimit)
	if err != nil {
		return nil, r.classify(ctx, op, "", err)
	}

	nodes := make([]N, 0, w.Limit)
	if w.Limit > 0 {
		rows, err := list(ctx, store.Page{Offset: w.Offset, Limit: w.Limit})
		if err != nil {
			return nil, r.classify(ctx, op, "", err)
		}
		for _, row := range rows {
			nodes = append(nodes, wrap(row))
		}
	}

	return &connectionResolver[N]{conn: relay.NewConnection(w, nodes, total)}, nil
}

// Connection arguments with the filters of each list field.

type userConnectionArgs struct {
	relay.Args
	Username          *string
	UsernameIcontains *string
	Email             *string
	EmailIcontains    *string
	IsStaff           *bool
	IsSuperuser       *bool
}

func (a userConnectionArgs) filter() store.UserFilter {
	return store.UserFilter{
		Username:         a.Username,
		UsernameContains: a.UsernameIcontains,
		Email:            a.Email,
		EmailContains:    a.EmailIcontains,
		IsStaff:          a.IsStaff,
		IsSuperuser:      a.IsSuperuser,
	}
}

type profileConnectionArgs struct {
	relay.Args
	ProfileName               *string
	ProfileNameIcontains      *string
	SelfIntroduction          *string
	SelfIntroductionIcontains *string
	GithubUsername            *string
	GithubUsernameIcontains   *string
	TwitterUsername           *string
	TwitterUsernameIcontains  *string
}

func (a profileConnectionArgs) filter() store.ProfileFilter {
	return store.ProfileFilter{
		ProfileName:              a.ProfileName,
		ProfileNameContains:      a.ProfileNameIcontains,
		SelfIntroduction:         a.SelfIntroduction,
		SelfIntroductionContains: a.SelfIntroductionIcontains,
		GitHubUsername:           a.GithubUsername,
		GitHubUsernameContains:   a.GithubUsernameIcontains,
		TwitterUsername:          a.TwitterUsername,
		TwitterUsernameContains:  a.TwitterUsernameIcontains,
	}
}

type taskConnectionArgs struct {
	relay.Args
	Title          *string
	TitleIcontains *string
}

func (a taskConnectionArgs) filter() store.TaskFilter {
	return store.TaskFilter{Title: a.Title, TitleContains: a.TitleIcontains}
}

func (r *Resolver) taskConnection(ctx context.Context, op string, args relay.Args, f store.TaskFilter) (*taskConnection, error) {
	return connection(ctx, r, op, args,
		func(ctx context.Context) (int, error) { return r.Tasks.CountTasks(ctx, f) },
		func(ctx context.Context, page store.Page) ([]*store.Task, error) { return r.Tasks.ListTasks(ctx, f, page) },
		r.task,
	)
}
