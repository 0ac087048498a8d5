package graph

import (
	"context"

	graphql "github.com/graph-gophers/graphql-go"

	"github.com/hmans/taskgraph/internal/relay"
	"github.com/hmans/taskgraph/internal/store"
)

type idArgs struct {
	ID graphql.ID
}

// Node resolves any UserNode, ProfileNode or TaskNode by global ID.
func (r *Resolver) Node(ctx context.Context, args idArgs) (*nodeResolver, error) {
	typeName, id, err := relay.FromGlobalID(string(args.ID))
	if err != nil {
		return nil, r.classify(ctx, "node", "", err)
	}

	switch typeName {
	case userNode:
		u, err := r.Users.GetUser(ctx, id)
		if err != nil {
			return nil, r.classify(ctx, "node", userNode, err)
		}
		return &nodeResolver{node: r.user(u)}, nil
	case profileNode:
		p, err := r.Profiles.GetProfile(ctx, id)
		if err != nil {
			return nil, r.classify(ctx, "node", profileNode, err)
		}
		return &nodeResolver{node: r.profile(p)}, nil
	case taskNode:
		t, err := r.Tasks.GetTask(ctx, id)
		if err != nil {
			return nil, r.classify(ctx, "node", taskNode, err)
		}
		return &nodeResolver{node: r.task(t)}, nil
	default:
		return nil, validationError("unknown node type %q", typeName)
	}
}

func (r *Resolver) User(ctx context.Context, args idArgs) (*userResolver, error) {
	id, err := relay.DecodeID(string(args.ID), userNode)
	if err != nil {
		return nil, r.classify(ctx, "user", userNode, err)
	}
	u, err := r.Users.GetUser(ctx, id)
	if err != nil {
		return nil, r.classify(ctx, "user", userNode, err)
	}
	return r.user(u), nil
}

func (r *Resolver) AllUsers(ctx context.Context, args userConnectionArgs) (*userConnection, error) {
	f := args.filter()
	return connection(ctx, r, "allUsers", args.Args,
		func(ctx context.Context) (int, error) { return r.Users.CountUsers(ctx, f) },
		func(ctx context.Context, page store.Page) ([]*store.User, error) { return r.Users.ListUsers(ctx, f, page) },
		r.user,
	)
}

// MyUserInfo returns the authenticated caller.
func (r *Resolver) MyUserInfo(ctx context.Context) (*userResolver, error) {
	return gated(ctx, r, func(ctx context.Context, me *store.User) (*userResolver, error) {
		return r.user(me), nil
	})
}

func (r *Resolver) Profile(ctx context.Context, args idArgs) (*profileResolver, error) {
	id, err := relay.DecodeID(string(args.ID), profileNode)
	if err != nil {
		return nil, r.classify(ctx, "profile", profileNode, err)
	}
	p, err := r.Profiles.GetProfile(ctx, id)
	if err != nil {
		return nil, r.classify(ctx, "profile", profileNode, err)
	}
	return r.profile(p), nil
}

// MyProfile returns the authenticated caller's profile.
func (r *Resolver) MyProfile(ctx context.Context) (*profileResolver, error) {
	return gated(ctx, r, func(ctx context.Context, me *store.User) (*profileResolver, error) {
		p, err := r.Profiles.GetProfileByUser(ctx, me.ID)
		if err != nil {
			return nil, r.classify(ctx, "myProfile", profileNode, err)
		}
		return r.profile(p), nil
	})
}

func (r *Resolver) AllProfiles(ctx context.Context, args profileConnectionArgs) (*profileConnection, error) {
	f := args.filter()
	return connection(ctx, r, "allProfiles", args.Args,
		func(ctx context.Context) (int, error) { return r.Profiles.CountProfiles(ctx, f) },
		func(ctx context.Context, page store.Page) ([]*store.Profile, error) {
			return r.Profiles.ListProfiles(ctx, f, page)
		},
		r.profile,
	)
}

func (r *Resolver) Task(ctx context.Context, args idArgs) (*taskResolver, error) {
	id, err := relay.DecodeID(string(args.ID), taskNode)
	if err != nil {
		return nil, r.classify(ctx, "task", taskNode, err)
	}
	t, err := r.Tasks.GetTask(ctx, id)
	if err != nil {
		return nil, r.classify(ctx, "task", taskNode, err)
	}
	return r.task(t), nil
}

// MyAllTasks lists tasks created by the authenticated caller.
func (r *Resolver) MyAllTasks(ctx context.Context, args taskConnectionArgs) (*taskConnection, error) {
	return gated(ctx, r, func(ctx context.Context, me *store.User) (*taskConnection, error) {
		f := args.filter()
		f.CreatorID = &me.ID
		return r.taskConnection(ctx, "myAllTasks", args.Args, f)
	})
}

type searchTasksArgs struct {
	relay.Args
	Query string
}

// SearchTasks pages through full-text search hits in relevance order.
func (r *Resolver) SearchTasks(ctx context.Context, args searchTasksArgs) (*taskConnection, error) {
	if r.Search == nil {
		return nil, validationError("search is not enabled")
	}

	ids, err := r.Search.Search(args.Query, 0)
	if err != nil {
		return nil, validationError("invalid search query: %v", err)
	}

	return connection(ctx, r, "searchTasks", args.Args,
		func(context.Context) (int, error) { return len(ids), nil },
		func(ctx context.Context, page store.Page) ([]*store.Task, error) {
			window := ids[min(page.Offset, len(ids)):min(page.Offset+page.Limit, len(ids))]
			found, err := r.Tasks.TasksByIDs(ctx, window)
			if err != nil {
				return nil, err
			}
			// Keep index order; hits deleted since indexing are skipped
			tasks := make([]*store.Task, 0, len(window))
			for _, id := range window {
				if t, ok := found[id]; ok {
					tasks = append(tasks, t)
				}
			}
			return tasks, nil
		},
		r.task,
	)
}
