package graph

import (
	"context"

	graphql "github.com/graph-gophers/graphql-go"

	"github.com/hmans/taskgraph/internal/relay"
	"github.com/hmans/taskgraph/internal/store"
)

// Relay type names.
const (
	userNode    = "UserNode"
	profileNode = "ProfileNode"
	taskNode    = "TaskNode"
	socialNode  = "SocialNode"
)

func globalID(typeName string, id int64) graphql.ID {
	return graphql.ID(relay.ToGlobalID(typeName, id))
}

// nodeResolver resolves the Node interface.
type nodeResolver struct {
	node interface{ ID() graphql.ID }
}

func (n *nodeResolver) ID() graphql.ID { return n.node.ID() }

func (n *nodeResolver) ToUserNode() (*userResolver, bool) {
	u, ok := n.node.(*userResolver)
	return u, ok
}

func (n *nodeResolver) ToProfileNode() (*profileResolver, bool) {
	p, ok := n.node.(*profileResolver)
	return p, ok
}

func (n *nodeResolver) ToTaskNode() (*taskResolver, bool) {
	t, ok := n.node.(*taskResolver)
	return t, ok
}

// userResolver resolves UserNode.
type userResolver struct {
	r *Resolver
	u *store.User
}

func (r *Resolver) user(u *store.User) *userResolver {
	return &userResolver{r: r, u: u}
}

func (u *userResolver) ID() graphql.ID       { return globalID(userNode, u.u.ID) }
func (u *userResolver) Username() string     { return u.u.Username }
func (u *userResolver) Email() string        { return u.u.Email }
func (u *userResolver) IsStaff() bool        { return u.u.IsStaff }
func (u *userResolver) IsSuperuser() bool    { return u.u.IsSuperuser }
func (u *userResolver) IsActive() bool       { return u.u.IsActive }
func (u *userResolver) DateJoined() DateTime { return newDateTime(u.u.DateJoined) }
func (u *userResolver) LastLogin() *DateTime { return newDateTimePtr(u.u.LastLogin) }

// RelatedUser returns the user's profile, or null when none exists.
func (u *userResolver) RelatedUser(ctx context.Context) (*profileResolver, error) {
	p, err := u.r.Profiles.GetProfileByUser(ctx, u.u.ID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, u.r.classify(ctx, "UserNode.relatedUser", profileNode, err)
	}
	return u.r.profile(p), nil
}

func (u *userResolver) Tasks(ctx context.Context, args taskConnectionArgs) (*taskConnection, error) {
	f := args.filter()
	f.CreatorID = &u.u.ID
	return u.r.taskConnection(ctx, "UserNode.tasks", args.Args, f)
}

// profileResolver resolves ProfileNode.
type profileResolver struct {
	r *Resolver
	p *store.Profile
}

func (r *Resolver) profile(p *store.Profile) *profileResolver {
	return &profileResolver{r: r, p: p}
}

func (p *profileResolver) ID() graphql.ID           { return globalID(profileNode, p.p.ID) }
func (p *profileResolver) ProfileName() string      { return p.p.ProfileName }
func (p *profileResolver) GoogleImageURL() string   { return p.p.GoogleImageURL }
func (p *profileResolver) SelfIntroduction() string { return p.p.SelfIntroduction }
func (p *profileResolver) GithubUsername() string   { return p.p.GitHubUsername }
func (p *profileResolver) TwitterUsername() string  { return p.p.TwitterUsername }
func (p *profileResolver) WebsiteURL() string       { return p.p.WebsiteURL }
func (p *profileResolver) CreatedAt() DateTime      { return newDateTime(p.p.CreatedAt) }
func (p *profileResolver) UpdatedAt() DateTime      { return newDateTime(p.p.UpdatedAt) }

func (p *profileResolver) ProfileImage() *string {
	return p.r.mediaURL(p.p.ProfileImage)
}

func (p *profileResolver) RelatedUser(ctx context.Context) (*userResolver, error) {
	u, err := p.r.Users.GetUser(ctx, p.p.UserID)
	if err != nil {
		return nil, p.r.classify(ctx, "ProfileNode.relatedUser", userNode, err)
	}
	return p.r.user(u), nil
}

func (p *profileResolver) FollowingUsers(ctx context.Context, args relay.Args) (*userConnection, error) {
	return connection(ctx, p.r, "ProfileNode.followingUsers", args,
		func(ctx context.Context) (int, error) { return p.r.Profiles.CountFollowing(ctx, p.p.ID) },
		func(ctx context.Context, page store.Page) ([]*store.User, error) {
			return p.r.Profiles.ListFollowing(ctx, p.p.ID, page)
		},
		p.r.user,
	)
}

func (p *profileResolver) FollowingUsersCount(ctx context.Context) (*int32, error) {
	n, err := p.r.Profiles.CountFollowing(ctx, p.p.ID)
	if err != nil {
		return nil, p.r.classify(ctx, "ProfileNode.followingUsersCount", profileNode, err)
	}
	c := int32(n)
	return &c, nil
}

// FollowedUsersCount counts profiles whose following set contains this profile's user.
func (p *profileResolver) FollowedUsersCount(ctx context.Context) (*int32, error) {
	n, err := p.r.Profiles.CountFollowers(ctx, p.p.UserID)
	if err != nil {
		return nil, p.r.classify(ctx, "ProfileNode.followedUsersCount", profileNode, err)
	}
	c := int32(n)
	return &c, nil
}

// taskResolver resolves TaskNode.
type taskResolver struct {
	r *Resolver
	t *store.Task
}

func (r *Resolver) task(t *store.Task) *taskResolver {
	return &taskResolver{r: r, t: t}
}

func (t *taskResolver) ID() graphql.ID      { return globalID(taskNode, t.t.ID) }
func (t *taskResolver) Title() string       { return t.t.Title }
func (t *taskResolver) Content() string     { return t.t.Content }
func (t *taskResolver) IsDone() bool        { return t.t.IsDone }
func (t *taskResolver) CreatedAt() DateTime { return newDateTime(t.t.CreatedAt) }
func (t *taskResolver) UpdatedAt() DateTime { return newDateTime(t.t.UpdatedAt) }

func (t *taskResolver) TaskImage() *string {
	return t.r.mediaURL(t.t.TaskImage)
}

func (t *taskResolver) CreateUser(ctx context.Context) (*userResolver, error) {
	u, err := t.r.Users.GetUser(ctx, t.t.CreatorID)
	if err != nil {
		return nil, t.r.classify(ctx, "TaskNode.createUser", userNode, err)
	}
	return t.r.user(u), nil
}

// socialResolver resolves SocialNode.
type socialResolver struct {
	r *Resolver
	a *store.SocialAccount
}

func (s *socialResolver) ID() graphql.ID     { return globalID(socialNode, s.a.ID) }
func (s *socialResolver) Provider() string   { return s.a.Provider }
func (s *socialResolver) UID() string        { return s.a.UID }
func (s *socialResolver) ExtraData() string  { return s.a.ExtraData }
func (s *socialResolver) Created() DateTime  { return newDateTime(s.a.CreatedAt) }
func (s *socialResolver) Modified() DateTime { return newDateTime(s.a.UpdatedAt) }

func (s *socialResolver) User(ctx context.Context) (*userResolver, error) {
	u, err := s.r.Users.GetUser(ctx, s.a.UserID)
	if err != nil {
		return nil, s.r.classify(ctx, "SocialNode.user", userNode, err)
	}
	return s.r.user(u), nil
}

// taskEventResolver resolves TaskEvent.
type taskEventResolver struct {
	r  *Resolver
	ev store.TaskEvent
}

func (e *taskEventResolver) Type() string {
	switch e.ev.Type {
	case store.EventCreated:
		return "CREATED"
	case store.EventUpdated:
		return "UPDATED"
	default:
		return "DELETED"
	}
}

func (e *taskEventResolver) TaskID() graphql.ID { return globalID(taskNode, e.ev.TaskID) }

func (e *taskEventResolver) Task() *taskResolver {
	if e.ev.Task == nil {
		return nil
	}
	return e.r.task(e.ev.Task)
}

func (r *Resolver) mediaURL(key *string) *string {
	if key == nil || *key == "" || r.Media == nil {
		return nil
	}
	u := r.Media.URL(*key)
	return &u
}
