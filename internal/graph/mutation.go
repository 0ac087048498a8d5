package graph

import (
	"context"
	"errors"
	"time"

	graphql "github.com/graph-gophers/graphql-go"
	"go.uber.org/zap"

	"github.com/hmans/taskgraph/internal/auth"
	"github.com/hmans/taskgraph/internal/media"
	"github.com/hmans/taskgraph/internal/relay"
	"github.com/hmans/taskgraph/internal/social"
	"github.com/hmans/taskgraph/internal/store"
)

// payload carries the clientMutationId echo shared by every mutation payload.
type payload struct {
	clientMutationID *string
}

func (p payload) ClientMutationID() *string { return p.clientMutationID }

// socialAuth

type socialAuthInput struct {
	Provider         string
	AccessToken      string
	ClientMutationID *string
}

type socialAuthPayload struct {
	payload
	social *socialResolver
	token  string
}

func (p *socialAuthPayload) Social() *socialResolver { return p.social }
func (p *socialAuthPayload) Token() *string          { return &p.token }

// SocialAuth exchanges a provider access token for an API token, creating
// the local user on first sign-in.
func (r *Resolver) SocialAuth(ctx context.Context, args struct{ Input socialAuthInput }) (*socialAuthPayload, error) {
	in := args.Input
	if r.Providers == nil || r.Tokens == nil {
		return nil, validationError("social authentication is not configured")
	}

	provider, err := r.Providers.Get(in.Provider)
	if err != nil {
		return nil, r.classify(ctx, "socialAuth", "", err)
	}
	identity, err := provider.FetchIdentity(ctx, in.AccessToken)
	if err != nil {
		return nil, r.classify(ctx, "socialAuth", "", err)
	}

	acct, user, err := r.socialAccount(ctx, provider.Name(), identity)
	if err != nil {
		return nil, r.classify(ctx, "socialAuth", userNode, err)
	}
	if !user.IsActive {
		return nil, authenticationError(auth.ErrUnauthenticated)
	}

	now := time.Now()
	if err := r.Users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, r.classify(ctx, "socialAuth", userNode, err)
	}

	token, err := r.Tokens.Issue(user.ID, user.Username, user.Email)
	if err != nil {
		return nil, r.internalError(ctx, "socialAuth", err)
	}

	r.logger().Info("social login", zap.String("provider", provider.Name()), zap.Int64("user", user.ID))
	return &socialAuthPayload{
		payload: payload{clientMutationID: in.ClientMutationID},
		social:  &socialResolver{r: r, a: acct},
		token:   token,
	}, nil
}

// socialAccount finds the account linked to identity. Unknown identities with
// a verified email are linked to the user with that email, or registered as
// a new user.
func (r *Resolver) socialAccount(ctx context.Context, provider string, id *social.Identity) (*store.SocialAccount, *store.User, error) {
	extra := "{}"
	if len(id.Raw) > 0 {
		extra = string(id.Raw)
	}

	acct, err := r.Socials.GetSocialAccount(ctx, provider, id.UID)
	switch {
	case err == nil:
		acct.ExtraData = extra
		if err := r.Socials.UpdateSocialAccountData(ctx, acct); err != nil {
			return nil, nil, err
		}
		user, err := r.Users.GetUser(ctx, acct.UserID)
		return acct, user, err
	case !isNotFound(err):
		return nil, nil, err
	}

	// New accounts take the email as the local identity, so it must be verified
	if !id.EmailVerified {
		return nil, nil, social.ErrUnverifiedEmail
	}

	acct = &store.SocialAccount{Provider: provider, UID: id.UID, ExtraData: extra}

	if id.Email != "" {
		user, err := r.Users.GetUserByEmail(ctx, id.Email)
		switch {
		case err == nil:
			acct.UserID = user.ID
			if err := r.Socials.CreateSocialAccount(ctx, acct); err != nil {
				return nil, nil, err
			}
			return acct, user, nil
		case !isNotFound(err):
			return nil, nil, err
		}
	}

	user := &store.User{Username: id.Username, Email: id.Email, IsActive: true}
	profile := &store.Profile{ProfileName: id.Name}
	if provider == social.GoogleName {
		profile.GoogleImageURL = id.AvatarURL
	}
	if err := r.Socials.RegisterSocialUser(ctx, user, profile, acct); err != nil {
		return nil, nil, err
	}
	return acct, user, nil
}

// createProfile

type createProfileInput struct {
	ProfileName      string
	ProfileImage     *Upload
	SelfIntroduction *string
	GithubUsername   *string
	TwitterUsername  *string
	ClientMutationID *string
}

type profilePayload struct {
	payload
	profile *profileResolver
}

func (p *profilePayload) Profile() *profileResolver { return p.profile }

// CreateProfile creates the caller's profile.
func (r *Resolver) CreateProfile(ctx context.Context, args struct{ Input createProfileInput }) (*profilePayload, error) {
	in := args.Input
	return gated(ctx, r, func(ctx context.Context, me *store.User) (*profilePayload, error) {
		p := &store.Profile{
			UserID:           me.ID,
			ProfileName:      in.ProfileName,
			SelfIntroduction: deref(in.SelfIntroduction),
			GitHubUsername:   deref(in.GithubUsername),
			TwitterUsername:  deref(in.TwitterUsername),
		}

		key, err := r.saveUpload(ctx, media.ProfileImages, in.ProfileImage)
		if err != nil {
			return nil, r.classify(ctx, "createProfile", "", err)
		}
		p.ProfileImage = key

		if err := r.Profiles.CreateProfile(ctx, p); err != nil {
			r.discardUpload(ctx, key)
			if errors.Is(err, store.ErrProfileExists) {
				return nil, validationError("a profile already exists for this user")
			}
			return nil, r.classify(ctx, "createProfile", profileNode, err)
		}

		return &profilePayload{payload: payload{clientMutationID: in.ClientMutationID}, profile: r.profile(p)}, nil
	})
}

// updateProfile

type updateProfileInput struct {
	ProfileName      *string
	GoogleImageURL   *string
	ProfileImage     *Upload
	SelfIntroduction *string
	GithubUsername   *string
	TwitterUsername  *string
	WebsiteURL       *string
	FollowingUsers   *[]*graphql.ID
	ClientMutationID *string
}

// UpdateProfile changes the caller's profile. Omitted fields keep their
// values and a provided followingUsers list replaces the whole set. Every
// input is validated before anything is written.
func (r *Resolver) UpdateProfile(ctx context.Context, args struct{ Input updateProfileInput }) (*profilePayload, error) {
	in := args.Input
	return gated(ctx, r, func(ctx context.Context, me *store.User) (*profilePayload, error) {
		current, err := r.Profiles.GetProfileByUser(ctx, me.ID)
		if err != nil {
			return nil, r.classify(ctx, "updateProfile", profileNode, err)
		}

		var following []int64
		if in.FollowingUsers != nil {
			following, err = r.resolveUsers(ctx, *in.FollowingUsers)
			if err != nil {
				return nil, r.classify(ctx, "updateProfile", userNode, err)
			}
		}

		key, err := r.saveUpload(ctx, media.ProfileImages, in.ProfileImage)
		if err != nil {
			return nil, r.classify(ctx, "updateProfile", "", err)
		}

		p := *current
		assign(&p.ProfileName, in.ProfileName)
		assign(&p.GoogleImageURL, in.GoogleImageURL)
		assign(&p.SelfIntroduction, in.SelfIntroduction)
		assign(&p.GitHubUsername, in.GithubUsername)
		assign(&p.TwitterUsername, in.TwitterUsername)
		assign(&p.WebsiteURL, in.WebsiteURL)
		if key != nil {
			p.ProfileImage = key
		}

		if err := r.Profiles.UpdateProfile(ctx, &p, following, in.FollowingUsers != nil); err != nil {
			r.discardUpload(ctx, key)
			return nil, r.classify(ctx, "updateProfile", profileNode, err)
		}
		if key != nil {
			r.discardUpload(ctx, current.ProfileImage)
		}

		return &profilePayload{payload: payload{clientMutationID: in.ClientMutationID}, profile: r.profile(&p)}, nil
	})
}

// resolveUsers decodes UserNode IDs and checks that every user exists.
func (r *Resolver) resolveUsers(ctx context.Context, gids []*graphql.ID) ([]int64, error) {
	ids := make([]int64, 0, len(gids))
	for _, gid := range gids {
		if gid == nil {
			return nil, validationError("followingUsers must not contain null")
		}
		id, err := relay.DecodeID(string(*gid), userNode)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	found, err := r.Users.UsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return nil, notFoundError("User")
		}
	}
	return ids, nil
}

// createTask

type createTaskInput struct {
	Title            string
	Content          *string
	TaskImage        *Upload
	ClientMutationID *string
}

type taskPayload struct {
	payload
	task *taskResolver
}

func (p *taskPayload) Task() *taskResolver { return p.task }

func (r *Resolver) CreateTask(ctx context.Context, args struct{ Input createTaskInput }) (*taskPayload, error) {
	in := args.Input
	return gated(ctx, r, func(ctx context.Context, me *store.User) (*taskPayload, error) {
		if in.Title == "" {
			return nil, validationError("title must not be empty")
		}

		key, err := r.saveUpload(ctx, media.TaskImages, in.TaskImage)
		if err != nil {
			return nil, r.classify(ctx, "createTask", "", err)
		}

		t := &store.Task{CreatorID: me.ID, Title: in.Title, Content: deref(in.Content), TaskImage: key}
		if err := r.Tasks.CreateTask(ctx, t); err != nil {
			r.discardUpload(ctx, key)
			return nil, r.classify(ctx, "createTask", taskNode, err)
		}

		return &taskPayload{payload: payload{clientMutationID: in.ClientMutationID}, task: r.task(t)}, nil
	})
}

// updateTask

type updateTaskInput struct {
	ID               graphql.ID
	Title            *string
	Content          *string
	IsDone           *bool
	TaskImage        *[]*Upload
	ClientMutationID *string
}

// UpdateTask changes the given fields of a task. Only the first file of
// taskImage is stored.
func (r *Resolver) UpdateTask(ctx context.Context, args struct{ Input updateTaskInput }) (*taskPayload, error) {
	in := args.Input
	return gated(ctx, r, func(ctx context.Context, me *store.User) (*taskPayload, error) {
		id, err := relay.DecodeID(string(in.ID), taskNode)
		if err != nil {
			return nil, r.classify(ctx, "updateTask", taskNode, err)
		}
		if in.Title != nil && *in.Title == "" {
			return nil, validationError("title must not be empty")
		}

		current, err := r.Tasks.GetTask(ctx, id)
		if err != nil {
			return nil, r.classify(ctx, "updateTask", taskNode, err)
		}

		key, err := r.saveUpload(ctx, media.TaskImages, firstUpload(in.TaskImage))
		if err != nil {
			return nil, r.classify(ctx, "updateTask", "", err)
		}

		t := *current
		assign(&t.Title, in.Title)
		assign(&t.Content, in.Content)
		assign(&t.IsDone, in.IsDone)
		if key != nil {
			t.TaskImage = key
		}

		if err := r.Tasks.UpdateTask(ctx, &t); err != nil {
			r.discardUpload(ctx, key)
			return nil, r.classify(ctx, "updateTask", taskNode, err)
		}
		if key != nil {
			r.discardUpload(ctx, current.TaskImage)
		}

		return &taskPayload{payload: payload{clientMutationID: in.ClientMutationID}, task: r.task(&t)}, nil
	})
}

// deleteTask

type deleteTaskInput struct {
	ID               graphql.ID
	ClientMutationID *string
}

// DeleteTask removes a task and returns its last stored state.
func (r *Resolver) DeleteTask(ctx context.Context, args struct{ Input deleteTaskInput }) (*taskPayload, error) {
	in := args.Input
	return gated(ctx, r, func(ctx context.Context, me *store.User) (*taskPayload, error) {
		id, err := relay.DecodeID(string(in.ID), taskNode)
		if err != nil {
			return nil, r.classify(ctx, "deleteTask", taskNode, err)
		}

		t, err := r.Tasks.DeleteTask(ctx, id)
		if err != nil {
			return nil, r.classify(ctx, "deleteTask", taskNode, err)
		}
		r.discardUpload(ctx, t.TaskImage)

		return &taskPayload{payload: payload{clientMutationID: in.ClientMutationID}, task: r.task(t)}, nil
	})
}

// saveUpload stores u and returns its key, or nil when there is no upload.
func (r *Resolver) saveUpload(ctx context.Context, prefix string, u *Upload) (*string, error) {
	if u == nil {
		return nil, nil
	}
	if r.Media == nil {
		return nil, validationError("file uploads are not enabled")
	}
	key, err := r.Media.Save(ctx, prefix, media.Upload{
		Filename:    u.Filename,
		ContentType: u.ContentType,
		Size:        u.Size,
		File:        u.File,
	})
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// discardUpload deletes a stored file that is no longer referenced.
func (r *Resolver) discardUpload(ctx context.Context, key *string) {
	if key == nil || *key == "" || r.Media == nil {
		return
	}
	if err := r.Media.Delete(ctx, *key); err != nil {
		r.logger().Warn("failed to delete media", zap.String("key", *key), zap.Error(err))
	}
}

func firstUpload(list *[]*Upload) *Upload {
	if list == nil {
		return nil
	}
	for _, u := range *list {
		if u != nil {
			return u
		}
	}
	return nil
}

func assign[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
