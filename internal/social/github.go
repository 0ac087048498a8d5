package social

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// GitHubName is the provider name of GitHub sign-in.
const GitHubName = "github"

// GitHub resolves tokens against the GitHub REST API.
type GitHub struct {
	APIURL string
}

// NewGitHub creates a GitHub provider.
func NewGitHub(apiURL string) *GitHub {
	return &GitHub{APIURL: strings.TrimRight(apiURL, "/")}
}

func (g *GitHub) Name() string { return GitHubName }

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (g *GitHub) FetchIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	var user githubUser
	raw, err := getJSON(ctx, accessToken, g.APIURL+"/user", &user)
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, errors.New("github user response has no id")
	}

	// Users with a private email need the emails endpoint
	email := user.Email
	if email == "" {
		var emails []githubEmail
		if _, err := getJSON(ctx, accessToken, g.APIURL+"/user/emails", &emails); err != nil {
			return nil, err
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				email = e.Email
				break
			}
		}
	}
	if email == "" {
		return nil, fmt.Errorf("%w: github account %s has no verified primary email", ErrNoEmail, user.Login)
	}

	// GitHub only publishes verified addresses as the profile email
	return &Identity{
		UID:           strconv.FormatInt(user.ID, 10),
		Email:         email,
		EmailVerified: true,
		Username:      user.Login,
		Name:          user.Name,
		AvatarURL:     user.AvatarURL,
		Raw:           raw,
	}, nil
}
