package social

import (
	"context"
	"errors"
	"fmt"
)

// GoogleName is the provider name of Google sign-in.
const GoogleName = "google-oauth2"

// Google resolves tokens against the OpenID Connect userinfo endpoint.
type Google struct {
	UserInfoURL string
}

// NewGoogle creates a Google provider.
func NewGoogle(userInfoURL string) *Google {
	return &Google{UserInfoURL: userInfoURL}
}

func (g *Google) Name() string { return GoogleName }

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (g *Google) FetchIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	var info googleUserInfo
	raw, err := getJSON(ctx, accessToken, g.UserInfoURL, &info)
	if err != nil {
		return nil, err
	}
	if info.Sub == "" {
		return nil, errors.New("google userinfo response has no subject")
	}
	// Token was granted without the email scope
	if info.Email == "" {
		return nil, fmt.Errorf("%w: google account %s", ErrNoEmail, info.Sub)
	}

	return &Identity{
		UID:           info.Sub,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Username:      usernameFromEmail(info.Email),
		Name:          info.Name,
		AvatarURL:     info.Picture,
		Raw:           raw,
	}, nil
}
