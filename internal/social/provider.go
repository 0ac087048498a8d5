// Package social exchanges third-party OAuth access tokens for identities.
package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"golang.org/x/oauth2"
)

var (
	// ErrUnknownProvider is returned for a provider name that is not registered.
	ErrUnknownProvider = errors.New("unknown social provider")
	// ErrRejected is returned when the provider refuses the access token.
	ErrRejected = errors.New("access token rejected by provider")
	// ErrNoEmail is returned when the provider account exposes no email address.
	ErrNoEmail = errors.New("provider account has no email address")
	// ErrUnverifiedEmail is returned when a new sign-in carries an email the
	// provider has not verified.
	ErrUnverifiedEmail = errors.New("provider email address is not verified")
)

// Identity is the remote account behind an access token.
type Identity struct {
	UID           string
	Email         string
	// EmailVerified reports whether the provider vouches for Email.
	EmailVerified bool
	Username      string // preferred local username
	Name          string
	AvatarURL     string
	Raw           json.RawMessage // provider payload, stored as extra data
}

// Provider fetches the identity an access token belongs to.
type Provider interface {
	Name() string
	FetchIdentity(ctx context.Context, accessToken string) (*Identity, error)
}

// Registry maps provider names to providers.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a registry of the given providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the named provider.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// getJSON fetches url with the access token attached and decodes the body into v.
// It returns the raw body so callers can keep the provider payload.
func getJSON(ctx context.Context, accessToken, url string, v any) ([]byte, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrRejected, strings.TrimSpace(string(body)))
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("provider returned %s", resp.Status)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return body, nil
}

// usernameFromEmail returns the local part of an email address.
func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
