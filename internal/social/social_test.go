package social

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func setupProviderServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid_token"}`))
			return
		}
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGoogle(t *testing.T) {
	srv := setupProviderServer(t, map[string]string{
		"/userinfo": `{"sub":"1234","email":"dana@gmail.com","email_verified":true,"name":"Dana","picture":"https://img/d.png"}`,
	})
	g := NewGoogle(srv.URL + "/userinfo")

	id, err := g.FetchIdentity(context.Background(), "good-token")
	if err != nil {
		t.Fatalf("FetchIdentity() error = %v", err)
	}
	if id.UID != "1234" || id.Email != "dana@gmail.com" || !id.EmailVerified || id.Username != "dana" || id.AvatarURL != "https://img/d.png" {
		t.Errorf("FetchIdentity() = %+v", id)
	}
	if len(id.Raw) == 0 {
		t.Error("Raw payload is empty")
	}

	_, err = g.FetchIdentity(context.Background(), "bad-token")
	if !errors.Is(err, ErrRejected) {
		t.Errorf("FetchIdentity(bad) error = %v, want ErrRejected", err)
	}
}

func TestGoogleMissingSubject(t *testing.T) {
	srv := setupProviderServer(t, map[string]string{"/userinfo": `{"email":"x@y"}`})
	if _, err := NewGoogle(srv.URL+"/userinfo").FetchIdentity(context.Background(), "good-token"); err == nil {
		t.Error("FetchIdentity() expected error for missing sub")
	}
}

func TestGoogleEmail(t *testing.T) {
	t.Run("unverified email is reported", func(t *testing.T) {
		srv := setupProviderServer(t, map[string]string{
			"/userinfo": `{"sub":"attacker-1","email":"victim@example.com","email_verified":false}`,
		})
		id, err := NewGoogle(srv.URL+"/userinfo").FetchIdentity(context.Background(), "good-token")
		if err != nil {
			t.Fatalf("FetchIdentity() error = %v", err)
		}
		if id.EmailVerified {
			t.Error("EmailVerified = true, want false")
		}
	})

	t.Run("missing email is rejected", func(t *testing.T) {
		srv := setupProviderServer(t, map[string]string{"/userinfo": `{"sub":"5678","name":"No Scope"}`})
		_, err := NewGoogle(srv.URL+"/userinfo").FetchIdentity(context.Background(), "good-token")
		if !errors.Is(err, ErrNoEmail) {
			t.Errorf("FetchIdentity() error = %v, want ErrNoEmail", err)
		}
	})
}

func TestGitHub(t *testing.T) {
	t.Run("public email", func(t *testing.T) {
		srv := setupProviderServer(t, map[string]string{
			"/user": `{"id":77,"login":"octo","name":"Octo Cat","email":"octo@example.com","avatar_url":"https://a/o.png"}`,
		})
		id, err := NewGitHub(srv.URL+"/").FetchIdentity(context.Background(), "good-token")
		if err != nil {
			t.Fatalf("FetchIdentity() error = %v", err)
		}
		if id.UID != "77" || id.Username != "octo" || id.Email != "octo@example.com" || !id.EmailVerified {
			t.Errorf("FetchIdentity() = %+v", id)
		}
	})

	t.Run("private email", func(t *testing.T) {
		srv := setupProviderServer(t, map[string]string{
			"/user":        `{"id":78,"login":"quiet"}`,
			"/user/emails": `[{"email":"old@example.com","primary":false,"verified":true},{"email":"quiet@example.com","primary":true,"verified":true}]`,
		})
		id, err := NewGitHub(srv.URL).FetchIdentity(context.Background(), "good-token")
		if err != nil {
			t.Fatalf("FetchIdentity() error = %v", err)
		}
		if id.Email != "quiet@example.com" {
			t.Errorf("Email = %q, want quiet@example.com", id.Email)
		}
	})

	t.Run("no verified email", func(t *testing.T) {
		srv := setupProviderServer(t, map[string]string{
			"/user":        `{"id":79,"login":"ghost"}`,
			"/user/emails": `[{"email":"ghost@example.com","primary":true,"verified":false}]`,
		})
		if _, err := NewGitHub(srv.URL).FetchIdentity(context.Background(), "good-token"); !errors.Is(err, ErrNoEmail) {
			t.Errorf("FetchIdentity() error = %v, want ErrNoEmail", err)
		}
	})

	t.Run("server error", func(t *testing.T) {
		srv := setupProviderServer(t, map[string]string{})
		_, err := NewGitHub(srv.URL).FetchIdentity(context.Background(), "good-token")
		if err == nil || errors.Is(err, ErrRejected) {
			t.Errorf("FetchIdentity() error = %v, want non-rejection error", err)
		}
	})
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(NewGoogle("http://x"), NewGitHub("http://y"))

	if got := r.Names(); len(got) != 2 || got[0] != "github" || got[1] != "google-oauth2" {
		t.Errorf("Names() = %v", got)
	}
	if p, err := r.Get("github"); err != nil || p.Name() != "github" {
		t.Errorf("Get(github) = %v, %v", p, err)
	}
	if _, err := r.Get("facebook"); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("Get(facebook) error = %v, want ErrUnknownProvider", err)
	}
}
