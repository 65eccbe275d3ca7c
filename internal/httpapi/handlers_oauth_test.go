package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"

	"habittracker/internal/auth"
)

type fakeProvider struct {
	name        string
	configured  bool
	exchangeErr error
	profile     auth.OAuthProfile
	profileErr  error
}

func (p *fakeProvider) Name() string     { return p.name }
func (p *fakeProvider) Configured() bool { return p.configured }

func (p *fakeProvider) AuthURL(state string) string {
	return "https://provider.test/authorize?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(context.Context, string) (*oauth2.Token, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return &oauth2.Token{AccessToken: "access"}, nil
}

func (p *fakeProvider) FetchProfile(context.Context, *oauth2.Token) (auth.OAuthProfile, error) {
	return p.profile, p.profileErr
}

func (b *browser) get(path string) (int, string, http.Header) {
	b.t.Helper()
	resp, err := b.c.Get(b.base + path)
	if err != nil {
		b.t.Fatalf("get %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, strings.TrimSpace(string(body)), resp.Header
}

// startOAuth follows the redirect step and returns the state the provider
// would echo back.
func (b *browser) startOAuth(provider string) string {
	b.t.Helper()
	status, _, h := b.get("/api/auth/" + provider)
	if status != http.StatusFound {
		b.t.Fatalf("redirect status: %d", status)
	}
	loc, err := url.Parse(h.Get("Location"))
	if err != nil {
		b.t.Fatalf("parse location: %v", err)
	}
	state := loc.Query().Get("state")
	if state == "" {
		b.t.Fatalf("no state in %s", loc)
	}
	return state
}

func googleProfile() auth.OAuthProfile {
	return auth.OAuthProfile{ProviderUserID: "g-1", Email: "Person@Example.com", Name: "Person"}
}

func TestOAuthCallbackSignsInAndRedirects(t *testing.T) {
	app := newTestApp(t, auth.OAuthProviders{
		auth.ProviderGoogle: &fakeProvider{name: auth.ProviderGoogle, configured: true, profile: googleProfile()},
	})
	b := newBrowser(t, app.handler)

	state := b.startOAuth(auth.ProviderGoogle)
	status, _, h := b.get("/api/auth/google/callback?code=abc&state=" + url.QueryEscape(state))
	if status != http.StatusFound {
		t.Fatalf("unexpected status: %d", status)
	}
	if got := h.Get("Location"); got != "http://client.test" {
		t.Fatalf("unexpected location: %q", got)
	}

	var me userEnvelope
	if status := b.do(http.MethodGet, "/api/auth/me", nil, &me); status != http.StatusOK {
		t.Fatalf("me status: %d", status)
	}
	if me.User.Email != "person@example.com" || !me.User.EmailVerified {
		t.Fatalf("unexpected user: %+v", me.User)
	}

	// A second login through the same provider reuses the account.
	state = b.startOAuth(auth.ProviderGoogle)
	if status, _, _ := b.get("/api/auth/google/callback?code=abc&state=" + url.QueryEscape(state)); status != http.StatusFound {
		t.Fatalf("second callback status: %d", status)
	}
	var n int
	if err := app.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		t.Fatalf("count users: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one user, got %d", n)
	}
}

func TestOAuthCallbackRejectsBadRequests(t *testing.T) {
	app := newTestApp(t, auth.OAuthProviders{
		auth.ProviderGoogle: &fakeProvider{name: auth.ProviderGoogle, configured: true, profile: googleProfile()},
	})
	b := newBrowser(t, app.handler)

	status, body, _ := b.get("/api/auth/google/callback?state=x")
	if status != http.StatusBadRequest || body != "Missing authorization code" {
		t.Fatalf("missing code: %d %q", status, body)
	}

	b.startOAuth(auth.ProviderGoogle)
	status, body, _ = b.get("/api/auth/google/callback?code=abc&state=forged")
	if status != http.StatusBadRequest || body != "Invalid OAuth state" {
		t.Fatalf("state mismatch: %d %q", status, body)
	}

	status, _, _ = b.get("/api/auth/gitlab")
	if status != http.StatusNotFound {
		t.Fatalf("unknown provider: %d", status)
	}
}

func TestOAuthUnconfiguredProvider(t *testing.T) {
	app := newTestApp(t, auth.OAuthProviders{
		auth.ProviderGitHub: &fakeProvider{name: auth.ProviderGitHub},
	})
	b := newBrowser(t, app.handler)

	status, code := b.errorCode(http.MethodGet, "/api/auth/github", nil)
	if status != http.StatusInternalServerError || code != "server_error" {
		t.Fatalf("unexpected response: %d %s", status, code)
	}

	status, body, _ := b.get("/api/auth/github/callback?code=abc")
	if status != http.StatusInternalServerError || body != "Server configuration error" {
		t.Fatalf("unexpected callback response: %d %q", status, body)
	}
}

func TestOAuthCallbackStepFailures(t *testing.T) {
	tests := []struct {
		name       string
		provider   *fakeProvider
		wantStatus int
		wantBody   string
	}{
		{
			name: "exchange rejected",
			provider: &fakeProvider{exchangeErr: &auth.ProviderError{
				Provider: auth.ProviderGoogle, Op: "exchange", Err: errors.New("invalid_grant"),
			}},
			wantStatus: http.StatusBadRequest,
			wantBody:   "Failed to exchange code for token",
		},
		{
			name:       "exchange transport failure",
			provider:   &fakeProvider{exchangeErr: context.DeadlineExceeded},
			wantStatus: http.StatusInternalServerError,
			wantBody:   "OAuth error",
		},
		{
			name: "profile rejected",
			provider: &fakeProvider{profileErr: &auth.ProviderError{
				Provider: auth.ProviderGoogle, Op: "profile", Err: errors.New("401"),
			}},
			wantStatus: http.StatusBadRequest,
			wantBody:   "Failed to fetch user profile",
		},
		{
			name:       "no email",
			provider:   &fakeProvider{profile: auth.OAuthProfile{ProviderUserID: "g-1"}},
			wantStatus: http.StatusBadRequest,
			wantBody:   "Unable to determine email from Google profile",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.provider.name = auth.ProviderGoogle
			tc.provider.configured = true
			app := newTestApp(t, auth.OAuthProviders{auth.ProviderGoogle: tc.provider})
			b := newBrowser(t, app.handler)

			state := b.startOAuth(auth.ProviderGoogle)
			status, body, _ := b.get("/api/auth/google/callback?code=abc&state=" + url.QueryEscape(state))
			if status != tc.wantStatus || body != tc.wantBody {
				t.Fatalf("got %d %q, want %d %q", status, body, tc.wantStatus, tc.wantBody)
			}
			if strings.Contains(body, "invalid_grant") {
				t.Fatalf("provider detail leaked: %q", body)
			}
		})
	}
}
