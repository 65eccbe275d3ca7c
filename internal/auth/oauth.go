package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"

	DefaultOAuthTimeout = 10 * time.Second
)

// OAuthProfile is the provider identity reduced to what reconciliation needs.
type OAuthProfile struct {
	ProviderUserID string
	Email          string
	Name           string
}

// OAuthProvider drives the authorization-code flow of one identity provider.
type OAuthProvider interface {
	Name() string
	Configured() bool
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	FetchProfile(ctx context.Context, tok *oauth2.Token) (OAuthProfile, error)
}

// OAuthProviders holds the enabled providers keyed by name.
type OAuthProviders map[string]OAuthProvider

// OAuthClientConfig configures one provider. The URL overrides exist so a
// provider can be pointed at a fake during tests; empty means the real
// provider endpoint.
type OAuthClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Timeout      time.Duration

	AuthURL    string
	TokenURL   string
	APIBaseURL string
}

func (c OAuthClientConfig) configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

func (c OAuthClientConfig) httpClient() *http.Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultOAuthTimeout
	}
	return &http.Client{Timeout: timeout}
}

func (c OAuthClientConfig) endpoint(def oauth2.Endpoint) oauth2.Endpoint {
	if c.AuthURL != "" {
		def.AuthURL = c.AuthURL
	}
	if c.TokenURL != "" {
		def.TokenURL = c.TokenURL
	}
	return def
}

// ProviderError means the provider answered but refused or returned something
// unusable. Transport failures are returned unwrapped instead.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func providerFailure(provider, op string, err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %s: %w", provider, op, err)
	}
	return &ProviderError{Provider: provider, Op: op, Err: err}
}

// exchange runs the code exchange through the provider's timeout-bound client.
func exchange(ctx context.Context, provider string, conf *oauth2.Config, client *http.Client, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	tok, err := conf.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, providerFailure(provider, "exchange", err)
	}
	return tok, nil
}

// bearerClient wraps base so every request carries tok.
func bearerClient(base *http.Client, tok *oauth2.Token) *http.Client {
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &http.Client{
		Timeout: base.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(tok),
			Base:   transport,
		},
	}
}
