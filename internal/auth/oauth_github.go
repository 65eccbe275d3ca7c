package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubAPIBaseURL = "https://api.github.com"

// GitHubProvider implements OAuthProvider for GitHub sign-in.
type GitHubProvider struct {
	cfg        OAuthClientConfig
	conf       *oauth2.Config
	httpClient *http.Client
	apiBase    string
}

func NewGitHubProvider(cfg OAuthClientConfig) *GitHubProvider {
	apiBase := strings.TrimRight(cfg.APIBaseURL, "/")
	if apiBase == "" {
		apiBase = githubAPIBaseURL
	}
	return &GitHubProvider{
		cfg: cfg,
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"user:email"},
			Endpoint:     cfg.endpoint(github.Endpoint),
		},
		httpClient: cfg.httpClient(),
		apiBase:    apiBase,
	}
}

func (g *GitHubProvider) Name() string { return ProviderGitHub }

func (g *GitHubProvider) Configured() bool { return g.cfg.configured() }

func (g *GitHubProvider) AuthURL(state string) string {
	return g.conf.AuthCodeURL(state)
}

func (g *GitHubProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return exchange(ctx, ProviderGitHub, g.conf, g.httpClient, code)
}

type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (g *GitHubProvider) FetchProfile(ctx context.Context, tok *oauth2.Token) (OAuthProfile, error) {
	client := bearerClient(g.httpClient, tok)

	var u githubUser
	if err := g.getJSON(ctx, client, "/user", &u); err != nil {
		return OAuthProfile{}, providerFailure(ProviderGitHub, "user", err)
	}
	if u.ID == 0 {
		return OAuthProfile{}, &ProviderError{Provider: ProviderGitHub, Op: "user", Err: fmt.Errorf("missing user id")}
	}

	var emails []githubEmail
	if err := g.getJSON(ctx, client, "/user/emails", &emails); err != nil {
		return OAuthProfile{}, providerFailure(ProviderGitHub, "emails", err)
	}

	email := selectGitHubEmail(emails)
	if email == "" && len(emails) == 0 {
		email = u.Email
	}

	name := u.Name
	if name == "" {
		name = u.Login
	}
	return OAuthProfile{
		ProviderUserID: strconv.FormatInt(u.ID, 10),
		Email:          email,
		Name:           name,
	}, nil
}

// selectGitHubEmail prefers primary+verified, then any verified, then the first entry.
func selectGitHubEmail(emails []githubEmail) string {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email
		}
	}
	if len(emails) > 0 {
		return emails[0].Email
	}
	return ""
}

func (g *GitHubProvider) getJSON(ctx context.Context, client *http.Client, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiBase+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
