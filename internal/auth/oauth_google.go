package auth

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// GoogleProvider implements OAuthProvider for Google sign-in.
type GoogleProvider struct {
	cfg        OAuthClientConfig
	conf       *oauth2.Config
	httpClient *http.Client
}

func NewGoogleProvider(cfg OAuthClientConfig) *GoogleProvider {
	return &GoogleProvider{
		cfg: cfg,
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     cfg.endpoint(google.Endpoint),
		},
		httpClient: cfg.httpClient(),
	}
}

func (g *GoogleProvider) Name() string { return ProviderGoogle }

func (g *GoogleProvider) Configured() bool { return g.cfg.configured() }

func (g *GoogleProvider) AuthURL(state string) string {
	return g.conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

func (g *GoogleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return exchange(ctx, ProviderGoogle, g.conf, g.httpClient, code)
}

func (g *GoogleProvider) FetchProfile(ctx context.Context, tok *oauth2.Token) (OAuthProfile, error) {
	opts := []option.ClientOption{option.WithHTTPClient(bearerClient(g.httpClient, tok))}
	if g.cfg.APIBaseURL != "" {
		opts = append(opts, option.WithEndpoint(g.cfg.APIBaseURL))
	}
	svc, err := googleoauth2.NewService(ctx, opts...)
	if err != nil {
		return OAuthProfile{}, providerFailure(ProviderGoogle, "userinfo client", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return OAuthProfile{}, providerFailure(ProviderGoogle, "userinfo", err)
	}

	name := info.Name
	if name == "" {
		name = info.GivenName
	}
	return OAuthProfile{
		ProviderUserID: info.Id,
		Email:          info.Email,
		Name:           name,
	}, nil
}
