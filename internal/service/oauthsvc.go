package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"habittracker/internal/auth"
	"habittracker/internal/domain"
)

// OAuthStep names the callback stage that failed.
type OAuthStep string

const (
	OAuthStepExchange  OAuthStep = "exchange"
	OAuthStepProfile   OAuthStep = "profile"
	OAuthStepEmail     OAuthStep = "email"
	OAuthStepReconcile OAuthStep = "reconcile"
)

var errNoProfileEmail = errors.New("profile has no usable email")

// OAuthError tags a callback failure with the provider and the step that
// produced it.
type OAuthError struct {
	Provider string
	Step     OAuthStep
	Err      error
}

func (e *OAuthError) Error() string {
	return fmt.Sprintf("oauth %s %s: %v", e.Provider, e.Step, e.Err)
}

func (e *OAuthError) Unwrap() error { return e.Err }

// Rejected reports whether the provider itself refused the step, as opposed
// to a transport or local failure.
func (e *OAuthError) Rejected() bool {
	if e.Step == OAuthStepEmail {
		return true
	}
	var perr *auth.ProviderError
	return errors.As(e.Err, &perr)
}

type OAuthService struct {
	Providers  auth.OAuthProviders
	Users      UsersStore
	Identities IdentitiesStore
	Auth       *AuthService
	Logger     *slog.Logger
	Now        func() time.Time
}

func (s *OAuthService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Provider returns the named provider if it is enabled and has credentials.
func (s *OAuthService) Provider(name string) (auth.OAuthProvider, error) {
	p, ok := s.Providers[name]
	if !ok || p == nil {
		return nil, domain.ErrNotFound
	}
	if !p.Configured() {
		return nil, domain.ErrProviderUnconfigured
	}
	return p, nil
}

// Complete runs the callback pipeline: code to token, token to profile,
// profile to email, email to local user. The first failing step ends it.
func (s *OAuthService) Complete(ctx context.Context, providerName, code string) (domain.User, Session, error) {
	p, err := s.Provider(providerName)
	if err != nil {
		return domain.User{}, Session{}, err
	}

	tok, err := p.Exchange(ctx, code)
	if err != nil {
		return domain.User{}, Session{}, &OAuthError{Provider: providerName, Step: OAuthStepExchange, Err: err}
	}

	profile, err := p.FetchProfile(ctx, tok)
	if err != nil {
		return domain.User{}, Session{}, &OAuthError{Provider: providerName, Step: OAuthStepProfile, Err: err}
	}
	if profile.ProviderUserID == "" {
		return domain.User{}, Session{}, &OAuthError{
			Provider: providerName,
			Step:     OAuthStepProfile,
			Err:      &auth.ProviderError{Provider: providerName, Op: "profile", Err: errors.New("missing user id")},
		}
	}

	email := auth.NormalizeEmail(profile.Email)
	if !auth.ValidEmail(email) {
		return domain.User{}, Session{}, &OAuthError{Provider: providerName, Step: OAuthStepEmail, Err: errNoProfileEmail}
	}

	u, err := s.reconcile(ctx, providerName, profile, email)
	if err != nil {
		if errors.Is(err, domain.ErrServerMisconfigured) {
			return domain.User{}, Session{}, err
		}
		return domain.User{}, Session{}, &OAuthError{Provider: providerName, Step: OAuthStepReconcile, Err: err}
	}

	sess, err := s.Auth.IssueSession(u)
	if err != nil {
		return domain.User{}, Session{}, err
	}
	return u, sess, nil
}

func (s *OAuthService) reconcile(ctx context.Context, provider string, profile auth.OAuthProfile, email string) (domain.User, error) {
	u, err := s.findOrCreateUser(ctx, email, profile.Name)
	if err != nil {
		return domain.User{}, err
	}

	now := s.now()
	if err := s.Identities.LinkIdentity(ctx, u.ID, provider, profile.ProviderUserID, now); err != nil {
		return domain.User{}, err
	}
	if err := s.Users.RecordLoginSuccess(ctx, u.ID, now); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// findOrCreateUser reuses the account registered under email, or creates a
// verified password-less one.
func (s *OAuthService) findOrCreateUser(ctx context.Context, email, name string) (domain.User, error) {
	existing, err := s.Users.GetUserByEmail(ctx, email)
	if err == nil {
		return existing.User, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, err
	}

	u, err := s.Users.CreateUser(ctx, email, auth.SanitizeName(name), "", true)
	if errors.Is(err, domain.ErrEmailTaken) {
		// Lost a race with a concurrent sign-up for the same address.
		existing, err = s.Users.GetUserByEmail(ctx, email)
		if err != nil {
			return domain.User{}, err
		}
		return existing.User, nil
	}
	if err != nil {
		return domain.User{}, err
	}

	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("oauth: created user", "user_id", u.ID)
	return u, nil
}
