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

const (
	DefaultMaxFailedLogins = 5
	DefaultLockoutDuration = 15 * time.Minute
)

type AuthService struct {
	Users    UsersStore
	Tokens   *TokenIssuer
	Sessions *auth.SessionIssuer
	Logger   *slog.Logger
	Now      func() time.Time

	// HashCost is the bcrypt cost for passwords; zero means auth.DefaultHashCost.
	HashCost        int
	MaxFailedLogins int
	LockoutDuration time.Duration
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

// Session is a freshly minted session credential.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

func (s *AuthService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *AuthService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *AuthService) maxFailedLogins() int {
	if s.MaxFailedLogins <= 0 {
		return DefaultMaxFailedLogins
	}
	return s.MaxFailedLogins
}

func (s *AuthService) lockoutDuration() time.Duration {
	if s.LockoutDuration <= 0 {
		return DefaultLockoutDuration
	}
	return s.LockoutDuration
}

func (s *AuthService) verificationTTL() time.Duration {
	if s.VerificationTTL <= 0 {
		return DefaultVerificationTTL
	}
	return s.VerificationTTL
}

func (s *AuthService) resetTTL() time.Duration {
	if s.ResetTTL <= 0 {
		return DefaultResetTTL
	}
	return s.ResetTTL
}

// Register creates an unverified local account and returns it together with
// the plaintext email verification token.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (domain.User, string, error) {
	email = auth.NormalizeEmail(email)
	if !auth.ValidEmail(email) || !auth.ValidPassword(password) {
		return domain.User{}, "", invalidCredentialsShape(email, password)
	}

	passwordHash, err := auth.HashSecret(password, s.HashCost)
	if err != nil {
		return domain.User{}, "", err
	}

	u, err := s.Users.CreateUser(ctx, email, auth.SanitizeName(name), passwordHash, false)
	if err != nil {
		return domain.User{}, "", err
	}

	token, err := s.Tokens.Issue(ctx, domain.TokenKindEmailVerification, u.ID, s.verificationTTL())
	if err != nil {
		return domain.User{}, "", err
	}
	return u, token, nil
}

// Login checks a local credential against the lockout policy. A locked
// account is refused before the password hash is looked at.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.User, Session, error) {
	email = auth.NormalizeEmail(email)
	if !auth.ValidEmail(email) || password == "" {
		return domain.User{}, Session{}, domain.NewValidationError(map[string]string{"credentials": "email and password are required"})
	}

	u, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, Session{}, domain.ErrInvalidCredentials
		}
		return domain.User{}, Session{}, err
	}
	if !u.HasPassword() {
		return domain.User{}, Session{}, domain.ErrInvalidCredentials
	}

	now := s.now()
	if u.LockedAt(now) {
		return domain.User{}, Session{}, domain.ErrAccountLocked
	}

	ok, err := auth.VerifyPassword(u.PasswordHash, password)
	if err != nil {
		return domain.User{}, Session{}, err
	}
	if !ok {
		limit := s.maxFailedLogins()
		attempts, err := s.Users.RecordFailedLogin(ctx, u.ID, now, limit, now.Add(s.lockoutDuration()))
		if err != nil {
			return domain.User{}, Session{}, err
		}
		if attempts >= limit {
			s.logger().Warn("auth: account locked", "user_id", u.ID, "attempts", attempts)
			return domain.User{}, Session{}, domain.ErrAccountLocked
		}
		return domain.User{}, Session{}, domain.ErrInvalidCredentials
	}

	if err := s.Users.RecordLoginSuccess(ctx, u.ID, now); err != nil {
		return domain.User{}, Session{}, err
	}
	if !u.EmailVerified {
		return domain.User{}, Session{}, domain.ErrEmailNotVerified
	}

	sess, err := s.IssueSession(u.User)
	if err != nil {
		return domain.User{}, Session{}, err
	}
	return u.User, sess, nil
}

// VerifyEmail redeems a verification token, marks the address verified and
// signs the user in.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (domain.User, Session, error) {
	userID, err := s.Tokens.Redeem(ctx, domain.TokenKindEmailVerification, token)
	if err != nil {
		return domain.User{}, Session{}, err
	}
	if err := s.Users.MarkEmailVerified(ctx, userID, s.now()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, Session{}, domain.ErrTokenInvalid
		}
		return domain.User{}, Session{}, err
	}
	u, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, Session{}, domain.ErrTokenInvalid
		}
		return domain.User{}, Session{}, err
	}

	sess, err := s.IssueSession(u)
	if err != nil {
		return domain.User{}, Session{}, err
	}
	return u, sess, nil
}

// RequestPasswordReset returns the plaintext reset token, or "" when no
// account uses email. The caller must not tell the two apart in its response.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = auth.NormalizeEmail(email)
	if !auth.ValidEmail(email) {
		return "", domain.NewValidationError(map[string]string{"email": "invalid email"})
	}

	u, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return s.Tokens.Issue(ctx, domain.TokenKindPasswordReset, u.ID, s.resetTTL())
}

// ConfirmPasswordReset consumes the reset token first so that two concurrent
// confirmations cannot both set a password.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if token == "" || !auth.ValidPassword(newPassword) {
		return domain.NewValidationError(map[string]string{"newPassword": passwordRule})
	}

	userID, err := s.Tokens.Redeem(ctx, domain.TokenKindPasswordReset, token)
	if err != nil {
		return err
	}
	hash, err := auth.HashSecret(newPassword, s.HashCost)
	if err != nil {
		return err
	}
	if err := s.Users.SetPasswordHash(ctx, userID, hash, s.now()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrTokenInvalid
		}
		return err
	}
	return nil
}

// UserForSession resolves a session credential to its user. Any credential
// that does not lead to an existing user is ErrUnauthorized.
func (s *AuthService) UserForSession(ctx context.Context, token string) (domain.User, error) {
	if !s.Sessions.Configured() {
		return domain.User{}, domain.ErrServerMisconfigured
	}
	if token == "" {
		return domain.User{}, domain.ErrUnauthorized
	}
	claims, err := s.Sessions.Parse(token)
	if err != nil {
		return domain.User{}, domain.ErrUnauthorized
	}

	u, err := s.Users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrUnauthorized
		}
		return domain.User{}, err
	}
	return u, nil
}

// IssueSession signs a session credential for u.
func (s *AuthService) IssueSession(u domain.User) (Session, error) {
	token, expiresAt, err := s.Sessions.Issue(u.ID, u.Email)
	if err != nil {
		if errors.Is(err, auth.ErrNoSigningSecret) {
			return Session{}, domain.ErrServerMisconfigured
		}
		return Session{}, fmt.Errorf("issue session: %w", err)
	}
	return Session{Token: token, ExpiresAt: expiresAt}, nil
}

const passwordRule = "must be 8 to 72 bytes"

func invalidCredentialsShape(email, password string) error {
	fields := map[string]string{}
	if !auth.ValidEmail(email) {
		fields["email"] = "invalid email"
	}
	if !auth.ValidPassword(password) {
		fields["password"] = passwordRule
	}
	return domain.NewValidationError(fields)
}
