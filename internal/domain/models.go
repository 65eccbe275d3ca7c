package domain

import "time"

type User struct {
	ID            string
	Email         string
	Name          string
	EmailVerified bool

	FailedLoginAttempts int
	LockoutUntil        *time.Time
	LastLoginAt         *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LockedAt reports whether a lockout is still running at now.
func (u User) LockedAt(now time.Time) bool {
	return u.LockoutUntil != nil && now.Before(*u.LockoutUntil)
}

// UserWithPassword carries the stored hash. PasswordHash is empty for
// accounts created through an external identity provider.
type UserWithPassword struct {
	User
	PasswordHash string
}

func (u UserWithPassword) HasPassword() bool { return u.PasswordHash != "" }

type FederatedIdentity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

type TokenKind string

const (
	TokenKindEmailVerification TokenKind = "email_verification"
	TokenKindPasswordReset     TokenKind = "password_reset"
)

type OneTimeToken struct {
	ID        string
	Kind      TokenKind
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}
