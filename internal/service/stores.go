package service

import (
	"context"
	"time"

	"habittracker/internal/domain"
)

type UsersStore interface {
	CreateUser(ctx context.Context, email, name, passwordHash string, emailVerified bool) (domain.User, error)
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error)
	RecordFailedLogin(ctx context.Context, userID string, now time.Time, maxAttempts int, lockUntil time.Time) (int, error)
	RecordLoginSuccess(ctx context.Context, userID string, when time.Time) error
	MarkEmailVerified(ctx context.Context, userID string, when time.Time) error
	SetPasswordHash(ctx context.Context, userID, passwordHash string, when time.Time) error
}

type TokensStore interface {
	CreateToken(ctx context.Context, kind domain.TokenKind, userID, tokenHash string, expiresAt, createdAt time.Time) (domain.OneTimeToken, error)
	ListActiveTokens(ctx context.Context, kind domain.TokenKind, now time.Time) ([]domain.OneTimeToken, error)
	ConsumeToken(ctx context.Context, kind domain.TokenKind, id string) (bool, error)
}

type IdentitiesStore interface {
	LinkIdentity(ctx context.Context, userID, provider, providerUserID string, when time.Time) error
}

type HabitsStore interface {
	CreateHabit(ctx context.Context, h domain.Habit) (domain.Habit, error)
	ListHabits(ctx context.Context, userID string) ([]domain.Habit, error)
	GetHabit(ctx context.Context, userID, habitID string) (domain.Habit, error)
	DeleteHabit(ctx context.Context, userID, habitID string) error
	ListTracking(ctx context.Context, userID string) ([]domain.TrackingEntry, error)
	ListTrackingForHabit(ctx context.Context, habitID string) ([]domain.TrackingEntry, error)
	UpsertTracking(ctx context.Context, habitID, date string, completed bool) error
	ListSuggestions(ctx context.Context, habitID string) ([]domain.Suggestion, error)
	CreateSuggestion(ctx context.Context, habitID, text string, when time.Time) (domain.Suggestion, error)
}

type NotificationsStore interface {
	GetPreferences(ctx context.Context, userID string) (domain.NotificationPreferences, error)
	UpdatePreferences(ctx context.Context, userID string, p domain.NotificationPreferences, when time.Time) error
	AddPushSubscription(ctx context.Context, sub domain.PushSubscription) error
	RemovePushSubscription(ctx context.Context, userID, endpoint string) error
	ListPushSubscriptions(ctx context.Context, userID string) ([]domain.PushSubscription, error)
}
