package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"habittracker/internal/domain"
)

type stubUsersStore struct {
	t *testing.T

	createUserFunc         func(context.Context, string, string, string, bool) (domain.User, error)
	getUserByIDFunc        func(context.Context, string) (domain.User, error)
	getUserByEmailFunc     func(context.Context, string) (domain.UserWithPassword, error)
	recordFailedLoginFunc  func(context.Context, string, time.Time, int, time.Time) (int, error)
	recordLoginSuccessFunc func(context.Context, string, time.Time) error
	markEmailVerifiedFunc  func(context.Context, string, time.Time) error
	setPasswordHashFunc    func(context.Context, string, string, time.Time) error
}

func (s *stubUsersStore) CreateUser(ctx context.Context, email, name, passwordHash string, emailVerified bool) (domain.User, error) {
	if s.createUserFunc != nil {
		return s.createUserFunc(ctx, email, name, passwordHash, emailVerified)
	}
	s.t.Fatalf("CreateUser called unexpectedly")
	return domain.User{}, errors.New("unexpected call")
}

func (s *stubUsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	if s.getUserByIDFunc != nil {
		return s.getUserByIDFunc(ctx, id)
	}
	s.t.Fatalf("GetUserByID called unexpectedly")
	return domain.User{}, errors.New("unexpected call")
}

func (s *stubUsersStore) GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error) {
	if s.getUserByEmailFunc != nil {
		return s.getUserByEmailFunc(ctx, email)
	}
	s.t.Fatalf("GetUserByEmail called unexpectedly")
	return domain.UserWithPassword{}, errors.New("unexpected call")
}

func (s *stubUsersStore) RecordFailedLogin(ctx context.Context, userID string, now time.Time, maxAttempts int, lockUntil time.Time) (int, error) {
	if s.recordFailedLoginFunc != nil {
		return s.recordFailedLoginFunc(ctx, userID, now, maxAttempts, lockUntil)
	}
	s.t.Fatalf("RecordFailedLogin called unexpectedly")
	return 0, errors.New("unexpected call")
}

func (s *stubUsersStore) RecordLoginSuccess(ctx context.Context, userID string, when time.Time) error {
	if s.recordLoginSuccessFunc != nil {
		return s.recordLoginSuccessFunc(ctx, userID, when)
	}
	s.t.Fatalf("RecordLoginSuccess called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubUsersStore) MarkEmailVerified(ctx context.Context, userID string, when time.Time) error {
	if s.markEmailVerifiedFunc != nil {
		return s.markEmailVerifiedFunc(ctx, userID, when)
	}
	s.t.Fatalf("MarkEmailVerified called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubUsersStore) SetPasswordHash(ctx context.Context, userID, passwordHash string, when time.Time) error {
	if s.setPasswordHashFunc != nil {
		return s.setPasswordHashFunc(ctx, userID, passwordHash, when)
	}
	s.t.Fatalf("SetPasswordHash called unexpectedly")
	return errors.New("unexpected call")
}

// memTokensStore keeps tokens in memory with the same consume-once rule as
// the SQL stores.
type memTokensStore struct {
	mu     sync.Mutex
	rows   []domain.OneTimeToken
	listed int
}

func (m *memTokensStore) CreateToken(_ context.Context, kind domain.TokenKind, userID, tokenHash string, expiresAt, createdAt time.Time) (domain.OneTimeToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := domain.OneTimeToken{
		ID:        fmt.Sprintf("tok-%d", len(m.rows)+1),
		Kind:      kind,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}
	m.rows = append(m.rows, t)
	return t, nil
}

func (m *memTokensStore) ListActiveTokens(_ context.Context, kind domain.TokenKind, now time.Time) ([]domain.OneTimeToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listed++
	var out []domain.OneTimeToken
	for _, r := range m.rows {
		if r.Kind == kind && !r.Used && r.ExpiresAt.After(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memTokensStore) ConsumeToken(_ context.Context, kind domain.TokenKind, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id && m.rows[i].Kind == kind {
			if m.rows[i].Used {
				return false, nil
			}
			m.rows[i].Used = true
			return true, nil
		}
	}
	return false, nil
}

func (m *memTokensStore) count(kind domain.TokenKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows {
		if r.Kind == kind {
			n++
		}
	}
	return n
}

type stubIdentitiesStore struct {
	linkFunc func(context.Context, string, string, string, time.Time) error
}

func (s *stubIdentitiesStore) LinkIdentity(ctx context.Context, userID, provider, providerUserID string, when time.Time) error {
	if s.linkFunc != nil {
		return s.linkFunc(ctx, userID, provider, providerUserID, when)
	}
	return errors.New("link not stubbed")
}
