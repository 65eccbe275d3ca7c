package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"habittracker/internal/domain"
)

func TestTokenIssuerIssueAndRedeem(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	store := &memTokensStore{}
	issuer := &TokenIssuer{Store: store, HashCost: bcrypt.MinCost, Now: func() time.Time { return now }}

	raw, err := issuer.Issue(context.Background(), domain.TokenKindPasswordReset, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(raw) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(raw))
	}
	if store.rows[0].TokenHash == raw || strings.Contains(store.rows[0].TokenHash, raw) {
		t.Fatalf("plaintext token stored")
	}
	if !store.rows[0].ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected expiry: %s", store.rows[0].ExpiresAt)
	}

	userID, err := issuer.Redeem(context.Background(), domain.TokenKindPasswordReset, raw)
	if err != nil || userID != "user-1" {
		t.Fatalf("unexpected redeem result: %q %v", userID, err)
	}

	_, err = issuer.Redeem(context.Background(), domain.TokenKindPasswordReset, raw)
	if !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected reuse to fail, got %v", err)
	}
}

func TestTokenIssuerRedeemWrongKindAndExpired(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	store := &memTokensStore{}
	issuer := &TokenIssuer{Store: store, HashCost: bcrypt.MinCost, Now: func() time.Time { return now }}

	raw, err := issuer.Issue(context.Background(), domain.TokenKindEmailVerification, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := issuer.Redeem(context.Background(), domain.TokenKindPasswordReset, raw); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected other kind to fail, got %v", err)
	}

	now = now.Add(2 * time.Hour)
	if _, err := issuer.Redeem(context.Background(), domain.TokenKindEmailVerification, raw); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestTokenIssuerRedeemMalformedSkipsStore(t *testing.T) {
	store := &memTokensStore{}
	issuer := &TokenIssuer{Store: store}

	for _, tok := range []string{"", "short", strings.Repeat("z", 64)} {
		if _, err := issuer.Redeem(context.Background(), domain.TokenKindPasswordReset, tok); !errors.Is(err, domain.ErrTokenInvalid) {
			t.Fatalf("expected invalid for %q, got %v", tok, err)
		}
	}
	if store.listed != 0 {
		t.Fatalf("store consulted for malformed tokens")
	}
}

type racingTokensStore struct {
	*memTokensStore
}

func (r racingTokensStore) ConsumeToken(context.Context, domain.TokenKind, string) (bool, error) {
	return false, nil
}

func TestTokenIssuerRedeemLostRace(t *testing.T) {
	mem := &memTokensStore{}
	issuer := &TokenIssuer{Store: racingTokensStore{mem}, HashCost: bcrypt.MinCost}

	raw, err := issuer.Issue(context.Background(), domain.TokenKindPasswordReset, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := issuer.Redeem(context.Background(), domain.TokenKindPasswordReset, raw); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected invalid when another consumer won, got %v", err)
	}
}
