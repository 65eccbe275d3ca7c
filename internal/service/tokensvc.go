package service

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"habittracker/internal/auth"
	"habittracker/internal/domain"
)

const (
	DefaultVerificationTTL = 24 * time.Hour
	DefaultResetTTL        = time.Hour
)

// TokenIssuer hands out single-use tokens. Only the bcrypt hash of a token is
// stored, so redemption has to compare against every live candidate.
type TokenIssuer struct {
	Store    TokensStore
	HashCost int
	Now      func() time.Time
}

func (t *TokenIssuer) now() time.Time {
	if t.Now == nil {
		return time.Now()
	}
	return t.Now()
}

// Issue stores a new token of kind for userID and returns its plaintext.
func (t *TokenIssuer) Issue(ctx context.Context, kind domain.TokenKind, userID string, ttl time.Duration) (string, error) {
	raw, err := auth.NewOpaqueToken()
	if err != nil {
		return "", err
	}
	hash, err := auth.HashSecret(raw, t.HashCost)
	if err != nil {
		return "", fmt.Errorf("hash %s token: %w", kind, err)
	}
	now := t.now()
	if _, err := t.Store.CreateToken(ctx, kind, userID, hash, now.Add(ttl), now); err != nil {
		return "", err
	}
	return raw, nil
}

// Redeem consumes the live token matching plaintext and returns its user id.
// Unknown, expired and already used tokens all yield ErrTokenInvalid.
func (t *TokenIssuer) Redeem(ctx context.Context, kind domain.TokenKind, plaintext string) (string, error) {
	if !wellFormedToken(plaintext) {
		return "", domain.ErrTokenInvalid
	}

	candidates, err := t.Store.ListActiveTokens(ctx, kind, t.now())
	if err != nil {
		return "", err
	}
	for _, c := range candidates {
		ok, err := auth.VerifySecret(c.TokenHash, plaintext)
		if err != nil || !ok {
			continue
		}
		consumed, err := t.Store.ConsumeToken(ctx, kind, c.ID)
		if err != nil {
			return "", err
		}
		if !consumed {
			return "", domain.ErrTokenInvalid
		}
		return c.UserID, nil
	}
	return "", domain.ErrTokenInvalid
}

// wellFormedToken rejects anything NewOpaqueToken could not have produced
// before any bcrypt work is spent on it.
func wellFormedToken(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
