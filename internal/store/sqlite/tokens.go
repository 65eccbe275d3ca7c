package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"habittracker/internal/domain"
)

type TokensStore struct {
	db *sql.DB
}

func NewTokensStore(db *sql.DB) *TokensStore {
	return &TokensStore{db: db}
}

func tokenTable(kind domain.TokenKind) (string, error) {
	switch kind {
	case domain.TokenKindEmailVerification:
		return "email_verification_tokens", nil
	case domain.TokenKindPasswordReset:
		return "password_reset_tokens", nil
	default:
		return "", fmt.Errorf("unknown token kind %q", kind)
	}
}

func (s *TokensStore) CreateToken(ctx context.Context, kind domain.TokenKind, userID, tokenHash string, expiresAt, createdAt time.Time) (domain.OneTimeToken, error) {
	table, err := tokenTable(kind)
	if err != nil {
		return domain.OneTimeToken{}, err
	}
	q := `INSERT INTO ` + table + ` (id, user_id, token_hash, expires_at, used, created_at) VALUES (?, ?, ?, ?, 0, ?)`

	t := domain.OneTimeToken{
		ID:        newID(),
		Kind:      kind,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: utc(expiresAt),
		CreatedAt: utc(createdAt),
	}
	if _, err := s.db.ExecContext(ctx, q, t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.CreatedAt); err != nil {
		return domain.OneTimeToken{}, fmt.Errorf("create %s token: %w", kind, err)
	}
	return t, nil
}

// ListActiveTokens returns every unused token of kind that is still valid at now.
func (s *TokensStore) ListActiveTokens(ctx context.Context, kind domain.TokenKind, now time.Time) ([]domain.OneTimeToken, error) {
	table, err := tokenTable(kind)
	if err != nil {
		return nil, err
	}
	q := `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM ` + table + `
		WHERE used = 0 AND expires_at > ?
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, q, utc(now))
	if err != nil {
		return nil, fmt.Errorf("list %s tokens: %w", kind, err)
	}
	defer rows.Close()

	var out []domain.OneTimeToken
	for rows.Next() {
		t := domain.OneTimeToken{Kind: kind}
		if err := rows.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan %s token: %w", kind, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s tokens: %w", kind, err)
	}
	return out, nil
}

// ConsumeToken flips used for one row. It reports false when another caller
// got there first.
func (s *TokensStore) ConsumeToken(ctx context.Context, kind domain.TokenKind, id string) (bool, error) {
	table, err := tokenTable(kind)
	if err != nil {
		return false, err
	}
	q := `UPDATE ` + table + ` SET used = 1 WHERE id = ? AND used = 0`

	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return false, fmt.Errorf("consume %s token: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("consume %s token: %w", kind, err)
	}
	return n == 1, nil
}
