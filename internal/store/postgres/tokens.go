package postgres

import (
	"context"
	"fmt"
	"time"

	"habittracker/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TokensStore struct {
	pool *pgxpool.Pool
}

func NewTokensStore(pool *pgxpool.Pool) *TokensStore {
	return &TokensStore{pool: pool}
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
	q := `
		INSERT INTO ` + table + ` (user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var idUUID pgtype.UUID
	if err := s.pool.QueryRow(ctx, q, userID, tokenHash, expiresAt, createdAt).Scan(&idUUID); err != nil {
		return domain.OneTimeToken{}, fmt.Errorf("create %s token: %w", kind, err)
	}
	return domain.OneTimeToken{
		ID:        uuidOrEmpty(idUUID),
		Kind:      kind,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

func (s *TokensStore) ListActiveTokens(ctx context.Context, kind domain.TokenKind, now time.Time) ([]domain.OneTimeToken, error) {
	table, err := tokenTable(kind)
	if err != nil {
		return nil, err
	}
	q := `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM ` + table + `
		WHERE NOT used AND expires_at > $1
		ORDER BY created_at DESC
	`

	rows, err := s.pool.Query(ctx, q, now)
	if err != nil {
		return nil, fmt.Errorf("list %s tokens: %w", kind, err)
	}
	defer rows.Close()

	var out []domain.OneTimeToken
	for rows.Next() {
		var (
			idUUID   pgtype.UUID
			userUUID pgtype.UUID
		)
		t := domain.OneTimeToken{Kind: kind}
		if err := rows.Scan(&idUUID, &userUUID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan %s token: %w", kind, err)
		}
		t.ID = uuidOrEmpty(idUUID)
		t.UserID = uuidOrEmpty(userUUID)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s tokens: %w", kind, err)
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
	if !validID(id) {
		return false, nil
	}
	q := `UPDATE ` + table + ` SET used = TRUE WHERE id = $1 AND NOT used`

	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return false, fmt.Errorf("consume %s token: %w", kind, err)
	}
	return tag.RowsAffected() == 1, nil
}
