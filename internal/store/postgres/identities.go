package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type IdentitiesStore struct {
	pool *pgxpool.Pool
}

func NewIdentitiesStore(pool *pgxpool.Pool) *IdentitiesStore {
	return &IdentitiesStore{pool: pool}
}

func (s *IdentitiesStore) LinkIdentity(ctx context.Context, userID, provider, providerUserID string, when time.Time) error {
	const q = `
		INSERT INTO auth_identities (user_id, provider, provider_user_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT auth_identities_provider_uq DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, q, userID, provider, providerUserID, when); err != nil {
		return fmt.Errorf("link identity: %w", err)
	}
	return nil
}
