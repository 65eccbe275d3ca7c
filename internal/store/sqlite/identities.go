package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type IdentitiesStore struct {
	db *sql.DB
}

func NewIdentitiesStore(db *sql.DB) *IdentitiesStore {
	return &IdentitiesStore{db: db}
}

// LinkIdentity inserts the (provider, provider_user_id) link unless it already exists.
func (s *IdentitiesStore) LinkIdentity(ctx context.Context, userID, provider, providerUserID string, when time.Time) error {
	const q = `
		INSERT INTO auth_identities (id, user_id, provider, provider_user_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (provider, provider_user_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, q, newID(), userID, provider, providerUserID, utc(when)); err != nil {
		return fmt.Errorf("link identity: %w", err)
	}
	return nil
}
