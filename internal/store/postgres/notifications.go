package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"habittracker/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationsStore struct {
	pool *pgxpool.Pool
}

func NewNotificationsStore(pool *pgxpool.Pool) *NotificationsStore {
	return &NotificationsStore{pool: pool}
}

func (s *NotificationsStore) GetPreferences(ctx context.Context, userID string) (domain.NotificationPreferences, error) {
	const q = `SELECT email_notifications_enabled, push_notifications_enabled, phone FROM users WHERE id = $1`
	if !validID(userID) {
		return domain.NotificationPreferences{}, domain.ErrNotFound
	}

	var (
		p     domain.NotificationPreferences
		phone pgtype.Text
	)
	if err := s.pool.QueryRow(ctx, q, userID).Scan(&p.EmailEnabled, &p.PushEnabled, &phone); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NotificationPreferences{}, domain.ErrNotFound
		}
		return domain.NotificationPreferences{}, fmt.Errorf("get notification preferences: %w", err)
	}
	p.Phone = textOrEmpty(phone)
	return p, nil
}

func (s *NotificationsStore) UpdatePreferences(ctx context.Context, userID string, p domain.NotificationPreferences, when time.Time) error {
	const q = `
		UPDATE users
		SET email_notifications_enabled = $2, push_notifications_enabled = $3, phone = $4, updated_at = $5
		WHERE id = $1
	`
	if !validID(userID) {
		return domain.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, q, userID, p.EmailEnabled, p.PushEnabled, nullIfEmpty(p.Phone), when)
	if err != nil {
		return fmt.Errorf("update notification preferences: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *NotificationsStore) AddPushSubscription(ctx context.Context, sub domain.PushSubscription) error {
	const q = `
		INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT ON CONSTRAINT push_subscriptions_user_endpoint_uq DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, q, sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth, sub.CreatedAt); err != nil {
		return fmt.Errorf("add push subscription: %w", err)
	}
	return nil
}

func (s *NotificationsStore) RemovePushSubscription(ctx context.Context, userID, endpoint string) error {
	const q = `DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2`
	if _, err := s.pool.Exec(ctx, q, userID, endpoint); err != nil {
		return fmt.Errorf("remove push subscription: %w", err)
	}
	return nil
}

func (s *NotificationsStore) ListPushSubscriptions(ctx context.Context, userID string) ([]domain.PushSubscription, error) {
	const q = `
		SELECT id, user_id, endpoint, p256dh, auth, created_at
		FROM push_subscriptions
		WHERE user_id = $1
		ORDER BY created_at
	`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()

	out := []domain.PushSubscription{}
	for rows.Next() {
		var (
			sub      domain.PushSubscription
			idUUID   pgtype.UUID
			userUUID pgtype.UUID
		)
		if err := rows.Scan(&idUUID, &userUUID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		sub.ID = uuidOrEmpty(idUUID)
		sub.UserID = uuidOrEmpty(userUUID)
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	return out, nil
}
