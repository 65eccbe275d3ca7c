package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"habittracker/internal/domain"
)

type NotificationsStore struct {
	db *sql.DB
}

func NewNotificationsStore(db *sql.DB) *NotificationsStore {
	return &NotificationsStore{db: db}
}

func (s *NotificationsStore) GetPreferences(ctx context.Context, userID string) (domain.NotificationPreferences, error) {
	const q = `SELECT email_notifications_enabled, push_notifications_enabled, phone FROM users WHERE id = ?`

	var (
		p     domain.NotificationPreferences
		phone sql.NullString
	)
	err := s.db.QueryRowContext(ctx, q, userID).Scan(&p.EmailEnabled, &p.PushEnabled, &phone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotificationPreferences{}, domain.ErrNotFound
		}
		return domain.NotificationPreferences{}, fmt.Errorf("get notification preferences: %w", err)
	}
	p.Phone = phone.String
	return p, nil
}

func (s *NotificationsStore) UpdatePreferences(ctx context.Context, userID string, p domain.NotificationPreferences, when time.Time) error {
	const q = `
		UPDATE users
		SET email_notifications_enabled = ?, push_notifications_enabled = ?, phone = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, q, p.EmailEnabled, p.PushEnabled, nullIfEmpty(p.Phone), utc(when), userID)
	if err != nil {
		return fmt.Errorf("update notification preferences: %w", err)
	}
	return requireRow(res)
}

// AddPushSubscription stores the subscription unless the user already has one
// for the same endpoint.
func (s *NotificationsStore) AddPushSubscription(ctx context.Context, sub domain.PushSubscription) error {
	const q = `
		INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh, auth, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, endpoint) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, q, newID(), sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth, utc(sub.CreatedAt)); err != nil {
		return fmt.Errorf("add push subscription: %w", err)
	}
	return nil
}

func (s *NotificationsStore) RemovePushSubscription(ctx context.Context, userID, endpoint string) error {
	const q = `DELETE FROM push_subscriptions WHERE user_id = ? AND endpoint = ?`
	if _, err := s.db.ExecContext(ctx, q, userID, endpoint); err != nil {
		return fmt.Errorf("remove push subscription: %w", err)
	}
	return nil
}

func (s *NotificationsStore) ListPushSubscriptions(ctx context.Context, userID string) ([]domain.PushSubscription, error) {
	const q = `
		SELECT id, user_id, endpoint, p256dh, auth, created_at
		FROM push_subscriptions
		WHERE user_id = ?
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()

	out := []domain.PushSubscription{}
	for rows.Next() {
		var sub domain.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate push subscriptions: %w", err)
	}
	return out, nil
}
