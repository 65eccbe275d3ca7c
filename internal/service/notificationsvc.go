package service

import (
	"context"
	"strings"
	"time"

	"habittracker/internal/domain"
)

type NotificationService struct {
	Store NotificationsStore
	Now   func() time.Time
}

func (s *NotificationService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *NotificationService) Preferences(ctx context.Context, userID string) (domain.NotificationPreferences, error) {
	return s.Store.GetPreferences(ctx, userID)
}

func (s *NotificationService) UpdatePreferences(ctx context.Context, userID string, p domain.NotificationPreferences) error {
	p.Phone = strings.TrimSpace(p.Phone)
	if len(p.Phone) > 32 {
		return domain.NewValidationError(map[string]string{"phone": "too long"})
	}
	return s.Store.UpdatePreferences(ctx, userID, p, s.now().UTC())
}

// Subscribe stores a browser push subscription. Subscribing the same endpoint
// twice is not an error.
func (s *NotificationService) Subscribe(ctx context.Context, userID string, sub domain.PushSubscription) error {
	sub.Endpoint = strings.TrimSpace(sub.Endpoint)
	sub.P256dh = strings.TrimSpace(sub.P256dh)
	sub.Auth = strings.TrimSpace(sub.Auth)

	fields := map[string]string{}
	if sub.Endpoint == "" {
		fields["endpoint"] = "required"
	}
	if sub.P256dh == "" {
		fields["keys.p256dh"] = "required"
	}
	if sub.Auth == "" {
		fields["keys.auth"] = "required"
	}
	if len(fields) > 0 {
		return domain.NewValidationError(fields)
	}

	sub.UserID = userID
	sub.CreatedAt = s.now().UTC()
	return s.Store.AddPushSubscription(ctx, sub)
}

func (s *NotificationService) Unsubscribe(ctx context.Context, userID, endpoint string) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return domain.NewValidationError(map[string]string{"endpoint": "required"})
	}
	return s.Store.RemovePushSubscription(ctx, userID, endpoint)
}

func (s *NotificationService) Subscriptions(ctx context.Context, userID string) ([]domain.PushSubscription, error) {
	return s.Store.ListPushSubscriptions(ctx, userID)
}
