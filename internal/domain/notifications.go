package domain

import "time"

type NotificationPreferences struct {
	EmailEnabled bool
	PushEnabled  bool
	Phone        string
}

type PushSubscription struct {
	ID        string
	UserID    string
	Endpoint  string
	P256dh    string
	Auth      string
	CreatedAt time.Time
}
