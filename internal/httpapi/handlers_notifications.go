package httpapi

import (
	"net/http"
	"time"

	"habittracker/internal/domain"
)

type notificationPreferencesBody struct {
	EmailEnabled bool   `json:"email_notifications_enabled"`
	PushEnabled  bool   `json:"push_notifications_enabled"`
	Phone        string `json:"phone" validate:"max=32"`
}

func (a *api) handleNotificationPreferences(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}

	p, err := a.notificationsSvc.Preferences(r.Context(), u.ID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, notificationPreferencesBody{
		EmailEnabled: p.EmailEnabled,
		PushEnabled:  p.PushEnabled,
		Phone:        p.Phone,
	})
}

func (a *api) handleNotificationPreferencesUpdate(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}

	var req notificationPreferencesBody
	if err := decodeAndValidate(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	err := a.notificationsSvc.UpdatePreferences(r.Context(), u.ID, domain.NotificationPreferences{
		EmailEnabled: req.EmailEnabled,
		PushEnabled:  req.PushEnabled,
		Phone:        req.Phone,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK)
}

type pushKeys struct {
	P256dh string `json:"p256dh" validate:"required"`
	Auth   string `json:"auth" validate:"required"`
}

// subscribeRequest is a browser PushSubscription serialized as-is.
type subscribeRequest struct {
	Endpoint       string   `json:"endpoint" validate:"required,url"`
	ExpirationTime *int64   `json:"expirationTime"`
	Keys           pushKeys `json:"keys"`
}

type subscriptionResponse struct {
	Endpoint  string    `json:"endpoint"`
	Keys      pushKeys  `json:"keys"`
	CreatedAt time.Time `json:"createdAt"`
}

func (a *api) handleNotificationSubscriptions(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}

	subs, err := a.notificationsSvc.Subscriptions(r.Context(), u.ID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	out := make([]subscriptionResponse, 0, len(subs))
	for _, s := range subs {
		out = append(out, subscriptionResponse{
			Endpoint:  s.Endpoint,
			Keys:      pushKeys{P256dh: s.P256dh, Auth: s.Auth},
			CreatedAt: s.CreatedAt,
		})
	}
	WriteJSON(w, http.StatusOK, out)
}

func (a *api) handleNotificationSubscribe(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}

	var req subscribeRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	err := a.notificationsSvc.Subscribe(r.Context(), u.ID, domain.PushSubscription{
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated)
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required"`
}

func (a *api) handleNotificationUnsubscribe(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}

	var req unsubscribeRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	if err := a.notificationsSvc.Unsubscribe(r.Context(), u.ID, req.Endpoint); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK)
}

type vapidKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

func (a *api) handleVAPIDPublicKey(w http.ResponseWriter, _ *http.Request) {
	if a.vapidPublicKey == "" {
		WriteError(w, http.StatusNotFound, "not_found", "Push notifications are not configured")
		return
	}
	WriteJSON(w, http.StatusOK, vapidKeyResponse{PublicKey: a.vapidPublicKey})
}
