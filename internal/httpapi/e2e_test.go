package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"habittracker/internal/auth"
	"habittracker/internal/service"
	"habittracker/internal/store/sqlite"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testApp struct {
	db      *sql.DB
	handler http.Handler
}

func newTestApp(t *testing.T, providers auth.OAuthProviders) *testApp {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.Migrate(ctx, db))

	users := sqlite.NewUsersStore(db)
	logger := discardLogger()
	authSvc := &service.AuthService{
		Users:    users,
		Tokens:   &service.TokenIssuer{Store: sqlite.NewTokensStore(db), HashCost: bcrypt.MinCost},
		Sessions: auth.NewSessionIssuer([]byte(strings.Repeat("k", 32)), time.Hour),
		Logger:   logger,
		HashCost: bcrypt.MinCost,
	}

	h := NewRouter(RouterOpts{
		Logger: logger,
		DBPing: db.PingContext,
		Auth:   authSvc,
		OAuth: &service.OAuthService{
			Providers:  providers,
			Users:      users,
			Identities: sqlite.NewIdentitiesStore(db),
			Auth:       authSvc,
			Logger:     logger,
		},
		Habits:         &service.HabitService{Habits: sqlite.NewHabitsStore(db)},
		Notifications:  &service.NotificationService{Store: sqlite.NewNotificationsStore(db)},
		ClientOrigin:   "http://client.test",
		TokenPreviews:  true,
		VAPIDPublicKey: "vapid-key",
	})
	return &testApp{db: db, handler: h}
}

// browser keeps cookies between requests and echoes the CSRF token the way
// the web client does.
type browser struct {
	t    *testing.T
	base string
	c    *http.Client
	csrf string
}

func newBrowser(t *testing.T, h http.Handler) *browser {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:    t,
		base: srv.URL,
		c: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) fetchCSRF() {
	b.t.Helper()
	var out csrfResponse
	status := b.do(http.MethodGet, "/api/auth/csrf", nil, &out)
	require.Equal(b.t, http.StatusOK, status)
	require.NotEmpty(b.t, out.CSRFToken)
	b.csrf = out.CSRFToken
}

func (b *browser) do(method, path string, body any, out any) int {
	b.t.Helper()
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(b.t, err)
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, b.base+path, rd)
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/json")
	if b.csrf != "" {
		req.Header.Set(auth.CSRFHeaderName, b.csrf)
	}

	resp, err := b.c.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(b.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (b *browser) errorCode(method, path string, body any) (int, string) {
	b.t.Helper()
	var env errorEnvelope
	status := b.do(method, path, body, &env)
	return status, env.Error.Code
}

func (b *browser) register(email, password, name string) registerResponse {
	b.t.Helper()
	var out registerResponse
	status := b.do(http.MethodPost, "/api/auth/register", map[string]string{
		"email": email, "password": password, "name": name,
	}, &out)
	require.Equal(b.t, http.StatusOK, status)
	return out
}

func TestEndToEnd_RegisterVerifyLogin(t *testing.T) {
	app := newTestApp(t, nil)
	b := newBrowser(t, app.handler)
	b.fetchCSRF()

	reg := b.register("A@B.com", "longpassword1", "Name")
	assert.Equal(t, "a@b.com", reg.User.Email)
	assert.False(t, reg.User.EmailVerified)
	require.Len(t, reg.EmailVerificationTokenPreview, 64)

	status, code := b.errorCode(http.MethodPost, "/api/auth/register", map[string]string{
		"email": "a@b.com", "password": "longpassword1", "name": "Again",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "conflict", code)

	status, code = b.errorCode(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "a@b.com", "password": "longpassword1",
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "email_not_verified", code)

	var verified userEnvelope
	status = b.do(http.MethodPost, "/api/auth/verify-email", map[string]string{"token": reg.EmailVerificationTokenPreview}, &verified)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, verified.User.EmailVerified)
	assert.Equal(t, reg.User.ID, verified.User.ID)

	var me userEnvelope
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/auth/me", nil, &me))
	assert.Equal(t, reg.User.ID, me.User.ID)

	status, code = b.errorCode(http.MethodPost, "/api/auth/verify-email", map[string]string{"token": reg.EmailVerificationTokenPreview})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", code)

	var ok successResponse
	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/auth/logout", nil, &ok))
	assert.True(t, ok.Success)
	status, code = b.errorCode(http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "auth_error", code)

	var loggedIn userEnvelope
	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "a@b.com", "password": "longpassword1",
	}, &loggedIn))
	assert.Equal(t, reg.User.ID, loggedIn.User.ID)
}

func TestEndToEnd_RegisterTruncatesLongName(t *testing.T) {
	app := newTestApp(t, nil)
	b := newBrowser(t, app.handler)
	b.fetchCSRF()

	reg := b.register("long@b.com", "longpassword1", strings.Repeat("n", 250))
	assert.Equal(t, strings.Repeat("n", auth.MaxNameLength), reg.User.Name)
}

func TestEndToEnd_CSRFRequired(t *testing.T) {
	app := newTestApp(t, nil)
	b := newBrowser(t, app.handler)

	status, code := b.errorCode(http.MethodPost, "/api/auth/register", map[string]string{
		"email": "a@b.com", "password": "longpassword1", "name": "Name",
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "csrf_error", code)

	b.fetchCSRF()
	b.csrf = "forged.token"
	status, code = b.errorCode(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "a@b.com", "password": "longpassword1",
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "csrf_error", code)

	var n int
	require.NoError(t, app.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestEndToEnd_LockoutAfterFiveFailures(t *testing.T) {
	app := newTestApp(t, nil)
	b := newBrowser(t, app.handler)
	b.fetchCSRF()

	reg := b.register("lock@b.com", "longpassword1", "Lock")
	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/auth/verify-email", map[string]string{"token": reg.EmailVerificationTokenPreview}, nil))

	bad := map[string]string{"email": "lock@b.com", "password": "wrongpassword"}
	for i := 1; i <= 4; i++ {
		status, code := b.errorCode(http.MethodPost, "/api/auth/login", bad)
		require.Equal(t, http.StatusUnauthorized, status, "attempt %d", i)
		require.Equal(t, "auth_error", code)
	}
	status, _ := b.errorCode(http.MethodPost, "/api/auth/login", bad)
	require.Equal(t, http.StatusLocked, status)

	status, code := b.errorCode(http.MethodPost, "/api/auth/login", map[string]string{"email": "lock@b.com", "password": "longpassword1"})
	assert.Equal(t, http.StatusLocked, status)
	assert.Equal(t, "auth_error", code)
}

func TestEndToEnd_PasswordReset(t *testing.T) {
	app := newTestApp(t, nil)
	b := newBrowser(t, app.handler)
	b.fetchCSRF()

	var unknown passwordResetRequestResponse
	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/auth/password-reset/request", map[string]string{"email": "nobody@b.com"}, &unknown))
	assert.True(t, unknown.Success)
	assert.Empty(t, unknown.ResetTokenPreview)
	var n int
	require.NoError(t, app.db.QueryRow(`SELECT COUNT(*) FROM password_reset_tokens`).Scan(&n))
	assert.Equal(t, 0, n)

	reg := b.register("reset@b.com", "longpassword1", "Reset")
	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/auth/verify-email", map[string]string{"token": reg.EmailVerificationTokenPreview}, nil))

	var requested passwordResetRequestResponse
	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/auth/password-reset/request", map[string]string{"email": "reset@b.com"}, &requested))
	require.NotEmpty(t, requested.ResetTokenPreview)

	status, code := b.errorCode(http.MethodPost, "/api/auth/password-reset/confirm", map[string]string{
		"token": requested.ResetTokenPreview, "newPassword": "short",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", code)

	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/auth/password-reset/confirm", map[string]string{
		"token": requested.ResetTokenPreview, "newPassword": "anotherpassword2",
	}, nil))

	status, _ = b.errorCode(http.MethodPost, "/api/auth/password-reset/confirm", map[string]string{
		"token": requested.ResetTokenPreview, "newPassword": "thirdpassword3",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = b.errorCode(http.MethodPost, "/api/auth/login", map[string]string{"email": "reset@b.com", "password": "longpassword1"})
	assert.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "reset@b.com", "password": "anotherpassword2"}, nil))
}

func TestEndToEnd_HabitsAreScopedToOwner(t *testing.T) {
	app := newTestApp(t, nil)

	signIn := func(email string) *browser {
		b := newBrowser(t, app.handler)
		b.fetchCSRF()
		reg := b.register(email, "longpassword1", "User")
		require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/auth/verify-email", map[string]string{"token": reg.EmailVerificationTokenPreview}, nil))
		return b
	}
	owner := signIn("owner@b.com")
	other := signIn("other@b.com")

	var h habitResponse
	require.Equal(t, http.StatusCreated, owner.do(http.MethodPost, "/api/habits", map[string]any{
		"name": "Read", "reminderTime": "21:30", "reminderEnabled": true,
	}, &h))
	assert.Equal(t, "daily", h.Frequency)

	require.Equal(t, http.StatusOK, owner.do(http.MethodPost, "/api/tracking", map[string]any{
		"habitId": h.ID, "date": "2025-01-02", "completed": true,
	}, nil))

	var entries []trackingResponse
	require.Equal(t, http.StatusOK, owner.do(http.MethodGet, "/api/tracking/"+h.ID, nil, &entries))
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Completed)

	status, code := other.errorCode(http.MethodGet, "/api/tracking/"+h.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", code)
	status, _ = other.errorCode(http.MethodPost, "/api/tracking", map[string]any{"habitId": h.ID, "date": "2025-01-02", "completed": false})
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = other.errorCode(http.MethodDelete, "/api/habits/"+h.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)

	var list []habitResponse
	require.Equal(t, http.StatusOK, other.do(http.MethodGet, "/api/habits", nil, &list))
	assert.Empty(t, list)

	var sg suggestionResponse
	require.Equal(t, http.StatusCreated, owner.do(http.MethodPost, "/api/suggestions", map[string]string{
		"habitId": h.ID, "suggestion": "<b>Read</b> before bed",
	}, &sg))
	assert.Equal(t, "Read before bed", sg.Suggestion)

	require.Equal(t, http.StatusOK, owner.do(http.MethodDelete, "/api/habits/"+h.ID, nil, nil))
	require.Equal(t, http.StatusOK, owner.do(http.MethodGet, "/api/habits", nil, &list))
	assert.Empty(t, list)
}

func TestEndToEnd_Notifications(t *testing.T) {
	app := newTestApp(t, nil)
	b := newBrowser(t, app.handler)
	b.fetchCSRF()
	reg := b.register("n@b.com", "longpassword1", "N")
	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/auth/verify-email", map[string]string{"token": reg.EmailVerificationTokenPreview}, nil))

	var prefs notificationPreferencesBody
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/notifications/preferences", nil, &prefs))
	assert.True(t, prefs.EmailEnabled)

	require.Equal(t, http.StatusOK, b.do(http.MethodPut, "/api/notifications/preferences", notificationPreferencesBody{PushEnabled: true, Phone: " +15550100 "}, nil))
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/notifications/preferences", nil, &prefs))
	assert.Equal(t, notificationPreferencesBody{PushEnabled: true, Phone: "+15550100"}, prefs)

	sub := map[string]any{"endpoint": "https://push.example/abc", "keys": map[string]string{"p256dh": "p", "auth": "a"}}
	require.Equal(t, http.StatusCreated, b.do(http.MethodPost, "/api/notifications/subscribe", sub, nil))
	sub["expirationTime"] = nil
	require.Equal(t, http.StatusCreated, b.do(http.MethodPost, "/api/notifications/subscribe", sub, nil))

	var subs []subscriptionResponse
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/notifications/subscriptions", nil, &subs))
	require.Len(t, subs, 1)
	assert.Equal(t, "p", subs[0].Keys.P256dh)

	status, code := b.errorCode(http.MethodPost, "/api/notifications/subscribe", map[string]any{"endpoint": "https://push.example/x", "keys": map[string]string{"p256dh": "p"}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", code)

	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/notifications/unsubscribe", map[string]string{"endpoint": "https://push.example/abc"}, nil))
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/notifications/subscriptions", nil, &subs))
	assert.Empty(t, subs)

	var key vapidKeyResponse
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/notifications/vapid-public-key", nil, &key))
	assert.Equal(t, "vapid-key", key.PublicKey)
}

func TestEndToEnd_Healthz(t *testing.T) {
	app := newTestApp(t, nil)
	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))
}
