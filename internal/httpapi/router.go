package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"habittracker/internal/service"
)

const (
	DefaultAuthRateLimit  = 100
	DefaultAuthRateWindow = 15 * time.Minute
)

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	DBPing func(context.Context) error

	Auth          *service.AuthService
	OAuth         *service.OAuthService
	Habits        *service.HabitService
	Notifications *service.NotificationService

	CookieSecure bool
	// ClientOrigin is the browser client: the CORS origin and the place
	// OAuth logins land.
	ClientOrigin string
	// TokenPreviews echoes verification and reset tokens in responses, for
	// setups with no mail delivery.
	TokenPreviews  bool
	VAPIDPublicKey string

	// AuthRateLimit requests per AuthRateWindow per client IP on /api/auth.
	AuthRateLimit  int
	AuthRateWindow time.Duration
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.AuthRateLimit <= 0 {
		opts.AuthRateLimit = DefaultAuthRateLimit
	}
	if opts.AuthRateWindow <= 0 {
		opts.AuthRateWindow = DefaultAuthRateWindow
	}

	api := &api{
		logger:           logger,
		isProd:           opts.IsProd,
		dbPing:           opts.DBPing,
		authSvc:          opts.Auth,
		oauthSvc:         opts.OAuth,
		habitsSvc:        opts.Habits,
		notificationsSvc: opts.Notifications,
		cookieSecure:     opts.CookieSecure,
		clientOrigin:     opts.ClientOrigin,
		tokenPreviews:    opts.TokenPreviews,
		vapidPublicKey:   opts.VAPIDPublicKey,
	}

	r := chi.NewRouter()
	r.Use(Recoverer(logger, opts.IsProd))
	r.Use(RequestID())
	r.Use(RequestLogger(logger))
	r.Use(middleware.RealIP)
	r.Use(CORS(opts.ClientOrigin))

	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleMethodNotAllowed)

	r.Get("/healthz", api.handleHealthz)

	r.Route("/api", func(r chi.Router) {
		if api.authSvc == nil {
			r.HandleFunc("/auth/*", handleNotImplemented)
			return
		}

		r.Route("/auth", func(r chi.Router) {
			r.Use(httprate.Limit(
				opts.AuthRateLimit,
				opts.AuthRateWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(handleRateLimited),
			))

			r.Get("/csrf", api.handleCSRFToken)
			r.With(api.requireAuth).Get("/me", api.handleAuthMe)

			r.Group(func(r chi.Router) {
				r.Use(api.requireCSRF)
				r.Post("/register", api.handleAuthRegister)
				r.Post("/login", api.handleAuthLogin)
				r.Post("/logout", api.handleAuthLogout)
				r.Post("/verify-email", api.handleAuthVerifyEmail)
				r.Post("/password-reset/request", api.handlePasswordResetRequest)
				r.Post("/password-reset/confirm", api.handlePasswordResetConfirm)
			})

			if api.oauthSvc != nil {
				r.Get("/{provider}", api.handleOAuthRedirect)
				r.Get("/{provider}/callback", api.handleOAuthCallback)
			}
		})

		r.Get("/notifications/vapid-public-key", api.handleVAPIDPublicKey)

		r.Group(func(r chi.Router) {
			r.Use(api.requireAuth)
			r.Use(api.requireCSRF)

			if api.habitsSvc != nil {
				r.Get("/habits", api.handleHabitsList)
				r.Post("/habits", api.handleHabitsCreate)
				r.Delete("/habits/{id}", api.handleHabitsDelete)

				r.Get("/tracking", api.handleTrackingList)
				r.Get("/tracking/{habitId}", api.handleTrackingForHabit)
				r.Post("/tracking", api.handleTrackingSet)

				r.Get("/suggestions/{habitId}", api.handleSuggestionsList)
				r.Post("/suggestions", api.handleSuggestionsCreate)
			}

			if api.notificationsSvc != nil {
				r.Get("/notifications/preferences", api.handleNotificationPreferences)
				r.Put("/notifications/preferences", api.handleNotificationPreferencesUpdate)
				r.Get("/notifications/subscriptions", api.handleNotificationSubscriptions)
				r.Post("/notifications/subscribe", api.handleNotificationSubscribe)
				r.Post("/notifications/unsubscribe", api.handleNotificationUnsubscribe)
			}
		})
	})

	return r
}

func handleNotImplemented(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotImplemented, "not_implemented", "Not implemented")
}

func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, "not_found", "Not found")
}

func handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
}

func handleRateLimited(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests, please try again later")
}

type api struct {
	logger *slog.Logger
	isProd bool

	dbPing func(context.Context) error

	authSvc          *service.AuthService
	oauthSvc         *service.OAuthService
	habitsSvc        *service.HabitService
	notificationsSvc *service.NotificationService

	cookieSecure   bool
	clientOrigin   string
	tokenPreviews  bool
	vapidPublicKey string
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if a.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := a.dbPing(ctx); err != nil {
			a.logger.Error("healthz: db ping failed", "err", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db down"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}
