package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"habittracker/internal/auth"
	"habittracker/internal/config"
	"habittracker/internal/httpapi"
	"habittracker/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if cfg.JWTSecret == "" {
		logger.Warn("APP_JWT_SECRET is not set; session endpoints will answer 500")
	}

	ctx := context.Background()
	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("storage init failed", "err", err)
		os.Exit(1)
	}
	defer st.close()

	authSvc := &service.AuthService{
		Users:    st.users,
		Tokens:   &service.TokenIssuer{Store: st.tokens},
		Sessions: auth.NewSessionIssuer([]byte(cfg.JWTSecret), cfg.SessionTTL),
		Logger:   logger,
	}
	oauthSvc := &service.OAuthService{
		Providers:  newOAuthProviders(cfg),
		Users:      st.users,
		Identities: st.identities,
		Auth:       authSvc,
		Logger:     logger,
	}
	for name, p := range oauthSvc.Providers {
		logger.Info("oauth provider", "provider", name, "configured", p.Configured())
	}

	router := httpapi.NewRouter(httpapi.RouterOpts{
		Logger:         logger,
		IsProd:         cfg.IsProd(),
		DBPing:         st.ping,
		Auth:           authSvc,
		OAuth:          oauthSvc,
		Habits:         &service.HabitService{Habits: st.habits},
		Notifications:  &service.NotificationService{Store: st.notifications},
		CookieSecure:   cfg.CookieSecure(),
		ClientOrigin:   cfg.ClientOrigin,
		TokenPreviews:  cfg.TokenPreviews,
		VAPIDPublicKey: cfg.VAPIDPublicKey,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr, "storage", st.kind)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}
}

func newOAuthProviders(cfg config.Config) auth.OAuthProviders {
	client := func(c config.OAuthConfig) auth.OAuthClientConfig {
		return auth.OAuthClientConfig{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Timeout:      cfg.OAuthTimeout,
		}
	}
	return auth.OAuthProviders{
		auth.ProviderGoogle: auth.NewGoogleProvider(client(cfg.Google)),
		auth.ProviderGitHub: auth.NewGitHubProvider(client(cfg.GitHub)),
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
