package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"habittracker/internal/config"
)

func TestOpenStorageFallsBackToSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := config.Config{SQLitePath: filepath.Join(t.TempDir(), "nested", "habits.db")}

	st, err := openStorage(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("openStorage: %v", err)
	}
	defer st.close()

	if st.kind != "sqlite" {
		t.Fatalf("unexpected storage kind: %s", st.kind)
	}
	if err := st.ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if _, err := st.users.CreateUser(ctx, "a@b.com", "A", "hash", false); err != nil {
		t.Fatalf("create user: %v", err)
	}
}

func TestNewOAuthProvidersReflectsCredentials(t *testing.T) {
	cfg := config.Config{
		Google: config.OAuthConfig{ClientID: "id", ClientSecret: "secret", RedirectURL: "http://x/cb"},
	}
	providers := newOAuthProviders(cfg)
	if !providers["google"].Configured() {
		t.Fatalf("google should be configured")
	}
	if providers["github"].Configured() {
		t.Fatalf("github should not be configured")
	}
}
