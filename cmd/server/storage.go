package main

import (
	"context"
	"fmt"
	"log/slog"

	"habittracker/internal/config"
	"habittracker/internal/service"
	"habittracker/internal/store/postgres"
	"habittracker/internal/store/sqlite"
)

// storage is one migrated backend behind the service store interfaces.
type storage struct {
	kind string

	users         service.UsersStore
	tokens        service.TokensStore
	identities    service.IdentitiesStore
	habits        service.HabitsStore
	notifications service.NotificationsStore

	ping  func(context.Context) error
	close func()
}

// openStorage picks Postgres when a DSN is configured and SQLite otherwise,
// then brings the schema up to date.
func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	if cfg.DBDSN != "" {
		pool, err := postgres.Open(ctx, cfg.DBDSN)
		if err != nil {
			return storage{}, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return storage{}, err
		}
		logger.Info("storage ready", "kind", "postgres")
		return storage{
			kind:          "postgres",
			users:         postgres.NewUsersStore(pool),
			tokens:        postgres.NewTokensStore(pool),
			identities:    postgres.NewIdentitiesStore(pool),
			habits:        postgres.NewHabitsStore(pool),
			notifications: postgres.NewNotificationsStore(pool),
			ping:          pool.Ping,
			close:         pool.Close,
		}, nil
	}

	db, err := sqlite.Open(ctx, cfg.SQLitePath)
	if err != nil {
		return storage{}, err
	}
	if err := sqlite.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return storage{}, fmt.Errorf("sqlite %s: %w", cfg.SQLitePath, err)
	}
	logger.Info("storage ready", "kind", "sqlite", "path", cfg.SQLitePath)
	return storage{
		kind:          "sqlite",
		users:         sqlite.NewUsersStore(db),
		tokens:        sqlite.NewTokensStore(db),
		identities:    sqlite.NewIdentitiesStore(db),
		habits:        sqlite.NewHabitsStore(db),
		notifications: sqlite.NewNotificationsStore(db),
		ping:          db.PingContext,
		close:         func() { _ = db.Close() },
	}, nil
}
