// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/holomush/accountd/internal/auth"
	authpostgres "github.com/holomush/accountd/internal/auth/postgres"
	authsqlite "github.com/holomush/accountd/internal/auth/sqlite"
	"github.com/holomush/accountd/internal/notify"
	"github.com/holomush/accountd/internal/observability"
	"github.com/holomush/accountd/internal/store"
	"github.com/holomush/accountd/internal/xdg"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// UserStoreOpener opens the configured user store, migrating it first
	// when auto-migrate is on. The returned func releases the connection.
	// Default: openUserStore
	UserStoreOpener func(ctx context.Context, cfg *Config, logger *slog.Logger) (auth.UserRepository, func(), error)

	// NotifierFactory builds the email notifier for the configured driver.
	// Default: newNotifier
	NotifierFactory func(cfg *Config, logger *slog.Logger) (auth.Notifier, error)

	// TracingSetup installs the trace exporter.
	// Default: observability.SetupTracing
	TracingSetup func(ctx context.Context, cfg observability.TracingConfig) (observability.ShutdownFunc, error)

	// LogWriter receives log output. Default: os.Stderr
	LogWriter io.Writer

	// OnReady is called with the bound API address once serving starts.
	OnReady func(apiAddr string)
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.UserStoreOpener == nil {
		out.UserStoreOpener = openUserStore
	}
	if out.NotifierFactory == nil {
		out.NotifierFactory = newNotifier
	}
	if out.TracingSetup == nil {
		out.TracingSetup = observability.SetupTracing
	}
	if out.OnReady == nil {
		out.OnReady = func(string) {}
	}
	return &out
}

// databaseURL returns the connection string the migrator uses for cfg.
func databaseURL(cfg *Config, driver store.Driver) string {
	if driver == store.DriverPostgres {
		return cfg.Secrets.DatabaseURL
	}
	return cfg.Store.SQLitePath
}

// openUserStore opens the user repository for cfg.Store.Driver.
func openUserStore(ctx context.Context, cfg *Config, logger *slog.Logger) (auth.UserRepository, func(), error) {
	driver, err := store.ParseDriver(cfg.Store.Driver)
	if err != nil {
		return nil, nil, err //nolint:wrapcheck // ParseDriver returns an oops error
	}

	if driver == store.DriverSQLite {
		if err := xdg.EnsureDir(filepath.Dir(cfg.Store.SQLitePath)); err != nil {
			return nil, nil, err //nolint:wrapcheck // EnsureDir returns an oops error
		}
	}

	if cfg.Store.AutoMigrate {
		if err := migrateUp(driver, databaseURL(cfg, driver), logger); err != nil {
			return nil, nil, err
		}
	}

	switch driver {
	case store.DriverPostgres:
		pool, err := store.OpenPostgres(ctx, cfg.Secrets.DatabaseURL, store.PostgresOptions{Logger: logger})
		if err != nil {
			return nil, nil, err //nolint:wrapcheck // OpenPostgres returns an oops error
		}
		logger.Info("connected to database", "driver", string(driver))
		return authpostgres.NewUserRepository(pool), pool.Close, nil
	default:
		db, err := store.OpenSQLite(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err //nolint:wrapcheck // OpenSQLite returns an oops error
		}
		logger.Info("opened database", "driver", string(driver), "path", cfg.Store.SQLitePath)
		closeDB := func() {
			if err := db.Close(); err != nil {
				logger.Warn("failed to close database", "error", err)
			}
		}
		return authsqlite.NewUserRepository(db), closeDB, nil
	}
}

// migrateUp applies pending migrations.
func migrateUp(driver store.Driver, url string, logger *slog.Logger) error {
	migrator, err := store.NewMigrator(driver, url)
	if err != nil {
		return err //nolint:wrapcheck // NewMigrator returns an oops error
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	pending, err := migrator.PendingMigrations()
	if err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").Wrap(err)
	}
	if len(pending) == 0 {
		logger.Debug("database schema up to date")
		return nil
	}
	if err := migrator.Up(); err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").Wrap(err)
	}
	logger.Info("applied migrations", "driver", string(driver), "versions", pending)
	return nil
}

// newNotifier builds the notifier for cfg.Mail.Driver.
func newNotifier(cfg *Config, logger *slog.Logger) (auth.Notifier, error) {
	switch cfg.Mail.Driver {
	case mailDriverPostmark:
		n, err := notify.NewPostmarkNotifier(&http.Client{}, notify.PostmarkSettings{
			ServerToken: cfg.Secrets.PostmarkServerToken,
			From:        cfg.Mail.From,
		})
		if err != nil {
			return nil, err //nolint:wrapcheck // constructor returns an oops error
		}
		return n, nil
	case mailDriverSMTP:
		n, err := notify.NewSMTPNotifier(notify.SMTPSettings{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			Username: cfg.Secrets.SMTPUsername,
			Password: cfg.Secrets.SMTPPassword,
			From:     cfg.Mail.From,
		})
		if err != nil {
			return nil, err //nolint:wrapcheck // constructor returns an oops error
		}
		return n, nil
	case mailDriverLog:
		return notify.NewLogNotifier(logger, cfg.Mail.LogBody), nil
	default:
		return nil, oops.Code("CONFIG_INVALID").With("key", "mail.driver").Errorf("unknown mail driver %q", cfg.Mail.Driver)
	}
}

// newAuthService wires the service for cfg. reg may be nil.
func newAuthService(
	cfg *Config,
	users auth.UserRepository,
	notifier auth.Notifier,
	reg prometheus.Registerer,
	logger *slog.Logger,
) (*auth.Service, error) {
	limiter, err := auth.NewRateLimiterWithRegistry(auth.RateLimiterConfig{
		Window: cfg.RateLimit.Window,
		Max:    cfg.RateLimit.Max,
		Exempt: cfg.RateLimit.Exempt,
	}, reg)
	if err != nil {
		return nil, err //nolint:wrapcheck // limiter returns an oops error
	}

	codes := auth.NewResetCodeRegistry(auth.ResetCodeConfig{TTL: cfg.Reset.CodeTTL})
	hasher := auth.NewArgon2idHasherWithParams(auth.Argon2Params{
		Time:    cfg.Hasher.Time,
		Memory:  cfg.Hasher.MemoryKiB,
		Threads: cfg.Hasher.Threads,
	})
	instrumented := notify.NewInstrumented(notifier, cfg.Mail.Driver, reg)

	return auth.NewServiceWithLogger(users, codes, limiter, hasher, instrumented, logger) //nolint:wrapcheck // constructor returns an oops error
}
