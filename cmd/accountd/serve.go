// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/holomush/accountd/internal/logging"
	"github.com/holomush/accountd/internal/observability"
	"github.com/holomush/accountd/internal/web"
	"github.com/holomush/accountd/pkg/errutil"
)

const serviceName = "accountd"

// shutdownTimeout bounds graceful shutdown of the HTTP servers.
const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the account API server",
		Long: `Start the HTTP API for registration, login, and account recovery,
plus the metrics and health endpoints. Stops gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServeWithDeps(ctx, cfg, nil)
		},
	}
}

// runServeWithDeps runs the API until ctx is cancelled or a server fails.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *Config, deps *ServeDeps) error {
	deps = deps.withDefaults()

	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err //nolint:wrapcheck // ParseLevel returns an oops error
	}
	logger := logging.Setup(serviceName, version, cfg.Log.Format, level, deps.LogWriter)
	slog.SetDefault(logger)

	logger.Info("starting accountd",
		"http_addr", cfg.HTTP.Addr,
		"metrics_addr", cfg.Metrics.Addr,
		"store", cfg.Store.Driver,
		"mail", cfg.Mail.Driver)

	shutdownTracing, err := deps.TracingSetup(ctx, observability.TracingConfig{
		Endpoint:       cfg.Tracing.Endpoint,
		ServiceName:    serviceName,
		ServiceVersion: version,
		SampleRatio:    cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return err //nolint:wrapcheck // tracing setup returns an oops error
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	users, closeStore, err := deps.UserStoreOpener(ctx, cfg, logger)
	if err != nil {
		err = oops.Code("SERVE_STORE_FAILED").With("driver", cfg.Store.Driver).Wrap(err)
		errutil.LogError(logger, "failed to open user store", err)
		return err
	}
	defer closeStore()

	var apiServer *web.Server
	var obsServer *observability.Server
	var reg prometheus.Registerer
	var observer web.RequestObserver
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServerWithLogger(cfg.Metrics.Addr, func() bool {
			return apiServer.Ready()
		}, logger)
		reg = obsServer.Registry()
		observer = obsServer.Metrics()
	}

	notifier, err := deps.NotifierFactory(cfg, logger)
	if err != nil {
		return oops.Code("SERVE_NOTIFIER_FAILED").With("driver", cfg.Mail.Driver).Wrap(err)
	}

	svc, err := newAuthService(cfg, users, notifier, reg, logger)
	if err != nil {
		return oops.Code("SERVE_SERVICE_FAILED").Wrap(err)
	}

	apiServer, err = web.NewServerWithLogger(web.Config{
		Addr:       cfg.HTTP.Addr,
		TrustProxy: cfg.HTTP.TrustProxy,
	}, svc, observer, logger)
	if err != nil {
		return oops.Code("SERVE_API_FAILED").Wrap(err)
	}

	apiErrs, err := apiServer.Start()
	if err != nil {
		return err //nolint:wrapcheck // Start returns an oops error
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watchServer(gctx, "api", apiErrs) })

	if obsServer != nil {
		obsErrs, err := obsServer.Start()
		if err != nil {
			stopServers(logger, apiServer, nil)
			return err //nolint:wrapcheck // Start returns an oops error
		}
		g.Go(func() error { return watchServer(gctx, "observability", obsErrs) })
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		stopServers(logger, apiServer, obsServer)
		return nil
	})

	deps.OnReady(apiServer.Addr())

	if err := g.Wait(); err != nil {
		errutil.LogError(logger, "server failed", err)
		return err //nolint:wrapcheck // watchServer returns an oops error
	}
	logger.Info("accountd stopped")
	return nil
}

// watchServer returns an error if the server fails before ctx is done.
func watchServer(ctx context.Context, name string, errs <-chan error) error {
	select {
	case err, ok := <-errs:
		if ok && err != nil {
			return oops.Code("SERVER_FAILED").With("server", name).Wrap(err)
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}

// stopServers shuts the servers down within shutdownTimeout.
func stopServers(logger *slog.Logger, api *web.Server, obs *observability.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if api != nil {
		if err := api.Stop(ctx); err != nil {
			logger.Warn("failed to stop api server", "error", err)
		}
	}
	if obs != nil {
		if err := obs.Stop(ctx); err != nil {
			logger.Warn("failed to stop observability server", "error", err)
		}
	}
}
