// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/stockevaluator/authcore/internal/auth"
	"github.com/stockevaluator/authcore/internal/auth/postgres"
	"github.com/stockevaluator/authcore/internal/config"
	"github.com/stockevaluator/authcore/internal/logging"
	"github.com/stockevaluator/authcore/internal/observability"
	"github.com/stockevaluator/authcore/internal/web"
	"github.com/stockevaluator/authcore/pkg/errutil"
)

const (
	shutdownTimeout   = 5 * time.Second
	readinessTimeout  = 2 * time.Second
	limiterSweepEvery = time.Minute
	sentryFlushWait   = 2 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication HTTP service",
		Long: `Start the HTTP service for registration, login, token refresh and
password reset, together with the metrics and health server and the
expired reset token janitor.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}
}

// runServeWithDeps runs the service until ctx ends, a signal arrives or a
// server fails. If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if deps == nil {
		deps = &ServeDeps{}
	}

	if deps.DatabaseFactory == nil {
		deps.DatabaseFactory = connectDatabase
	}
	if deps.HasherFactory == nil {
		deps.HasherFactory = func() auth.PasswordHasher {
			return auth.NewArgon2idHasher()
		}
	}
	if deps.SentryInit == nil {
		deps.SentryInit = sentry.Init
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker, opts ...observability.ServerOption) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker, opts...)
		}
	}
	if deps.WebServerFactory == nil {
		deps.WebServerFactory = func(addr string, handler http.Handler) WebServer {
			return web.NewServer(addr, handler)
		}
	}

	logger := logging.Setup("authcore", version, cfg.Log.Format, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	key, err := cfg.SigningKey()
	if err != nil {
		return err
	}
	codec, err := auth.NewTokenCodec(key, auth.WithIssuer(cfg.Auth.Issuer))
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "auth.signing_key").Wrap(err)
	}

	if dsn := cfg.Sentry.DSN.Reveal(); dsn != "" {
		if err := deps.SentryInit(sentry.ClientOptions{
			Dsn:         dsn,
			Environment: cfg.Sentry.Environment,
			Release:     "authcore@" + version,
		}); err != nil {
			return oops.Code("SENTRY_INIT_FAILED").With("operation", "initialize error reporting").Wrap(err)
		}
		defer sentry.Flush(sentryFlushWait)
		logger.Info("error reporting enabled", "environment", cfg.Sentry.Environment)
	}

	logger.Info("starting authcore",
		"http_addr", cfg.HTTP.Addr,
		"metrics_addr", cfg.Metrics.Addr,
		"log_format", cfg.Log.Format,
	)

	db, err := deps.DatabaseFactory(ctx, cfg.Database.URL.Reveal())
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()
	logger.Info("connected to database")

	hasher := deps.HasherFactory()
	tx := postgres.NewTransactor(db)
	accounts := postgres.NewAccountRepository(db)

	refreshTokens := postgres.NewRefreshTokenRepository(db)

	svc, err := auth.NewAuthService(auth.ServiceDeps{
		Accounts:      accounts,
		RefreshTokens: refreshTokens,
		Transactor:    tx,
		Hasher:        hasher,
		Codec:         codec,
	},
		auth.WithTokenTTLs(cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL),
		auth.WithLockoutPolicy(cfg.LockoutPolicy()),
		auth.WithLogger(logger),
	)
	if err != nil {
		return oops.With("operation", "create auth service").Wrap(err)
	}

	resets, err := auth.NewPasswordResetService(auth.ResetServiceDeps{
		Accounts:      accounts,
		Resets:        postgres.NewPasswordResetRepository(db),
		RefreshTokens: refreshTokens,
		Transactor:    tx,
		Hasher:        hasher,
	},
		auth.WithResetTTL(cfg.Auth.ResetTTL),
		auth.WithResetLogger(logger),
	)
	if err != nil {
		return oops.With("operation", "create password reset service").Wrap(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	serverErrs := make(chan error, 2)

	limiter := web.NewClientLimiter(cfg.HTTP.LoginRate, cfg.HTTP.LoginBurst)
	go limiter.Run(ctx, limiterSweepEvery)

	shutdownCtx := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.Background(), shutdownTimeout)
	}

	handlerOpts := []web.Option{
		web.WithLoginLimiter(limiter),
		web.WithTrustedProxy(cfg.HTTP.TrustProxy),
		web.WithHandlerLogger(logger),
	}

	var obsServer ObservabilityServer
	if cfg.Metrics.Addr != "" {
		ready := func() bool {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), readinessTimeout)
			defer pingCancel()
			return db.Ping(pingCtx) == nil
		}
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, ready,
			observability.WithCollectors(auth.RegisterMetrics),
			observability.WithServerLogger(logger),
		)

		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		defer func() {
			stopCtx, stopCancel := shutdownCtx()
			defer stopCancel()
			if err := obsServer.Stop(stopCtx); err != nil {
				logger.Warn("error stopping observability server", "error", err)
			}
		}()
		go monitorServerErrors(ctx, obsErrChan, serverErrs, "observability")
		handlerOpts = append(handlerOpts, web.WithMetrics(obsServer.Metrics()))
	}

	handler, err := web.NewHandler(svc, resets, handlerOpts...)
	if err != nil {
		return oops.With("operation", "create web handler").Wrap(err)
	}

	webServer := deps.WebServerFactory(cfg.HTTP.Addr, handler.Routes())
	webErrChan, err := webServer.Start()
	if err != nil {
		return oops.With("operation", "start web server").Wrap(err)
	}
	defer func() {
		stopCtx, stopCancel := shutdownCtx()
		defer stopCancel()
		if err := webServer.Stop(stopCtx); err != nil {
			logger.Warn("error stopping web server", "error", err)
		}
	}()
	go monitorServerErrors(ctx, webErrChan, serverErrs, "web")

	janitor := auth.NewJanitor(resets, cfg.Purge.Interval, logger)
	janitor.Start(ctx)
	defer janitor.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	metricsAddr := ""
	if obsServer != nil {
		metricsAddr = obsServer.Addr()
	}
	logger.Info("authcore ready", "http_addr", webServer.Addr(), "metrics_addr", metricsAddr)
	if deps.OnReady != nil {
		deps.OnReady(webServer.Addr(), metricsAddr)
	}

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case runErr = <-serverErrs:
		errutil.LogError(ctx, logger, "server failed, shutting down", runErr)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	// Deferred stops run in reverse: janitor, web, observability, pool.
	logger.Info("shutting down")
	return runErr
}

// monitorServerErrors forwards the first error from errCh to out, tagged
// with the server name. It returns when errCh closes or ctx ends.
func monitorServerErrors(ctx context.Context, errCh <-chan error, out chan<- error, name string) {
	select {
	case err, ok := <-errCh:
		if !ok || err == nil {
			return
		}
		select {
		case out <- oops.Code("SERVER_FAILED").With("server", name).Wrap(err):
		default:
		}
	case <-ctx.Done():
	}
}
