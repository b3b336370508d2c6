// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package main

import (
	"context"
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/stockevaluator/authcore/internal/auth"
	"github.com/stockevaluator/authcore/internal/auth/postgres"
	"github.com/stockevaluator/authcore/internal/observability"
	"github.com/stockevaluator/authcore/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// DatabaseFactory opens the connection pool.
	// Default: postgres.Connect with postgres.DefaultConnectOptions
	DatabaseFactory func(ctx context.Context, url string) (Database, error)

	// HasherFactory creates the password hasher.
	// Default: auth.NewArgon2idHasher
	HasherFactory func() auth.PasswordHasher

	// SentryInit configures error reporting when a DSN is set.
	// Default: sentry.Init
	SentryInit func(opts sentry.ClientOptions) error

	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker, opts ...observability.ServerOption) ObservabilityServer

	// WebServerFactory creates the server for the /auth routes.
	// Default: web.NewServer
	WebServerFactory func(addr string, handler http.Handler) WebServer

	// OnReady, if set, is called with the bound addresses once every
	// server is accepting connections. metricsAddr is empty when disabled.
	OnReady func(webAddr, metricsAddr string)
}

// PurgeDeps contains injectable dependencies for the purge command.
type PurgeDeps struct {
	// DatabaseFactory opens the connection pool.
	// Default: postgres.Connect with postgres.DefaultConnectOptions
	DatabaseFactory func(ctx context.Context, url string) (Database, error)
}

// MigrateDeps contains injectable dependencies for the migrate commands.
type MigrateDeps struct {
	// MigratorFactory creates a migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(url string, opts ...store.MigratorOption) (Migrator, error)
}

// Database is the pool surface the commands use. *pgxpool.Pool and
// pgxmock.PgxPoolIface both satisfy it.
type Database interface {
	postgres.DB
	Ping(ctx context.Context) error
	Close()
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// WebServer interface wraps the methods used from web.Server.
type WebServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// Migrator interface wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

func connectDatabase(ctx context.Context, url string) (Database, error) {
	pool, err := postgres.Connect(ctx, url, postgres.DefaultConnectOptions())
	if err != nil {
		return nil, err
	}
	return pool, nil
}
