// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package main

import (
	"context"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/stockevaluator/authcore/internal/auth"
	"github.com/stockevaluator/authcore/internal/auth/postgres"
	"github.com/stockevaluator/authcore/internal/config"
	"github.com/stockevaluator/authcore/internal/logging"
)

// NewPurgeCmd creates the purge subcommand.
func NewPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired password reset tokens once",
		Long: `Delete every expired password reset token and exit. The serve command
runs the same purge periodically.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runPurgeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}
}

func runPurgeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *PurgeDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if deps == nil {
		deps = &PurgeDeps{}
	}
	if deps.DatabaseFactory == nil {
		deps.DatabaseFactory = connectDatabase
	}

	db, err := deps.DatabaseFactory(ctx, cfg.Database.URL.Reveal())
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()

	// The hasher is required by the service but never used when purging.
	resets, err := auth.NewPasswordResetService(auth.ResetServiceDeps{
		Accounts:      postgres.NewAccountRepository(db),
		Resets:        postgres.NewPasswordResetRepository(db),
		RefreshTokens: postgres.NewRefreshTokenRepository(db),
		Transactor:    postgres.NewTransactor(db),
		Hasher:        auth.NewArgon2idHasher(),
	}, auth.WithResetLogger(logging.Setup("authcore", version, cfg.Log.Format, cmd.ErrOrStderr())))
	if err != nil {
		return oops.With("operation", "create password reset service").Wrap(err)
	}

	n, err := resets.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Purged %d expired password reset tokens\n", n)
	return nil
}
