// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/stockevaluator/authcore/internal/config"
	"github.com/stockevaluator/authcore/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// dotEnvFiles are loaded into the environment before configuration is read.
var dotEnvFiles = []string{".env"}

// NewRootCmd creates the root command for the authcore CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authcore",
		Short: "Authcore - account authentication service",
		Long: `Authcore registers accounts, issues JWT access and refresh tokens,
locks accounts after repeated login failures, and resets passwords.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/authcore/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewPurgeCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// loadConfig reads configuration for cmd from the config file, the
// environment and the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	// Without a home directory there is no default file to look for.
	defaultPath, err := xdg.DefaultConfigFile()
	if err != nil {
		defaultPath = ""
	}
	return config.Load(config.Options{
		Path:        configFile,
		DefaultPath: defaultPath,
		DotEnv:      dotEnvFiles,
		Flags:       cmd.Flags(),
	})
}
