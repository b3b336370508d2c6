// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package main

import "github.com/spf13/cobra"

// NewVersionCmd creates the version subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Printf("authcore %s\n", versionString())
			return nil
		},
	}
}
