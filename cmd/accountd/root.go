// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the accountd CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accountd",
		Short: "accountd - account registration, login, and recovery",
		Long: `accountd serves a small HTTP API for registering accounts, logging in,
recovering a forgotten username, and resetting a password by emailed code.`,
		SilenceUsage: true,
	}

	addConfigFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSchemaCmd())
	cmd.AddCommand(NewHashPasswordCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}
