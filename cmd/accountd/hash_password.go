// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/accountd/internal/auth"
)

// NewHashPasswordCmd creates the hash-password subcommand.
func NewHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Hash a password read from stdin",
		Long: `Read one password line from stdin and print its argon2id hash using the
configured work factor. Useful for seeding accounts directly in the store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}

			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			password := strings.TrimRight(line, "\r\n")
			if password == "" {
				if err != nil {
					return oops.Code("PASSWORD_READ_FAILED").Wrap(err)
				}
				return oops.Code("PASSWORD_REQUIRED").Errorf("password is required on stdin")
			}

			hasher := auth.NewArgon2idHasherWithParams(auth.Argon2Params{
				Time:    cfg.Hasher.Time,
				Memory:  cfg.Hasher.MemoryKiB,
				Threads: cfg.Hasher.Threads,
			})
			hash, err := hasher.Hash(password)
			if err != nil {
				return err //nolint:wrapcheck // hasher returns an oops error
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
