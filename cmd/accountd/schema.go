// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/accountd/internal/web"
)

// NewSchemaCmd creates the schema subcommand.
func NewSchemaCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "schema [NAME...]",
		Short: "Print the JSON Schemas of the API request bodies",
		Long: `Print the JSON Schema of each request body the API accepts.
With --out, write each schema to NAME.schema.json in that directory instead.`,
		ValidArgs: web.SchemaNames(),
		Args:      cobra.OnlyValidArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := args
			if len(names) == 0 {
				names = web.SchemaNames()
			}
			for _, name := range names {
				data, err := web.GenerateSchema(name)
				if err != nil {
					return err //nolint:wrapcheck // GenerateSchema returns an oops error
				}
				if outDir == "" {
					fmt.Fprintln(cmd.OutOrStdout(), string(data))
					continue
				}
				path := filepath.Join(outDir, name+".schema.json")
				if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
					return oops.Code("SCHEMA_WRITE_FAILED").With("path", path).Wrap(err)
				}
				cmd.Printf("Generated %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "", "directory to write schema files to")
	return cmd
}
