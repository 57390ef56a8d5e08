// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"path/filepath"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/accountd/internal/store"
	"github.com/holomush/accountd/internal/xdg"
)

// migrator is the subset of store.Migrator the migrate commands use.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	AppliedMigrations() ([]uint, error)
	Close() error
}

// migratorFactory opens a migrator for the configured store. Tests replace it.
var migratorFactory = func(cmd *cobra.Command) (migrator, store.Driver, error) {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return nil, "", err
	}
	driver, err := store.ParseDriver(cfg.Store.Driver)
	if err != nil {
		return nil, "", err //nolint:wrapcheck // ParseDriver returns an oops error
	}
	url := databaseURL(cfg, driver)
	switch driver {
	case store.DriverPostgres:
		if url == "" {
			return nil, "", oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
		}
	case store.DriverSQLite:
		if err := xdg.EnsureDir(filepath.Dir(url)); err != nil {
			return nil, "", err //nolint:wrapcheck // EnsureDir returns an oops error
		}
	}
	m, err := store.NewMigrator(driver, url)
	if err != nil {
		return nil, "", err //nolint:wrapcheck // NewMigrator returns an oops error
	}
	return m, driver, nil
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the user store schema",
		Long:  `Apply, roll back, or inspect the schema migrations of the configured store.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up [N]",
		Short: "Apply all pending migrations, or the next N",
		Args:  cobra.MaximumNArgs(1),
		RunE:  withMigrator(runMigrateUp),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down [N]",
		Short: "Roll back all migrations (deletes every account), or the last N",
		Args:  cobra.MaximumNArgs(1),
		RunE:  withMigrator(runMigrateDown),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE:  withMigrator(runMigrateVersion),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without migrating (recovers a dirty state)",
		Args:  cobra.ExactArgs(1),
		RunE:  withMigrator(runMigrateForce),
	})

	return cmd
}

type migrateFunc func(cmd *cobra.Command, args []string, m migrator, driver store.Driver) error

func withMigrator(fn migrateFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		m, driver, err := migratorFactory(cmd)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := m.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		return fn(cmd, args, m, driver)
	}
}

// parseSteps reads the optional step count. Zero means all.
func parseSteps(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return 0, oops.Code("INVALID_STEPS").
			With("steps", args[0]).
			Errorf("step count must be a positive integer, got %q", args[0])
	}
	return n, nil
}

func runMigrateUp(cmd *cobra.Command, args []string, m migrator, driver store.Driver) error {
	steps, err := parseSteps(args)
	if err != nil {
		return err
	}
	pending, err := m.PendingMigrations()
	if err != nil {
		return err //nolint:wrapcheck // migrator returns oops errors
	}
	if len(pending) == 0 {
		cmd.Println("No pending migrations")
		return nil
	}
	if steps > 0 && steps < len(pending) {
		pending = pending[:steps]
		err = m.Steps(steps)
	} else {
		err = m.Up()
	}
	if err != nil {
		return err //nolint:wrapcheck // migrator returns oops errors
	}
	for _, v := range pending {
		name, err := store.MigrationName(driver, v)
		if err != nil {
			return err //nolint:wrapcheck // store returns oops errors
		}
		cmd.Printf("Applied %s\n", name)
	}
	return nil
}

func runMigrateDown(cmd *cobra.Command, args []string, m migrator, driver store.Driver) error {
	steps, err := parseSteps(args)
	if err != nil {
		return err
	}
	if steps == 0 {
		if err := m.Down(); err != nil {
			return err //nolint:wrapcheck // migrator returns oops errors
		}
		cmd.Println("Rolled back all migrations")
		return nil
	}

	applied, err := m.AppliedMigrations()
	if err != nil {
		return err //nolint:wrapcheck // migrator returns oops errors
	}
	if len(applied) == 0 {
		cmd.Println("No applied migrations")
		return nil
	}
	steps = min(steps, len(applied))
	if err := m.Steps(-steps); err != nil {
		return err //nolint:wrapcheck // migrator returns oops errors
	}
	for i := len(applied) - 1; i >= len(applied)-steps; i-- {
		name, err := store.MigrationName(driver, applied[i])
		if err != nil {
			return err //nolint:wrapcheck // store returns oops errors
		}
		cmd.Printf("Rolled back %s\n", name)
	}
	return nil
}

func runMigrateVersion(cmd *cobra.Command, _ []string, m migrator, driver store.Driver) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err //nolint:wrapcheck // migrator returns oops errors
	}
	pending, err := m.PendingMigrations()
	if err != nil {
		return err //nolint:wrapcheck // migrator returns oops errors
	}
	applied, err := m.AppliedMigrations()
	if err != nil {
		return err //nolint:wrapcheck // migrator returns oops errors
	}

	state := "clean"
	if dirty {
		state = "dirty"
	}
	cmd.Printf("Driver:  %s\n", driver)
	cmd.Printf("Version: %d (%s)\n", version, state)
	cmd.Printf("Applied: %d\n", len(applied))
	cmd.Printf("Pending: %d\n", len(pending))
	return nil
}

func runMigrateForce(cmd *cobra.Command, args []string, m migrator, _ store.Driver) error {
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return oops.Code("INVALID_VERSION").With("version", args[0]).Wrap(err)
	}
	if err := m.Force(version); err != nil {
		return err //nolint:wrapcheck // migrator returns oops errors
	}
	cmd.Printf("Forced version %d\n", version)
	return nil
}
