// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accountd/internal/store"
	"github.com/holomush/accountd/pkg/errutil"
)

type fakeMigrator struct {
	version  uint
	dirty    bool
	pending  []uint
	applied  []uint
	upErr    error
	forced   int
	steps    int
	upCalled bool
	down     bool
	closed   bool
	closeErr error
}

func (m *fakeMigrator) Up() error {
	m.upCalled = true
	return m.upErr
}

func (m *fakeMigrator) Down() error                        { m.down = true; return nil }
func (m *fakeMigrator) Steps(n int) error                  { m.steps = n; return nil }
func (m *fakeMigrator) Version() (uint, bool, error)       { return m.version, m.dirty, nil }
func (m *fakeMigrator) Force(v int) error                  { m.forced = v; return nil }
func (m *fakeMigrator) PendingMigrations() ([]uint, error) { return m.pending, nil }
func (m *fakeMigrator) AppliedMigrations() ([]uint, error) { return m.applied, nil }
func (m *fakeMigrator) Close() error                       { m.closed = true; return m.closeErr }

func useMigrator(t *testing.T, m migrator) {
	t.Helper()
	orig := migratorFactory
	migratorFactory = func(*cobra.Command) (migrator, store.Driver, error) {
		return m, store.DriverSQLite, nil
	}
	t.Cleanup(func() { migratorFactory = orig })
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrateUp(t *testing.T) {
	t.Run("applies pending", func(t *testing.T) {
		m := &fakeMigrator{pending: []uint{1}}
		useMigrator(t, m)

		out, err := runRoot(t, "migrate", "up")
		require.NoError(t, err)
		assert.True(t, m.upCalled)
		assert.True(t, m.closed)
		assert.Contains(t, out, "Applied 000001_create_users")
	})

	t.Run("nothing pending", func(t *testing.T) {
		m := &fakeMigrator{}
		useMigrator(t, m)

		out, err := runRoot(t, "migrate", "up")
		require.NoError(t, err)
		assert.False(t, m.upCalled)
		assert.Contains(t, out, "No pending migrations")
	})

	t.Run("failure is returned", func(t *testing.T) {
		m := &fakeMigrator{pending: []uint{1}, upErr: errors.New("locked")}
		useMigrator(t, m)

		_, err := runRoot(t, "migrate", "up")
		require.Error(t, err)
		assert.True(t, m.closed)
	})

	t.Run("step count applies the next migrations", func(t *testing.T) {
		m := &fakeMigrator{pending: []uint{1, 2, 3}}
		useMigrator(t, m)

		out, err := runRoot(t, "migrate", "up", "1")
		require.NoError(t, err)
		assert.Equal(t, 1, m.steps)
		assert.False(t, m.upCalled)
		assert.Contains(t, out, "Applied 000001_create_users")
	})

	t.Run("step count covering everything runs up", func(t *testing.T) {
		m := &fakeMigrator{pending: []uint{1}}
		useMigrator(t, m)

		_, err := runRoot(t, "migrate", "up", "5")
		require.NoError(t, err)
		assert.True(t, m.upCalled)
		assert.Zero(t, m.steps)
	})

	t.Run("rejects a bad step count", func(t *testing.T) {
		for _, arg := range []string{"0", "all"} {
			useMigrator(t, &fakeMigrator{pending: []uint{1}})

			_, err := runRoot(t, "migrate", "up", arg)
			require.Error(t, err, arg)
			errutil.AssertErrorCode(t, err, "INVALID_STEPS")
		}
	})

	t.Run("close error surfaces", func(t *testing.T) {
		m := &fakeMigrator{closeErr: errors.New("close failed")}
		useMigrator(t, m)

		_, err := runRoot(t, "migrate", "up")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "close failed")
	})
}

func TestMigrateVersion(t *testing.T) {
	useMigrator(t, &fakeMigrator{version: 1, dirty: true, applied: []uint{1}})

	out, err := runRoot(t, "migrate", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Driver:  sqlite")
	assert.Contains(t, out, "Version: 1 (dirty)")
	assert.Contains(t, out, "Applied: 1")
	assert.Contains(t, out, "Pending: 0")
}

func TestMigrateDown(t *testing.T) {
	t.Run("rolls back everything", func(t *testing.T) {
		m := &fakeMigrator{}
		useMigrator(t, m)

		out, err := runRoot(t, "migrate", "down")
		require.NoError(t, err)
		assert.True(t, m.down)
		assert.Contains(t, out, "Rolled back all migrations")
	})

	t.Run("step count rolls back the latest", func(t *testing.T) {
		m := &fakeMigrator{applied: []uint{1}}
		useMigrator(t, m)

		out, err := runRoot(t, "migrate", "down", "3")
		require.NoError(t, err)
		assert.False(t, m.down)
		assert.Equal(t, -1, m.steps)
		assert.Contains(t, out, "Rolled back 000001_create_users")
	})

	t.Run("nothing applied", func(t *testing.T) {
		m := &fakeMigrator{}
		useMigrator(t, m)

		out, err := runRoot(t, "migrate", "down", "1")
		require.NoError(t, err)
		assert.Zero(t, m.steps)
		assert.Contains(t, out, "No applied migrations")
	})
}

func TestMigrateForce(t *testing.T) {
	t.Run("sets version", func(t *testing.T) {
		m := &fakeMigrator{}
		useMigrator(t, m)

		_, err := runRoot(t, "migrate", "force", "1")
		require.NoError(t, err)
		assert.Equal(t, 1, m.forced)
	})

	t.Run("rejects non-numeric version", func(t *testing.T) {
		useMigrator(t, &fakeMigrator{})

		_, err := runRoot(t, "migrate", "force", "latest")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "INVALID_VERSION")
	})

	t.Run("requires an argument", func(t *testing.T) {
		useMigrator(t, &fakeMigrator{})

		_, err := runRoot(t, "migrate", "force")
		require.Error(t, err)
	})
}

func TestMigrate_RealSQLite(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "accountd.db")

	out, err := runRoot(t, "migrate", "up", "--sqlite-path", path, "--env-file", "")
	require.NoError(t, err)
	assert.Contains(t, out, "Applied 000001_create_users")

	out, err = runRoot(t, "migrate", "version", "--sqlite-path", path, "--env-file", "")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: 1 (clean)")
	assert.Contains(t, out, "Applied: 1")

	out, err = runRoot(t, "migrate", "down", "1", "--sqlite-path", path, "--env-file", "")
	require.NoError(t, err)
	assert.Contains(t, out, "Rolled back 000001_create_users")

	out, err = runRoot(t, "migrate", "version", "--sqlite-path", path, "--env-file", "")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: 0 (clean)")
	assert.Contains(t, out, "Pending: 1")
}

func TestMigrate_PostgresRequiresURL(t *testing.T) {
	isolateEnv(t)

	_, err := runRoot(t, "migrate", "up", "--store", "postgres", "--env-file", "")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}
