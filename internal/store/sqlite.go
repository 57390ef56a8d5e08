// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/oops"
	// Register the pure-Go sqlite driver.
	_ "modernc.org/sqlite"
)

// sqlitePragmas are applied to every connection.
const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

// OpenSQLite opens the database file at path, creating it and its parent
// directory if needed. The handle uses a single connection so writes never
// contend for the file lock.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, oops.Code("SQLITE_PATH_REQUIRED").Errorf("sqlite path is required")
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o700); err != nil {
		return nil, oops.Code("SQLITE_OPEN_FAILED").
			With("operation", "create directory").
			With("path", cleanPath).
			Wrap(err)
	}

	db, err := sql.Open("sqlite", "file:"+cleanPath+"?"+sqlitePragmas)
	if err != nil {
		return nil, oops.Code("SQLITE_OPEN_FAILED").
			With("operation", "open").
			With("path", cleanPath).
			Wrap(err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close() //nolint:errcheck // ping error takes precedence
		return nil, oops.Code("SQLITE_OPEN_FAILED").
			With("operation", "ping").
			With("path", cleanPath).
			Wrap(err)
	}
	return db, nil
}
