// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store opens accountd's databases and manages their schema.
package store

import "github.com/samber/oops"

// Driver names a supported database backend.
type Driver string

// Supported drivers.
const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// ParseDriver validates a driver name from configuration.
func ParseDriver(name string) (Driver, error) {
	switch d := Driver(name); d {
	case DriverPostgres, DriverSQLite:
		return d, nil
	default:
		return "", oops.Code("UNKNOWN_DRIVER").
			With("driver", name).
			Errorf("unknown store driver %q (want postgres or sqlite)", name)
	}
}
