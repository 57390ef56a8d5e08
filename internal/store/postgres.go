// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Default connection retry settings.
const (
	DefaultConnectAttempts = 5
	DefaultConnectBackoff  = 500 * time.Millisecond
)

// PostgresOptions tunes OpenPostgres.
type PostgresOptions struct {
	// Attempts is the number of pings before giving up.
	// Defaults to DefaultConnectAttempts if zero or negative.
	Attempts int

	// Backoff is the initial delay between pings; it doubles each attempt.
	// Defaults to DefaultConnectBackoff if zero or negative.
	Backoff time.Duration

	// Logger receives a line per failed ping. Defaults to a discard logger.
	Logger *slog.Logger
}

// OpenPostgres creates a connection pool and waits until the server answers
// a ping, retrying with exponential backoff.
func OpenPostgres(ctx context.Context, dsn string, opts PostgresOptions) (*pgxpool.Pool, error) {
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultConnectAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultConnectBackoff
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("POSTGRES_CONFIG_INVALID").
			With("operation", "create pool").
			Wrap(err)
	}

	attempt := 0
	backoff := retry.WithMaxRetries(uint64(opts.Attempts-1), retry.NewExponential(opts.Backoff)) //nolint:gosec // Attempts is positive
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if pingErr := pool.Ping(ctx); pingErr != nil {
			opts.Logger.Warn("postgres not ready",
				"attempt", attempt,
				"max_attempts", opts.Attempts,
				"error", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("POSTGRES_CONNECT_FAILED").
			With("operation", "ping").
			With("attempts", attempt).
			Wrap(err)
	}
	return pool, nil
}
