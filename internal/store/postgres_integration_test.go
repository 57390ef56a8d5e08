// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/accountd/internal/store"
)

// startPostgres starts a PostgreSQL container and returns its connection string.
func startPostgres(ctx context.Context) (string, func(), error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("accountd_test"),
		postgres.WithUsername("accountd"),
		postgres.WithPassword("accountd"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return "", nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return "", nil, err
	}

	return connStr, func() { _ = container.Terminate(ctx) }, nil
}

var _ = Describe("Postgres store", func() {
	var (
		ctx     context.Context
		connStr string
		cleanup func()
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		connStr, cleanup, err = startPostgres(ctx)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		cleanup()
	})

	Describe("OpenPostgres", func() {
		It("connects on the first attempt when the server is up", func() {
			pool, err := store.OpenPostgres(ctx, connStr, store.PostgresOptions{Attempts: 1})
			Expect(err).NotTo(HaveOccurred())
			defer pool.Close()

			var one int
			Expect(pool.QueryRow(ctx, "SELECT 1").Scan(&one)).To(Succeed())
			Expect(one).To(Equal(1))
		})
	})

	Describe("Migrator", func() {
		var (
			migrator *store.Migrator
			pool     *pgxpool.Pool
		)

		BeforeEach(func() {
			var err error
			migrator, err = store.NewMigrator(store.DriverPostgres, connStr)
			Expect(err).NotTo(HaveOccurred())
			pool, err = store.OpenPostgres(ctx, connStr, store.PostgresOptions{})
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			pool.Close()
			Expect(migrator.Close()).To(Succeed())
		})

		It("creates the users table", func() {
			Expect(migrator.Up()).To(Succeed())

			version, dirty, err := migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal(uint(1)))
			Expect(dirty).To(BeFalse())

			var exists bool
			err = pool.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'users')`).Scan(&exists)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue())
		})

		It("enforces case-insensitive uniqueness on username and email", func() {
			Expect(migrator.Up()).To(Succeed())

			_, err := pool.Exec(ctx,
				`INSERT INTO users (name, username, email, password_hash) VALUES ('Ada', 'ada', 'ada@example.com', 'x')`)
			Expect(err).NotTo(HaveOccurred())

			_, err = pool.Exec(ctx,
				`INSERT INTO users (name, username, email, password_hash) VALUES ('Ada', 'ADA', 'other@example.com', 'x')`)
			Expect(err).To(HaveOccurred())

			_, err = pool.Exec(ctx,
				`INSERT INTO users (name, username, email, password_hash) VALUES ('Ada', 'ada2', 'ADA@example.com', 'x')`)
			Expect(err).To(HaveOccurred())
		})

		It("rolls back cleanly", func() {
			Expect(migrator.Up()).To(Succeed())
			Expect(migrator.Down()).To(Succeed())

			pending, err := migrator.PendingMigrations()
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(Equal([]uint{1}))
		})
	})
})
