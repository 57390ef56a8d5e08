// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package postgres_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/accountd/internal/auth"
	"github.com/holomush/accountd/internal/auth/postgres"
	"github.com/holomush/accountd/internal/store"
)

var (
	pool      *pgxpool.Pool
	container *tcpostgres.PostgresContainer
)

var _ = BeforeSuite(func() {
	ctx := context.Background()

	var err error
	container, err = tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("accountd_test"),
		tcpostgres.WithUsername("accountd"),
		tcpostgres.WithPassword("accountd"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	Expect(err).NotTo(HaveOccurred())

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())

	migrator, err := store.NewMigrator(store.DriverPostgres, connStr)
	Expect(err).NotTo(HaveOccurred())
	Expect(migrator.Up()).To(Succeed())
	Expect(migrator.Close()).To(Succeed())

	pool, err = store.OpenPostgres(ctx, connStr, store.PostgresOptions{})
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if pool != nil {
		pool.Close()
	}
	if container != nil {
		_ = container.Terminate(context.Background())
	}
})

var _ = Describe("UserRepository", func() {
	var (
		ctx  context.Context
		repo *postgres.UserRepository
	)

	newUser := func(username, email string) *auth.User {
		user, err := auth.NewUser("Ada Lovelace", username, email, "$argon2id$hash")
		Expect(err).NotTo(HaveOccurred())
		return user
	}

	BeforeEach(func() {
		ctx = context.Background()
		repo = postgres.NewUserRepository(pool)
		_, err := pool.Exec(ctx, "TRUNCATE users RESTART IDENTITY")
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Create", func() {
		It("assigns an ID", func() {
			user := newUser("ada", "ada@example.com")
			Expect(repo.Create(ctx, user)).To(Succeed())
			Expect(user.ID).To(Equal(int64(1)))
		})

		DescribeTable("rejects duplicates regardless of case",
			func(username, email string) {
				Expect(repo.Create(ctx, newUser("ada", "ada@example.com"))).To(Succeed())
				err := repo.Create(ctx, newUser(username, email))
				Expect(err).To(MatchError(auth.ErrConflict))
			},
			Entry("same username", "ada", "other@example.com"),
			Entry("username in other case", "ADA", "other@example.com"),
			Entry("same email", "countess", "ada@example.com"),
			Entry("email in other case", "countess", "ADA@EXAMPLE.COM"),
		)
	})

	Describe("lookups", func() {
		var created *auth.User

		BeforeEach(func() {
			created = newUser("ada", "ada@example.com")
			Expect(repo.Create(ctx, created)).To(Succeed())
		})

		It("finds by username ignoring case", func() {
			got, err := repo.GetByUsername(ctx, "Ada")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(created.ID))
			Expect(got.Email).To(Equal("ada@example.com"))
		})

		It("finds by email ignoring case", func() {
			got, err := repo.GetByEmail(ctx, "Ada@Example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Username).To(Equal("ada"))
		})

		It("reports unknown users as not found", func() {
			_, err := repo.GetByUsername(ctx, "grace")
			Expect(err).To(MatchError(auth.ErrNotFound))
			_, err = repo.GetByEmail(ctx, "grace@example.com")
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})

	Describe("UpdatePassword", func() {
		It("replaces the hash", func() {
			Expect(repo.Create(ctx, newUser("ada", "ada@example.com"))).To(Succeed())
			Expect(repo.UpdatePassword(ctx, "ADA@example.com", "$argon2id$new")).To(Succeed())

			got, err := repo.GetByEmail(ctx, "ada@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.PasswordHash).To(Equal("$argon2id$new"))
		})

		It("reports an unknown email as not found", func() {
			err := repo.UpdatePassword(ctx, "grace@example.com", "$argon2id$new")
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})
})
