// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package accounts_test

import (
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

var _ = Describe("Account lifecycle on PostgreSQL", func() {
	var s *stack

	ada := map[string]string{
		"name":     "Ada Lovelace",
		"username": "ada",
		"password": "analytical-engine",
		"email":    "ada@example.com",
	}

	BeforeEach(func() {
		env.truncate()
		s = newStack()
		Expect(s.post("/auth/register", ada).Status).To(Equal(http.StatusCreated))
	})

	Describe("registration", func() {
		DescribeTable("rejects duplicates ignoring case",
			func(username, email string) {
				resp := s.post("/auth/register", map[string]string{
					"name": "Someone", "username": username, "password": "x", "email": email,
				})
				Expect(resp.Status).To(Equal(http.StatusConflict))
			},
			Entry("same username", "ada", "other@example.com"),
			Entry("username in upper case", "ADA", "other@example.com"),
			Entry("email in mixed case", "other", "Ada@Example.com"),
		)

		It("rejects a malformed email", func() {
			resp := s.post("/auth/register", map[string]string{
				"name": "Bad", "username": "bad", "password": "x", "email": "not-an-email",
			})
			Expect(resp.Status).To(Equal(http.StatusBadRequest))
			Expect(resp.Body["message"]).To(Equal("invalid email address"))
		})
	})

	Describe("login", func() {
		It("returns the public user", func() {
			resp := s.post("/auth/login", map[string]string{"username": "ada", "password": "analytical-engine"})
			Expect(resp.Status).To(Equal(http.StatusOK))
			Expect(resp.Body["user"]).To(HaveKeyWithValue("id", BeNumerically("==", 1)))
			Expect(resp.Body["user"]).To(HaveKeyWithValue("username", "ada"))
			Expect(resp.Body["user"]).NotTo(HaveKey("password"))
		})

		It("answers wrong passwords and unknown users identically", func() {
			wrong := s.post("/auth/login", map[string]string{"username": "ada", "password": "nope"})
			unknown := s.post("/auth/login", map[string]string{"username": "babbage", "password": "nope"})
			Expect(wrong.Status).To(Equal(http.StatusUnauthorized))
			Expect(unknown).To(Equal(wrong))
		})
	})

	Describe("password reset", func() {
		It("replaces the password with a valid code", func() {
			Expect(s.post("/auth/reset-request", map[string]string{"email": "ada@example.com"}).Status).
				To(Equal(http.StatusOK))
			code := s.lastResetCode("ada@example.com")

			resp := s.post("/auth/reset-password", map[string]string{
				"email": "ada@example.com", "code": code, "newPassword": "difference-engine",
			})
			Expect(resp.Status).To(Equal(http.StatusOK))

			Expect(s.post("/auth/login", map[string]string{"username": "ada", "password": "difference-engine"}).Status).
				To(Equal(http.StatusOK))
			Expect(s.post("/auth/login", map[string]string{"username": "ada", "password": "analytical-engine"}).Status).
				To(Equal(http.StatusUnauthorized))
		})

		It("honours only the latest code", func() {
			s.post("/auth/reset-request", map[string]string{"email": "ada@example.com"})
			first := s.lastResetCode("ada@example.com")
			s.post("/auth/reset-request", map[string]string{"email": "ada@example.com"})
			second := s.lastResetCode("ada@example.com")

			if first != second {
				resp := s.post("/auth/reset-password", map[string]string{
					"email": "ada@example.com", "code": first, "newPassword": "x",
				})
				Expect(resp.Status).To(Equal(http.StatusBadRequest))
			}
			resp := s.post("/auth/reset-password", map[string]string{
				"email": "ada@example.com", "code": second, "newPassword": "x",
			})
			Expect(resp.Status).To(Equal(http.StatusOK))
		})

		It("rejects an expired code", func() {
			s.post("/auth/reset-request", map[string]string{"email": "ada@example.com"})
			code := s.lastResetCode("ada@example.com")

			s.clock.Advance(16 * time.Minute)

			resp := s.post("/auth/reset-password", map[string]string{
				"email": "ada@example.com", "code": code, "newPassword": "x",
			})
			Expect(resp.Status).To(Equal(http.StatusBadRequest))
			Expect(resp.Body["message"]).To(Equal("invalid code"))
		})

		It("accepts the email in any case", func() {
			s.post("/auth/reset-request", map[string]string{"email": "ADA@example.com"})
			code := s.lastResetCode("ada@example.com")

			resp := s.post("/auth/reset-password", map[string]string{
				"email": "Ada@Example.com", "code": code, "newPassword": "x",
			})
			Expect(resp.Status).To(Equal(http.StatusOK))
		})
	})
})
