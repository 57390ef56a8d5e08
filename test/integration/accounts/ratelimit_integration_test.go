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

var _ = Describe("Rate Limiting Integration", func() {
	var s *stack

	BeforeEach(func() {
		env.truncate()
		s = newStack()
		Expect(s.post("/auth/register", map[string]string{
			"name": "Grace", "username": "grace", "password": "cobol", "email": "grace@example.com",
		}).Status).To(Equal(http.StatusCreated))
	})

	It("shares one budget across find-id and reset-request", func() {
		Expect(s.post("/auth/find-id", map[string]string{"email": "grace@example.com"}).Status).To(Equal(http.StatusOK))
		Expect(s.post("/auth/reset-request", map[string]string{"email": "grace@example.com"}).Status).To(Equal(http.StatusOK))
		Expect(s.post("/auth/find-id", map[string]string{"email": "nobody@example.com"}).Status).To(Equal(http.StatusNotFound))

		resp := s.post("/auth/reset-request", map[string]string{"email": "grace@example.com"})
		Expect(resp.Status).To(Equal(http.StatusTooManyRequests))
		Expect(resp.RetryAfter).To(Equal("60"))
		Expect(s.mail.Emails()).To(HaveLen(2))
	})

	It("counts malformed requests", func() {
		for range 3 {
			Expect(s.post("/auth/find-id", map[string]string{}).Status).To(Equal(http.StatusBadRequest))
		}
		Expect(s.post("/auth/find-id", map[string]string{"email": "grace@example.com"}).Status).
			To(Equal(http.StatusTooManyRequests))
	})

	It("resets after the window", func() {
		for range 3 {
			s.post("/auth/find-id", map[string]string{"email": "grace@example.com"})
		}
		resp := s.post("/auth/find-id", map[string]string{"email": "grace@example.com"})
		Expect(resp.Status).To(Equal(http.StatusTooManyRequests))

		s.clock.Advance(45 * time.Second)
		resp = s.post("/auth/find-id", map[string]string{"email": "grace@example.com"})
		Expect(resp.Status).To(Equal(http.StatusTooManyRequests))
		Expect(resp.RetryAfter).To(Equal("15"))

		s.clock.Advance(15 * time.Second)
		Expect(s.post("/auth/find-id", map[string]string{"email": "grace@example.com"}).Status).To(Equal(http.StatusOK))
	})

	It("does not limit login or registration", func() {
		for range 5 {
			Expect(s.post("/auth/login", map[string]string{"username": "grace", "password": "wrong"}).Status).
				To(Equal(http.StatusUnauthorized))
		}
		Expect(s.post("/auth/login", map[string]string{"username": "grace", "password": "cobol"}).Status).
			To(Equal(http.StatusOK))
	})
})
