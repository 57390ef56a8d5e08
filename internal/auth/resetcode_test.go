// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accountd/internal/auth"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sequenceCodes returns "100001", "100002", ... on successive calls.
func sequenceCodes() func() (string, error) {
	var n atomic.Int64
	return func() (string, error) {
		return strconv.FormatInt(auth.ResetCodeMin+n.Add(1), 10), nil
	}
}

func TestGenerateResetCode(t *testing.T) {
	t.Run("generates six digit codes in range", func(t *testing.T) {
		for range 200 {
			code, err := auth.GenerateResetCode()
			require.NoError(t, err)
			require.Len(t, code, 6)

			n, err := strconv.Atoi(code)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, n, auth.ResetCodeMin)
			assert.LessOrEqual(t, n, auth.ResetCodeMax)
		}
	})

	t.Run("generates varying codes", func(t *testing.T) {
		seen := make(map[string]struct{})
		for range 50 {
			code, err := auth.GenerateResetCode()
			require.NoError(t, err)
			seen[code] = struct{}{}
		}
		assert.Greater(t, len(seen), 1)
	})
}

func TestResetCodeRegistry_IssueAndConsume(t *testing.T) {
	t.Run("issued code can be consumed once", func(t *testing.T) {
		reg := auth.NewResetCodeRegistry(auth.ResetCodeConfig{})

		code, err := reg.Issue("ada@example.com")
		require.NoError(t, err)

		assert.True(t, reg.Consume("ada@example.com", code))
		assert.False(t, reg.Consume("ada@example.com", code))
		assert.Zero(t, reg.Len())
	})

	t.Run("mismatch leaves entry untouched", func(t *testing.T) {
		reg := auth.NewResetCodeRegistry(auth.ResetCodeConfig{Generate: sequenceCodes()})

		code, err := reg.Issue("ada@example.com")
		require.NoError(t, err)

		assert.False(t, reg.Consume("ada@example.com", "000000"))
		assert.False(t, reg.Consume("ada@example.com", ""))

		entry, ok := reg.Pending("ada@example.com")
		require.True(t, ok)
		assert.Equal(t, code, entry.Code)
		assert.True(t, reg.Consume("ada@example.com", code))
	})

	t.Run("unknown email is rejected", func(t *testing.T) {
		reg := auth.NewResetCodeRegistry(auth.ResetCodeConfig{})
		assert.False(t, reg.Consume("nobody@example.com", "123456"))
		assert.Zero(t, reg.Len())
	})

	t.Run("new issue replaces old code", func(t *testing.T) {
		reg := auth.NewResetCodeRegistry(auth.ResetCodeConfig{Generate: sequenceCodes()})

		first, err := reg.Issue("ada@example.com")
		require.NoError(t, err)
		second, err := reg.Issue("ada@example.com")
		require.NoError(t, err)
		require.NotEqual(t, first, second)

		assert.False(t, reg.Consume("ada@example.com", first))
		assert.True(t, reg.Consume("ada@example.com", second))
	})

	t.Run("email key is case insensitive", func(t *testing.T) {
		reg := auth.NewResetCodeRegistry(auth.ResetCodeConfig{})

		code, err := reg.Issue("Ada@Example.com")
		require.NoError(t, err)
		assert.True(t, reg.Consume("ada@example.com", code))
	})

	t.Run("propagates generator failure", func(t *testing.T) {
		reg := auth.NewResetCodeRegistry(auth.ResetCodeConfig{
			Generate: func() (string, error) { return "", errors.New("entropy exhausted") },
		})

		_, err := reg.Issue("ada@example.com")
		require.Error(t, err)
		assert.Zero(t, reg.Len())
	})
}

func TestResetCodeRegistry_Expiry(t *testing.T) {
	t.Run("code is valid before ttl", func(t *testing.T) {
		clock := newFakeClock()
		reg := auth.NewResetCodeRegistry(auth.ResetCodeConfig{TTL: 10 * time.Minute, Now: clock.Now})

		code, err := reg.Issue("ada@example.com")
		require.NoError(t, err)

		clock.Advance(10*time.Minute - time.Nanosecond)
		assert.True(t, reg.Consume("ada@example.com", code))
	})

	t.Run("code is rejected at ttl and dropped", func(t *testing.T) {
		clock := newFakeClock()
		reg := auth.NewResetCodeRegistry(auth.ResetCodeConfig{TTL: 10 * time.Minute, Now: clock.Now})

		code, err := reg.Issue("ada@example.com")
		require.NoError(t, err)

		clock.Advance(10 * time.Minute)
		_, pending := reg.Pending("ada@example.com")
		assert.False(t, pending)
		assert.False(t, reg.Consume("ada@example.com", code))
		assert.Zero(t, reg.Len())
	})

	t.Run("records issue and expiry times", func(t *testing.T) {
		clock := newFakeClock()
		reg := auth.NewResetCodeRegistry(auth.ResetCodeConfig{TTL: time.Hour, Now: clock.Now})

		_, err := reg.Issue("ada@example.com")
		require.NoError(t, err)

		entry, ok := reg.Pending("ada@example.com")
		require.True(t, ok)
		assert.Equal(t, clock.Now(), entry.IssuedAt)
		assert.Equal(t, clock.Now().Add(time.Hour), entry.ExpiresAt)
	})

	t.Run("issue sweeps expired entries", func(t *testing.T) {
		clock := newFakeClock()
		reg := auth.NewResetCodeRegistry(auth.ResetCodeConfig{TTL: time.Minute, Now: clock.Now})

		_, err := reg.Issue("a@example.com")
		require.NoError(t, err)
		_, err = reg.Issue("b@example.com")
		require.NoError(t, err)
		require.Equal(t, 2, reg.Len())

		clock.Advance(2 * time.Minute)
		_, err = reg.Issue("c@example.com")
		require.NoError(t, err)
		assert.Equal(t, 1, reg.Len())
	})

	t.Run("non-positive ttl uses default", func(t *testing.T) {
		clock := newFakeClock()
		reg := auth.NewResetCodeRegistry(auth.ResetCodeConfig{TTL: -time.Second, Now: clock.Now})

		_, err := reg.Issue("ada@example.com")
		require.NoError(t, err)

		entry, ok := reg.Pending("ada@example.com")
		require.True(t, ok)
		assert.Equal(t, auth.DefaultResetCodeTTL, entry.ExpiresAt.Sub(entry.IssuedAt))
	})
}

func TestResetCodeRegistry_ConcurrentConsume(t *testing.T) {
	reg := auth.NewResetCodeRegistry(auth.ResetCodeConfig{})
	code, err := reg.Issue("ada@example.com")
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if reg.Consume("ada@example.com", code) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}
