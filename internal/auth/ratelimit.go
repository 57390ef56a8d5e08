// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
)

// Default rate limiting values for email-triggered operations.
const (
	DefaultRateLimitWindow = time.Minute
	DefaultRateLimitMax    = 3
)

// Limiter decides whether a client may perform an email-triggered operation.
type Limiter interface {
	// TryAcquire counts a request for key. When throttled it returns false
	// and the time until the key's window resets.
	TryAcquire(key string) (allowed bool, retryAfter time.Duration)
}

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// Window is the fixed window length.
	// Defaults to DefaultRateLimitWindow if zero or negative.
	Window time.Duration

	// Max is the number of requests allowed per key per window.
	// Defaults to DefaultRateLimitMax if zero or negative.
	Max int

	// Exempt lists glob patterns; matching keys are never throttled.
	Exempt []string

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// rateWindow tracks the count for one key in its current window.
type rateWindow struct {
	count int
	start time.Time
}

// RateLimiter implements fixed-window request counting per key.
// It is safe for concurrent use and needs no teardown; stale windows are
// swept lazily.
type RateLimiter struct {
	mu        sync.Mutex
	windows   map[string]*rateWindow
	window    time.Duration
	max       int
	exempt    []glob.Glob
	now       func() time.Time
	lastSweep time.Time

	// Metrics (nil if no registry provided)
	keysGauge      prometheus.Gauge
	throttledCount prometheus.Counter
}

// NewRateLimiter creates a rate limiter with the given configuration.
// Returns an error if an exempt pattern does not compile.
func NewRateLimiter(cfg RateLimiterConfig) (*RateLimiter, error) {
	return newRateLimiter(cfg, nil)
}

// NewRateLimiterWithRegistry creates a rate limiter and registers its
// tracked-key gauge and throttle counter with reg.
func NewRateLimiterWithRegistry(cfg RateLimiterConfig, reg prometheus.Registerer) (*RateLimiter, error) {
	return newRateLimiter(cfg, reg)
}

func newRateLimiter(cfg RateLimiterConfig, reg prometheus.Registerer) (*RateLimiter, error) {
	window := cfg.Window
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	maxRequests := cfg.Max
	if maxRequests <= 0 {
		maxRequests = DefaultRateLimitMax
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	exempt := make([]glob.Glob, 0, len(cfg.Exempt))
	for _, pattern := range cfg.Exempt {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, oops.Code("RATELIMIT_INVALID_EXEMPT").
				With("pattern", pattern).
				Wrap(err)
		}
		exempt = append(exempt, g)
	}

	rl := &RateLimiter{
		windows: make(map[string]*rateWindow),
		window:  window,
		max:     maxRequests,
		exempt:  exempt,
		now:     now,
	}

	if reg != nil {
		rl.keysGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "accountd_ratelimit_keys",
			Help: "Current number of tracked rate limiter keys",
		})
		rl.throttledCount = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accountd_ratelimit_throttled_total",
			Help: "Total number of throttled requests",
		})
		reg.MustRegister(rl.keysGauge, rl.throttledCount)
	}

	return rl, nil
}

// TryAcquire counts a request for key within the current window.
// A throttled request does not increment the counter.
func (rl *RateLimiter) TryAcquire(key string) (allowed bool, retryAfter time.Duration) {
	if rl.isExempt(key) {
		return true, 0
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweepLocked(now)

	w, exists := rl.windows[key]
	if !exists || now.Sub(w.start) >= rl.window {
		rl.windows[key] = &rateWindow{count: 1, start: now}
		rl.updateGaugeLocked()
		return true, 0
	}

	if w.count >= rl.max {
		if rl.throttledCount != nil {
			rl.throttledCount.Inc()
		}
		return false, w.start.Add(rl.window).Sub(now)
	}

	w.count++
	return true, 0
}

// KeyCount returns the number of tracked keys. Useful for testing and
// monitoring.
func (rl *RateLimiter) KeyCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}

func (rl *RateLimiter) isExempt(key string) bool {
	for _, g := range rl.exempt {
		if g.Match(key) {
			return true
		}
	}
	return false
}

// sweepLocked drops windows that have elapsed, at most once per window.
func (rl *RateLimiter) sweepLocked(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	rl.lastSweep = now
	for key, w := range rl.windows {
		if now.Sub(w.start) >= rl.window {
			delete(rl.windows, key)
		}
	}
	rl.updateGaugeLocked()
}

func (rl *RateLimiter) updateGaugeLocked() {
	if rl.keysGauge != nil {
		rl.keysGauge.Set(float64(len(rl.windows)))
	}
}

// Compile-time interface check.
var _ Limiter = (*RateLimiter)(nil)
