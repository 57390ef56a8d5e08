// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/samber/oops"
)

// Reset code configuration.
const (
	ResetCodeMin        = 100000
	ResetCodeMax        = 999999
	DefaultResetCodeTTL = 15 * time.Minute
)

// ResetCodes issues and consumes one-time password reset codes.
type ResetCodes interface {
	// Issue returns a fresh code for email, replacing any previous one.
	Issue(email string) (string, error)

	// Consume reports whether code is the live code for email.
	// A successful consume removes the code.
	Consume(email, code string) bool

	// TTL is how long an issued code stays valid.
	TTL() time.Duration
}

// ResetEntry is the pending code for one email.
type ResetEntry struct {
	Code      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IsExpired returns true if the entry is past its expiry at now.
func (e ResetEntry) IsExpired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// ResetCodeConfig configures a ResetCodeRegistry.
type ResetCodeConfig struct {
	// TTL is how long an issued code stays valid.
	// Defaults to DefaultResetCodeTTL if zero or negative.
	TTL time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Generate returns a new code. Defaults to GenerateResetCode.
	Generate func() (string, error)
}

// ResetCodeRegistry is an in-memory ResetCodes keyed by normalised email.
// It is safe for concurrent use and needs no teardown.
type ResetCodeRegistry struct {
	mu        sync.Mutex
	entries   map[string]ResetEntry
	ttl       time.Duration
	now       func() time.Time
	generate  func() (string, error)
	lastSweep time.Time
}

// NewResetCodeRegistry creates an empty registry.
func NewResetCodeRegistry(cfg ResetCodeConfig) *ResetCodeRegistry {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultResetCodeTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	generate := cfg.Generate
	if generate == nil {
		generate = GenerateResetCode
	}
	return &ResetCodeRegistry{
		entries:  make(map[string]ResetEntry),
		ttl:      ttl,
		now:      now,
		generate: generate,
	}
}

// Issue generates a code for email and overwrites any pending one.
func (r *ResetCodeRegistry) Issue(email string) (string, error) {
	code, err := r.generate()
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.sweepLocked(now)
	r.entries[NormalizeEmail(email)] = ResetEntry{
		Code:      code,
		IssuedAt:  now,
		ExpiresAt: now.Add(r.ttl),
	}
	return code, nil
}

// Consume deletes and accepts the entry for email if code matches and has
// not expired. A mismatch leaves the entry in place; an expired entry is
// dropped.
func (r *ResetCodeRegistry) Consume(email, code string) bool {
	key := NormalizeEmail(email)

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok {
		return false
	}
	if entry.IsExpired(r.now()) {
		delete(r.entries, key)
		return false
	}
	if subtle.ConstantTimeCompare([]byte(entry.Code), []byte(code)) != 1 {
		return false
	}
	delete(r.entries, key)
	return true
}

// Pending returns the live entry for email, if any.
func (r *ResetCodeRegistry) Pending(email string) (ResetEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[NormalizeEmail(email)]
	if !ok || entry.IsExpired(r.now()) {
		return ResetEntry{}, false
	}
	return entry, true
}

// TTL returns the validity period of issued codes.
func (r *ResetCodeRegistry) TTL() time.Duration {
	return r.ttl
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (r *ResetCodeRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// sweepLocked drops expired entries at most once per TTL.
func (r *ResetCodeRegistry) sweepLocked(now time.Time) {
	if now.Sub(r.lastSweep) < r.ttl {
		return
	}
	r.lastSweep = now
	for key, entry := range r.entries {
		if entry.IsExpired(now) {
			delete(r.entries, key)
		}
	}
}

// GenerateResetCode returns a uniformly random code in [ResetCodeMin, ResetCodeMax].
func GenerateResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(ResetCodeMax-ResetCodeMin+1))
	if err != nil {
		return "", oops.Code("RESET_CODE_GENERATE_FAILED").Wrap(err)
	}
	return strconv.FormatInt(n.Int64()+ResetCodeMin, 10), nil
}

// Compile-time interface check.
var _ ResetCodes = (*ResetCodeRegistry)(nil)
