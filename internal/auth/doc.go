// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides registration, login, and account recovery for accountd.
//
// # Domain Types
//
// Users should be created with NewUser, which checks that every field is
// present and that the email is a bare address. Repository implementations
// receive pre-validated users.
//
// # Recovery
//
// Account recovery is driven by two in-process collaborators:
//   - ResetCodeRegistry - one live six-digit code per email, single use, with a TTL
//   - RateLimiter - fixed-window counting per client key, shared by find-id and reset-request
//
// Both start empty and need no teardown; their state does not survive a restart.
//
// # Errors
//
// Service methods return oops errors wrapping one of the package sentinels.
// Use KindOf to classify an error, PublicMessage for the text a caller may
// see, and RetryAfter for the throttle hint.
package auth
