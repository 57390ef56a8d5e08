// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"
	"time"

	"github.com/samber/oops"
)

// Sentinel errors. Their messages are safe to show to callers.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a username or email is already registered.
	ErrConflict = errors.New("duplicate username or email")

	// ErrInvalidInput is returned for missing or malformed request fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCredentials is returned for both unknown users and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrInvalidResetCode is returned when a reset code is unknown, wrong, or expired.
	ErrInvalidResetCode = errors.New("invalid code")

	// ErrThrottled is returned when the client exceeded the request window.
	ErrThrottled = errors.New("too many requests, try again later")
)

// Kind classifies an error for the caller.
type Kind int

// Error kinds.
const (
	KindDependency Kind = iota
	KindValidation
	KindConflict
	KindUnauthorized
	KindNotFound
	KindThrottled
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindThrottled:
		return "throttled"
	default:
		return "dependency"
	}
}

// KindOf reports the kind of err. Errors that wrap none of the package
// sentinels are dependency failures.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidResetCode):
		return KindValidation
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrInvalidCredentials):
		return KindUnauthorized
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrThrottled):
		return KindThrottled
	default:
		return KindDependency
	}
}

// contextKeyMessage carries a caller-facing message in the oops context.
const contextKeyMessage = "public_message"

// contextKeyRetryAfter carries the throttle hint in the oops context.
const contextKeyRetryAfter = "retry_after"

// PublicMessage returns the text that may be shown to the caller for err.
// Dependency failures never expose their cause.
func PublicMessage(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if msg, ok := oopsErr.Context()[contextKeyMessage].(string); ok && msg != "" {
			return msg
		}
	}
	switch KindOf(err) {
	case KindValidation:
		if errors.Is(err, ErrInvalidResetCode) {
			return ErrInvalidResetCode.Error()
		}
		return ErrInvalidInput.Error()
	case KindConflict:
		return ErrConflict.Error()
	case KindUnauthorized:
		return ErrInvalidCredentials.Error()
	case KindNotFound:
		return ErrNotFound.Error()
	case KindThrottled:
		return ErrThrottled.Error()
	default:
		return "internal server error"
	}
}

// RetryAfter returns how long a throttled caller should wait.
func RetryAfter(err error) (time.Duration, bool) {
	if KindOf(err) != KindThrottled {
		return 0, false
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return 0, false
	}
	d, ok := oopsErr.Context()[contextKeyRetryAfter].(time.Duration)
	return d, ok
}

// InvalidInput returns a validation error with the given code whose public
// message is message.
func InvalidInput(code, message string) error {
	return oops.Code(code).
		With(contextKeyMessage, message).
		Wrap(ErrInvalidInput)
}
