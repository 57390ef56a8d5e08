// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("accountd/auth")

// Caller-facing messages for the recovery flow.
const (
	msgEmailNotRegistered = "no account is registered with that email"
	msgUserNotFound       = "user does not exist"
	msgSendFailed         = "failed to send email"
	msgAllFieldsRequired  = "all fields are required"
	msgEmailRequired      = "email is required"
)

// Service implements registration, login, and account recovery.
type Service struct {
	users    UserRepository
	codes    ResetCodes
	limiter  Limiter
	hasher   PasswordHasher
	notifier Notifier
	messages *Messages
	logger   *slog.Logger
}

// NewService creates a new Service.
// Returns an error if any dependency is nil.
func NewService(
	users UserRepository,
	codes ResetCodes,
	limiter Limiter,
	hasher PasswordHasher,
	notifier Notifier,
) (*Service, error) {
	return NewServiceWithLogger(users, codes, limiter, hasher, notifier, slog.New(slog.DiscardHandler))
}

// NewServiceWithLogger creates a new Service with a custom logger.
// Returns an error if any dependency is nil.
func NewServiceWithLogger(
	users UserRepository,
	codes ResetCodes,
	limiter Limiter,
	hasher PasswordHasher,
	notifier Notifier,
	logger *slog.Logger,
) (*Service, error) {
	if users == nil {
		return nil, oops.Errorf("user repository is required")
	}
	if codes == nil {
		return nil, oops.Errorf("reset code registry is required")
	}
	if limiter == nil {
		return nil, oops.Errorf("rate limiter is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if notifier == nil {
		return nil, oops.Errorf("notifier is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}

	messages, err := NewMessages()
	if err != nil {
		return nil, err
	}

	return &Service{
		users:    users,
		codes:    codes,
		limiter:  limiter,
		hasher:   hasher,
		notifier: notifier,
		messages: messages,
		logger:   logger,
	}, nil
}

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Register creates a new user. All fields are required.
// Returns an ErrConflict error if the username or email is taken.
func (s *Service) Register(ctx context.Context, name, username, password, email string) (_ *User, err error) {
	ctx, span := tracer.Start(ctx, "auth.register")
	defer func() { endSpan(span, err) }()

	if name == "" || username == "" || password == "" || email == "" {
		return nil, oops.Code("USER_INVALID").
			With(contextKeyMessage, msgAllFieldsRequired).
			Wrap(ErrInvalidInput)
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(name, username, email, hash)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, oops.Code("AUTH_REGISTER_CONFLICT").
				With("username", username).
				Wrap(err)
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	span.SetAttributes(attribute.Int64("user.id", user.ID))
	return user, nil
}

// Login verifies a username and password and returns the user's public fields.
// Unknown users and wrong passwords yield the same ErrInvalidCredentials error.
// Uses constant-time operations to prevent timing-based username enumeration.
func (s *Service) Login(ctx context.Context, username, password string) (_ *PublicUser, err error) {
	ctx, span := tracer.Start(ctx, "auth.login")
	defer func() { endSpan(span, err) }()

	var user *User
	if username != "" && password != "" {
		var lookupErr error
		user, lookupErr = s.users.GetByUsername(ctx, username)
		if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get user by username").
				Wrap(lookupErr)
		}
	}

	// Always verify so unknown users cost the same as known ones.
	targetHash := dummyPasswordHash
	if user != nil {
		targetHash = user.PasswordHash
	}
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if user == nil {
			return nil, invalidCredentials()
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}
	if user == nil || !valid {
		return nil, invalidCredentials()
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	span.SetAttributes(attribute.Int64("user.id", user.ID))
	public := user.Public()
	return &public, nil
}

// upgradeHash rehashes password with the current parameters. Failures are
// logged and do not affect the login.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	newHash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.UpdatePassword(ctx, user.Email, newHash)
	}
	if err != nil {
		s.logger.Warn("best-effort password hash upgrade failed",
			"operation", "upgrade_hash",
			"user_id", user.ID,
			"error", err)
	}
}

func invalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
}

// FindIdentity emails the username registered to email. Requests are
// counted against clientKey before any lookup.
func (s *Service) FindIdentity(ctx context.Context, clientKey, email string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.find_identity")
	defer func() { endSpan(span, err) }()

	user, err := s.lookupForRecovery(ctx, clientKey, email, "find identity")
	if err != nil {
		return err
	}

	msg, err := s.messages.FindIdentity(user.Username)
	if err != nil {
		return oops.Code("AUTH_FIND_IDENTITY_FAILED").
			With("operation", "render message").
			Wrap(err)
	}
	return s.send(ctx, user.Email, msg)
}

// RequestReset issues a reset code for email and sends it there. A new
// request replaces any pending code. The code stays issued if sending fails.
func (s *Service) RequestReset(ctx context.Context, clientKey, email string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.request_reset")
	defer func() { endSpan(span, err) }()

	user, err := s.lookupForRecovery(ctx, clientKey, email, "request reset")
	if err != nil {
		return err
	}

	code, err := s.codes.Issue(user.Email)
	if err != nil {
		return oops.Code("AUTH_RESET_REQUEST_FAILED").
			With("operation", "issue reset code").
			Wrap(err)
	}

	msg, err := s.messages.ResetCode(code, s.codes.TTL())
	if err != nil {
		return oops.Code("AUTH_RESET_REQUEST_FAILED").
			With("operation", "render message").
			Wrap(err)
	}
	return s.send(ctx, user.Email, msg)
}

// lookupForRecovery applies the rate limit and finds the user by email.
func (s *Service) lookupForRecovery(ctx context.Context, clientKey, email, operation string) (*User, error) {
	if allowed, retryAfter := s.limiter.TryAcquire(clientKey); !allowed {
		trace.SpanFromContext(ctx).SetAttributes(attribute.Bool("auth.rate_limited", true))
		return nil, oops.Code("AUTH_THROTTLED").
			With("operation", operation).
			With(contextKeyRetryAfter, retryAfter).
			Wrap(ErrThrottled)
	}

	email = NormalizeEmail(email)
	if email == "" {
		return nil, oops.Code("USER_INVALID").
			With(contextKeyMessage, msgEmailRequired).
			Wrap(ErrInvalidInput)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_EMAIL_NOT_FOUND").
				With(contextKeyMessage, msgEmailNotRegistered).
				Wrap(err)
		}
		return nil, oops.Code("AUTH_RECOVERY_FAILED").
			With("operation", operation).
			Wrap(err)
	}
	return user, nil
}

func (s *Service) send(ctx context.Context, to string, msg Message) error {
	if err := s.notifier.Notify(ctx, to, msg.Subject, msg.Body); err != nil {
		return oops.Code("AUTH_NOTIFY_FAILED").
			With("operation", "notify").
			With(contextKeyMessage, msgSendFailed).
			Wrap(err)
	}
	return nil
}

// CompleteReset consumes code for email and sets the new password.
// The email is normalised once so the code and the user are looked up by
// the same key. A consumed code is not restored if the password update fails.
func (s *Service) CompleteReset(ctx context.Context, email, code, newPassword string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.complete_reset")
	defer func() { endSpan(span, err) }()

	email = NormalizeEmail(email)
	if email == "" || code == "" || newPassword == "" {
		return oops.Code("USER_INVALID").
			With(contextKeyMessage, msgAllFieldsRequired).
			Wrap(ErrInvalidInput)
	}

	if !s.codes.Consume(email, code) {
		return oops.Code("AUTH_INVALID_RESET_CODE").Wrap(ErrInvalidResetCode)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("AUTH_RESET_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	if err := s.users.UpdatePassword(ctx, email, hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("AUTH_USER_NOT_FOUND").
				With(contextKeyMessage, msgUserNotFound).
				Wrap(err)
		}
		return oops.Code("AUTH_RESET_FAILED").
			With("operation", "update password").
			Wrap(err)
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.SetAttributes(attribute.String("auth.error_kind", KindOf(err).String()))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
