// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/holomush/accountd/internal/auth"
	"github.com/holomush/accountd/pkg/errutil"
)

// AuthService is the account API backend. *auth.Service implements it.
type AuthService interface {
	Register(ctx context.Context, name, username, password, email string) (*auth.User, error)
	Login(ctx context.Context, username, password string) (*auth.PublicUser, error)
	FindIdentity(ctx context.Context, clientKey, email string) error
	RequestReset(ctx context.Context, clientKey, email string) error
	CompleteReset(ctx context.Context, email, code, newPassword string) error
}

var _ AuthService = (*auth.Service)(nil)

// RequestObserver records finished API requests.
// *observability.Metrics implements it.
type RequestObserver interface {
	ObserveRequest(operation string, status int, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveRequest(string, int, time.Duration) {}

// Operation names, used as the metrics label and log attribute.
const (
	OpRegister      = "register"
	OpLogin         = "login"
	OpFindID        = "find_id"
	OpResetRequest  = "reset_request"
	OpResetPassword = "reset_password"
)

// Success messages.
const (
	msgRegistered    = "registration successful"
	msgLoggedIn      = "login successful"
	msgUsernameSent  = "your username has been sent to your email"
	msgResetCodeSent = "a verification code has been sent to your email"
	msgPasswordReset = "password has been reset"
)

type apiFunc func(w http.ResponseWriter, r *http.Request) error

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /auth/register", s.endpoint(OpRegister, s.handleRegister))
	mux.Handle("POST /auth/login", s.endpoint(OpLogin, s.handleLogin))
	mux.Handle("POST /auth/find-id", s.endpoint(OpFindID, s.handleFindID))
	mux.Handle("POST /auth/reset-request", s.endpoint(OpResetRequest, s.handleResetRequest))
	mux.Handle("POST /auth/reset-password", s.endpoint(OpResetPassword, s.handleResetPassword))
	return otelhttp.NewHandler(withRequestID(withRecover(s.logger, mux)), "accountd",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}))
}

// endpoint runs fn with a capped body, writes its error if any, then
// records metrics and an access log line.
func (s *Server) endpoint(operation string, fn apiFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		rec := &statusRecorder{ResponseWriter: w}
		r.Body = http.MaxBytesReader(rec, r.Body, s.cfg.MaxBodyBytes)

		err := fn(rec, r)
		if err != nil {
			writeError(rec, err)
		}
		status := rec.status
		if !rec.wroteHeader {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.observer.ObserveRequest(operation, status, elapsed)

		requestID := RequestIDFromContext(ctx)
		if status >= http.StatusInternalServerError {
			errutil.LogErrorContext(ctx, s.logger, "request failed", err,
				"operation", operation,
				"request_id", requestID)
		}
		attrs := []any{
			"operation", operation,
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"request_id", requestID,
		}
		if err != nil {
			attrs = append(attrs, "error_kind", auth.KindOf(err).String(), "error_code", errutil.Code(err))
		}
		s.logger.InfoContext(ctx, "request", attrs...)
	})
}

// readBody reads the capped request body.
func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errBodyTooLarge
		}
		return nil, auth.InvalidInput("REQUEST_READ_FAILED", "could not read request body")
	}
	return body, nil
}

func decodeBody(r *http.Request, schema string, dst any) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	return decodeRequest(body, schema, dst)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) error {
	var req RegisterRequest
	if err := decodeBody(r, SchemaRegister, &req); err != nil {
		return err
	}
	if _, err := s.svc.Register(r.Context(), req.Name, req.Username, req.Password, req.Email); err != nil {
		return err //nolint:wrapcheck // service errors carry their own codes
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: msgRegistered})
	return nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) error {
	var req LoginRequest
	if err := decodeBody(r, SchemaLogin, &req); err != nil {
		return err
	}
	user, err := s.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		return err //nolint:wrapcheck // service errors carry their own codes
	}
	writeJSON(w, http.StatusOK, loginResponse{Message: msgLoggedIn, User: *user})
	return nil
}

func (s *Server) handleFindID(w http.ResponseWriter, r *http.Request) error {
	return s.emailOperation(w, r, s.svc.FindIdentity, msgUsernameSent)
}

func (s *Server) handleResetRequest(w http.ResponseWriter, r *http.Request) error {
	return s.emailOperation(w, r, s.svc.RequestReset, msgResetCodeSent)
}

// emailOperation serves the rate-limited email endpoints. A body that fails
// to decode still reaches the service with an empty email so the attempt is
// counted; a throttle verdict then takes precedence over the decode error.
func (s *Server) emailOperation(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, clientKey, email string) error,
	success string,
) error {
	clientKey := ClientKey(r, s.cfg.TrustProxy)

	var req EmailRequest
	if decodeErr := decodeBody(r, SchemaEmail, &req); decodeErr != nil {
		if err := op(r.Context(), clientKey, ""); auth.KindOf(err) == auth.KindThrottled {
			return err //nolint:wrapcheck // service errors carry their own codes
		}
		return decodeErr
	}
	if err := op(r.Context(), clientKey, req.Email); err != nil {
		return err //nolint:wrapcheck // service errors carry their own codes
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: success})
	return nil
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) error {
	var req ResetPasswordRequest
	if err := decodeBody(r, SchemaResetPassword, &req); err != nil {
		return err
	}
	if err := s.svc.CompleteReset(r.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		return err //nolint:wrapcheck // service errors carry their own codes
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msgPasswordReset})
	return nil
}
