// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/holomush/accountd/internal/auth"
)

// errBodyTooLarge is returned when a request body exceeds MaxBodyBytes.
var errBodyTooLarge = errors.New("request body too large")

type messageResponse struct {
	Message string `json:"message"`
}

type loginResponse struct {
	Message string          `json:"message"`
	User    auth.PublicUser `json:"user"`
}

// statusFor maps an error to its HTTP status code.
func statusFor(err error) int {
	if errors.Is(err, errBodyTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	switch auth.KindOf(err) {
	case auth.KindValidation:
		return http.StatusBadRequest
	case auth.KindUnauthorized:
		return http.StatusUnauthorized
	case auth.KindNotFound:
		return http.StatusNotFound
	case auth.KindConflict:
		return http.StatusConflict
	case auth.KindThrottled:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage returns the caller-facing text for err.
func publicMessage(err error) string {
	if errors.Is(err, errBodyTooLarge) {
		return errBodyTooLarge.Error()
	}
	return auth.PublicMessage(err)
}

// writeError writes the JSON error response for err and returns the status.
// Throttled responses carry Retry-After in whole seconds, rounded up.
func writeError(w http.ResponseWriter, err error) int {
	status := statusFor(err)
	if d, ok := auth.RetryAfter(err); ok {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
	}
	writeJSON(w, status, messageResponse{Message: publicMessage(err)})
	return status
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	//nolint:errcheck // client may have disconnected; nothing left to do
	json.NewEncoder(w).Encode(body)
}
