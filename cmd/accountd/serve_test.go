// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accountd/internal/auth"
	"github.com/holomush/accountd/internal/notify"
	"github.com/holomush/accountd/pkg/errutil"
)

// testConfig returns a loaded configuration bound to loopback ports and a
// temp SQLite file, with a cheap hasher work factor.
func testConfig(t *testing.T, extra ...string) *Config {
	t.Helper()
	isolateEnv(t)
	args := append([]string{
		"--env-file", "",
		"--http-addr", "127.0.0.1:0",
		"--metrics-addr", "127.0.0.1:0",
		"--sqlite-path", filepath.Join(t.TempDir(), "accountd.db"),
		"--argon2-memory", "1024",
		"--argon2-threads", "1",
	}, extra...)
	cfg, err := loadConfig(parseFlags(t, args...))
	require.NoError(t, err)
	return cfg
}

// startServe runs the service in the background and returns its base URL
// and the notifier that captures outgoing email.
func startServe(t *testing.T, cfg *Config) (string, *notify.MemoryNotifier) {
	t.Helper()
	mail := notify.NewMemoryNotifier()
	ready := make(chan string, 1)
	done := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		done <- runServeWithDeps(ctx, cfg, &ServeDeps{
			NotifierFactory: func(*Config, *slog.Logger) (auth.Notifier, error) { return mail, nil },
			LogWriter:       io.Discard,
			OnReady:         func(addr string) { ready <- addr },
		})
	}()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		cancel()
		t.Fatalf("serve exited before ready: %v", err)
	case <-time.After(10 * time.Second):
		cancel()
		t.Fatal("serve did not become ready")
	}

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("serve did not stop")
		}
	})
	return "http://" + addr, mail
}

type apiResponse struct {
	status     int
	retryAfter string
	body       map[string]any
}

func postJSON(t *testing.T, url string, body any) apiResponse {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", strings.NewReader(string(data)))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	out := apiResponse{status: resp.StatusCode, retryAfter: resp.Header.Get("Retry-After")}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out.body))
	return out
}

var resetCodePattern = regexp.MustCompile(`\[(\d{6})\]`)

func TestServe_UserStory(t *testing.T) {
	base, mail := startServe(t, testConfig(t))

	account := map[string]string{
		"name":     "Ada Lovelace",
		"username": "ada",
		"password": "analytical-engine",
		"email":    "ada@example.com",
	}

	t.Log("register")
	resp := postJSON(t, base+"/auth/register", account)
	require.Equal(t, http.StatusCreated, resp.status, resp.body)
	assert.Equal(t, "registration successful", resp.body["message"])

	t.Log("duplicate username differing in case")
	dup := map[string]string{"name": "Other", "username": "ADA", "password": "x", "email": "other@example.com"}
	resp = postJSON(t, base+"/auth/register", dup)
	assert.Equal(t, http.StatusConflict, resp.status)

	t.Log("login")
	resp = postJSON(t, base+"/auth/login", map[string]string{"username": "ada", "password": "analytical-engine"})
	require.Equal(t, http.StatusOK, resp.status)
	user, ok := resp.body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", user["email"])
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "passwordHash")

	t.Log("wrong password and unknown user are indistinguishable")
	wrong := postJSON(t, base+"/auth/login", map[string]string{"username": "ada", "password": "nope"})
	unknown := postJSON(t, base+"/auth/login", map[string]string{"username": "babbage", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, wrong.status)
	assert.Equal(t, wrong, unknown)

	t.Log("find identity")
	resp = postJSON(t, base+"/auth/find-id", map[string]string{"email": "ADA@example.com"})
	require.Equal(t, http.StatusOK, resp.status, resp.body)
	email, ok := mail.Last("ada@example.com")
	require.True(t, ok)
	assert.Contains(t, email.Body, "[ada]")

	t.Log("request reset")
	resp = postJSON(t, base+"/auth/reset-request", map[string]string{"email": "ada@example.com"})
	require.Equal(t, http.StatusOK, resp.status, resp.body)
	email, ok = mail.Last("ada@example.com")
	require.True(t, ok)
	match := resetCodePattern.FindStringSubmatch(email.Body)
	require.Len(t, match, 2, email.Body)
	code := match[1]

	t.Log("wrong code is rejected and keeps the real one")
	wrongCode := "000000"
	if code == wrongCode {
		wrongCode = "111111"
	}
	resp = postJSON(t, base+"/auth/reset-password", map[string]string{
		"email": "ada@example.com", "code": wrongCode, "newPassword": "difference-engine",
	})
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, "invalid code", resp.body["message"])

	t.Log("complete reset")
	resp = postJSON(t, base+"/auth/reset-password", map[string]string{
		"email": "ada@example.com", "code": code, "newPassword": "difference-engine",
	})
	require.Equal(t, http.StatusOK, resp.status, resp.body)

	t.Log("code is single use")
	resp = postJSON(t, base+"/auth/reset-password", map[string]string{
		"email": "ada@example.com", "code": code, "newPassword": "again",
	})
	assert.Equal(t, http.StatusBadRequest, resp.status)

	t.Log("new password works and old one does not")
	resp = postJSON(t, base+"/auth/login", map[string]string{"username": "ada", "password": "difference-engine"})
	assert.Equal(t, http.StatusOK, resp.status)
	resp = postJSON(t, base+"/auth/login", map[string]string{"username": "ada", "password": "analytical-engine"})
	assert.Equal(t, http.StatusUnauthorized, resp.status)

	t.Log("recovery endpoints share one limit per client")
	resp = postJSON(t, base+"/auth/find-id", map[string]string{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusNotFound, resp.status)
	resp = postJSON(t, base+"/auth/reset-request", map[string]string{"email": "ada@example.com"})
	assert.Equal(t, http.StatusTooManyRequests, resp.status)
	assert.NotEmpty(t, resp.retryAfter)
	assert.Len(t, mail.Emails(), 2, "throttled requests send nothing")
}

func TestServe_NotifierFailureKeepsCode(t *testing.T) {
	cfg := testConfig(t)
	base, mail := startServe(t, cfg)

	resp := postJSON(t, base+"/auth/register", map[string]string{
		"name": "Grace", "username": "grace", "password": "cobol", "email": "grace@example.com",
	})
	require.Equal(t, http.StatusCreated, resp.status)

	mail.FailWith(errors.New("mailbox unavailable"))
	resp = postJSON(t, base+"/auth/reset-request", map[string]string{"email": "grace@example.com"})
	assert.Equal(t, http.StatusInternalServerError, resp.status)
	assert.Equal(t, "failed to send email", resp.body["message"])
}

func TestServe_Failures(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig(t, "--mail-driver", "pigeon")
		err := runServeWithDeps(context.Background(), cfg, &ServeDeps{LogWriter: io.Discard})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})

	t.Run("store failure", func(t *testing.T) {
		cfg := testConfig(t)
		var logs bytes.Buffer
		err := runServeWithDeps(context.Background(), cfg, &ServeDeps{
			LogWriter: &logs,
			UserStoreOpener: func(context.Context, *Config, *slog.Logger) (auth.UserRepository, func(), error) {
				return nil, nil, errors.New("disk full")
			},
		})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SERVE_STORE_FAILED")

		assert.Contains(t, logs.String(), `"msg":"failed to open user store"`)
		assert.Contains(t, logs.String(), `"code":"SERVE_STORE_FAILED"`)
		assert.Contains(t, logs.String(), "disk full")
	})

	t.Run("busy api address", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer func() { _ = ln.Close() }()

		cfg := testConfig(t, "--http-addr", ln.Addr().String())
		err = runServeWithDeps(context.Background(), cfg, &ServeDeps{LogWriter: io.Discard})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "API_LISTEN_FAILED")
	})
}
