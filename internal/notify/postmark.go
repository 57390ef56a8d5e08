// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/accountd/internal/auth"
)

// DefaultPostmarkURL is the Postmark single-email endpoint.
const DefaultPostmarkURL = "https://api.postmarkapp.com/email"

// DefaultPostmarkTimeout bounds a single API call.
const DefaultPostmarkTimeout = 10 * time.Second

// PostmarkSettings configures PostmarkNotifier.
type PostmarkSettings struct {
	// APIURL defaults to DefaultPostmarkURL.
	APIURL        string
	ServerToken   string
	From          string
	MessageStream string
}

// PostmarkNotifier sends messages through the Postmark HTTP API.
type PostmarkNotifier struct {
	client   *http.Client
	settings PostmarkSettings
}

// NewPostmarkNotifier creates a PostmarkNotifier. A nil client gets a
// client with DefaultPostmarkTimeout.
func NewPostmarkNotifier(client *http.Client, settings PostmarkSettings) (*PostmarkNotifier, error) {
	if settings.ServerToken == "" {
		return nil, oops.Code("POSTMARK_CONFIG_INVALID").Errorf("server token is required")
	}
	if settings.From == "" {
		return nil, oops.Code("POSTMARK_CONFIG_INVALID").Errorf("from address is required")
	}
	if settings.APIURL == "" {
		settings.APIURL = DefaultPostmarkURL
	}
	if settings.MessageStream == "" {
		settings.MessageStream = "outbound"
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultPostmarkTimeout}
	}
	return &PostmarkNotifier{client: client, settings: settings}, nil
}

type postmarkEmail struct {
	From          string
	To            string
	Subject       string
	TextBody      string
	MessageStream string
}

type postmarkResponse struct {
	ErrorCode int
	Message   string
	MessageID string
}

// Notify sends one email. Any non-zero Postmark error code or non-2xx status
// is an error.
func (n *PostmarkNotifier) Notify(ctx context.Context, to, subject, body string) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(postmarkEmail{
		From:          n.settings.From,
		To:            to,
		Subject:       subject,
		TextBody:      body,
		MessageStream: n.settings.MessageStream,
	}); err != nil {
		return oops.Code("POSTMARK_SEND_FAILED").With("operation", "encode email").Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.settings.APIURL, &buf)
	if err != nil {
		return oops.Code("POSTMARK_SEND_FAILED").With("operation", "create request").Wrap(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Postmark-Server-Token", n.settings.ServerToken)

	resp, err := n.client.Do(req)
	if err != nil {
		return oops.Code("POSTMARK_SEND_FAILED").With("operation", "send request").Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // response already read

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return oops.Code("POSTMARK_SEND_FAILED").
			With("operation", "read response").
			With("status", resp.StatusCode).
			Wrap(err)
	}

	var res postmarkResponse
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &res); err != nil && resp.StatusCode < 300 {
			return oops.Code("POSTMARK_SEND_FAILED").
				With("operation", "decode response").
				With("status", resp.StatusCode).
				Wrap(err)
		}
	}

	if resp.StatusCode >= 300 || res.ErrorCode != 0 {
		msg := res.Message
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return oops.Code("POSTMARK_REJECTED").
			With("status", resp.StatusCode).
			With("postmark_error_code", res.ErrorCode).
			Errorf("postmark rejected email: %s", msg)
	}
	return nil
}

var _ auth.Notifier = (*PostmarkNotifier)(nil)
