// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/accountd/internal/auth"
)

// DefaultSMTPTimeout bounds one delivery, dial through QUIT.
const DefaultSMTPTimeout = 30 * time.Second

// SMTPSettings configures SMTPNotifier.
type SMTPSettings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// Timeout defaults to DefaultSMTPTimeout.
	Timeout time.Duration
}

// SMTPNotifier sends plain-text messages through an SMTP relay. STARTTLS is
// used whenever the server offers it; credentials are only sent after it.
type SMTPNotifier struct {
	settings SMTPSettings
	now      func() time.Time
}

// NewSMTPNotifier creates an SMTPNotifier.
func NewSMTPNotifier(settings SMTPSettings) (*SMTPNotifier, error) {
	if settings.Host == "" {
		return nil, oops.Code("SMTP_CONFIG_INVALID").Errorf("smtp host is required")
	}
	if settings.From == "" {
		return nil, oops.Code("SMTP_CONFIG_INVALID").Errorf("from address is required")
	}
	if settings.Port <= 0 {
		settings.Port = 587
	}
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultSMTPTimeout
	}
	return &SMTPNotifier{settings: settings, now: time.Now}, nil
}

// Notify delivers one message.
func (n *SMTPNotifier) Notify(ctx context.Context, to, subject, body string) error {
	addr := net.JoinHostPort(n.settings.Host, strconv.Itoa(n.settings.Port))
	fail := func(op string, cause error) error {
		return oops.Code("SMTP_SEND_FAILED").
			With("operation", op).
			With("addr", addr).
			Wrap(cause)
	}

	ctx, cancel := context.WithTimeout(ctx, n.settings.Timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fail("dial", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline) //nolint:errcheck // a failed deadline surfaces on the next read
	}

	client, err := smtp.NewClient(conn, n.settings.Host)
	if err != nil {
		_ = conn.Close() //nolint:errcheck // greeting error takes precedence
		return fail("greeting", err)
	}
	defer func() { _ = client.Close() }() //nolint:errcheck // QUIT already attempted

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: n.settings.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fail("starttls", err)
		}
	}
	if n.settings.Username != "" {
		plain := smtp.PlainAuth("", n.settings.Username, n.settings.Password, n.settings.Host)
		if err := client.Auth(plain); err != nil {
			return fail("auth", err)
		}
	}

	if err := client.Mail(n.settings.From); err != nil {
		return fail("mail from", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fail("rcpt to", err)
	}
	w, err := client.Data()
	if err != nil {
		return fail("data", err)
	}
	if _, err := w.Write(n.message(to, subject, body)); err != nil {
		_ = w.Close() //nolint:errcheck // write error takes precedence
		return fail("write message", err)
	}
	if err := w.Close(); err != nil {
		return fail("end data", err)
	}
	if err := client.Quit(); err != nil {
		return fail("quit", err)
	}
	return nil
}

// message renders an RFC 5322 plain-text message with CRLF line endings.
func (n *SMTPNotifier) message(to, subject, body string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", n.settings.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", n.now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	body = strings.ReplaceAll(body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\r\n")
	}
	return b.Bytes()
}

var _ auth.Notifier = (*SMTPNotifier)(nil)
