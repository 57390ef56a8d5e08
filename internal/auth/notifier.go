// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"embed"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/samber/oops"
)

// Notifier delivers a message to an email address.
type Notifier interface {
	Notify(ctx context.Context, to, subject, body string) error
}

// Template names.
const (
	messageFindIdentity = "find_identity"
	messageResetCode    = "reset_code"
)

// Template elements every message must define.
const (
	elementSubject = "subject"
	elementBody    = "body"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Message is a rendered email.
type Message struct {
	Subject string
	Body    string
}

// Messages renders the outbound emails.
type Messages struct {
	views map[string]*template.Template
}

// NewMessages parses the embedded templates.
func NewMessages() (*Messages, error) {
	m := &Messages{views: make(map[string]*template.Template)}
	for _, name := range []string{messageFindIdentity, messageResetCode} {
		tmpl, err := template.New(name).ParseFS(templateFS, "templates/"+name+".tmpl")
		if err != nil {
			return nil, oops.Code("MESSAGE_TEMPLATE_INVALID").With("template", name).Wrap(err)
		}
		for _, element := range []string{elementSubject, elementBody} {
			if tmpl.Lookup(element) == nil {
				return nil, oops.Code("MESSAGE_TEMPLATE_INVALID").
					With("template", name).
					Errorf("missing %s template", element)
			}
		}
		m.views[name] = tmpl
	}
	return m, nil
}

// FindIdentity renders the message carrying a user's username.
func (m *Messages) FindIdentity(username string) (Message, error) {
	return m.render(messageFindIdentity, struct{ Username string }{username})
}

// ResetCode renders the message carrying a password reset code.
func (m *Messages) ResetCode(code string, ttl time.Duration) (Message, error) {
	return m.render(messageResetCode, struct {
		Code string
		TTL  string
	}{code, humanDuration(ttl)})
}

func (m *Messages) render(name string, data any) (Message, error) {
	tmpl := m.views[name]
	var subject, body strings.Builder
	if err := tmpl.ExecuteTemplate(&subject, elementSubject, data); err != nil {
		return Message{}, oops.Code("MESSAGE_RENDER_FAILED").With("template", name).Wrap(err)
	}
	if err := tmpl.ExecuteTemplate(&body, elementBody, data); err != nil {
		return Message{}, oops.Code("MESSAGE_RENDER_FAILED").With("template", name).Wrap(err)
	}
	return Message{
		Subject: strings.TrimSpace(subject.String()),
		Body:    strings.TrimLeft(body.String(), "\n"),
	}, nil
}

// humanDuration formats whole minutes as "15 minutes", falling back to
// Duration.String for anything else.
func humanDuration(d time.Duration) string {
	if d <= 0 || d%time.Minute != 0 {
		return d.String()
	}
	minutes := int(d / time.Minute)
	if minutes == 1 {
		return "1 minute"
	}
	return strconv.Itoa(minutes) + " minutes"
}
