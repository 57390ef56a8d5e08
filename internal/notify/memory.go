// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"sync"

	"github.com/holomush/accountd/internal/auth"
)

// Email is a message captured by MemoryNotifier.
type Email struct {
	To      string
	Subject string
	Body    string
}

// MemoryNotifier keeps messages in memory. Safe for concurrent use.
type MemoryNotifier struct {
	mu     sync.Mutex
	emails []Email
	err    error
}

// NewMemoryNotifier creates an empty MemoryNotifier.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

// Notify records the message, or returns the error set by FailWith.
func (n *MemoryNotifier) Notify(_ context.Context, to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.emails = append(n.emails, Email{To: to, Subject: subject, Body: body})
	return nil
}

// FailWith makes subsequent Notify calls return err. Pass nil to recover.
func (n *MemoryNotifier) FailWith(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

// Emails returns a copy of the recorded messages in send order.
func (n *MemoryNotifier) Emails() []Email {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Email, len(n.emails))
	copy(out, n.emails)
	return out
}

// Last returns the most recent message sent to the given address.
func (n *MemoryNotifier) Last(to string) (Email, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.emails) - 1; i >= 0; i-- {
		if n.emails[i].To == to {
			return n.emails[i], true
		}
	}
	return Email{}, false
}

var _ auth.Notifier = (*MemoryNotifier)(nil)
