// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"log/slog"

	"github.com/holomush/accountd/internal/auth"
)

// LogNotifier writes messages to a logger instead of sending them.
//
// Bodies carry usernames and reset codes, so they are only logged when
// includeBody is set. Never enable it outside local development.
type LogNotifier struct {
	logger      *slog.Logger
	includeBody bool
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger, includeBody bool) *LogNotifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LogNotifier{logger: logger, includeBody: includeBody}
}

// Notify logs the message.
func (n *LogNotifier) Notify(ctx context.Context, to, subject, body string) error {
	attrs := []any{"to", to, "subject", subject}
	if n.includeBody {
		attrs = append(attrs, "body", body)
	} else {
		attrs = append(attrs, "body_bytes", len(body))
	}
	n.logger.InfoContext(ctx, "email not sent, logged instead", attrs...)
	return nil
}

var _ auth.Notifier = (*LogNotifier)(nil)
