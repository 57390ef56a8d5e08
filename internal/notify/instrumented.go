// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/holomush/accountd/internal/auth"
)

// Instrumented counts deliveries and failures of the wrapped notifier.
type Instrumented struct {
	next     auth.Notifier
	sent     prometheus.Counter
	failures prometheus.Counter
}

// NewInstrumented wraps next. driver labels the metrics, e.g. "postmark".
// Metrics are registered with reg; a nil reg leaves them unregistered.
func NewInstrumented(next auth.Notifier, driver string, reg prometheus.Registerer) *Instrumented {
	labels := prometheus.Labels{"driver": driver}
	i := &Instrumented{
		next: next,
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "accountd_notifications_sent_total",
			Help:        "Emails handed to the delivery backend.",
			ConstLabels: labels,
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "accountd_notification_failures_total",
			Help:        "Emails the delivery backend failed to accept.",
			ConstLabels: labels,
		}),
	}
	if reg != nil {
		reg.MustRegister(i.sent, i.failures)
	}
	return i
}

// Notify delegates to the wrapped notifier and records the outcome.
func (i *Instrumented) Notify(ctx context.Context, to, subject, body string) error {
	if err := i.next.Notify(ctx, to, subject, body); err != nil {
		i.failures.Inc()
		return err //nolint:wrapcheck // pass-through wrapper
	}
	i.sent.Inc()
	return nil
}

var _ auth.Notifier = (*Instrumented)(nil)
