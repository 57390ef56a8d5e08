// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package notify delivers account emails.
//
// Every notifier implements auth.Notifier. LogNotifier is meant for local
// development, MemoryNotifier for tests, and PostmarkNotifier and
// SMTPNotifier for production. Wrap any of them with Instrumented to count
// deliveries and failures.
package notify
