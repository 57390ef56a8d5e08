// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil_test

import (
	"errors"
	"testing"

	"github.com/samber/oops"

	"github.com/holomush/accountd/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("MY_CODE").Errorf("test error")
	errutil.AssertErrorCode(t, err, "MY_CODE")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("user_id", int64(7)).Errorf("test error")
	errutil.AssertErrorContext(t, err, "user_id", int64(7))
}

func TestAssertNoErrorContext(t *testing.T) {
	err := oops.With("email", "ada@example.com").Errorf("test error")
	errutil.AssertNoErrorContext(t, err, "hunter2")

	// Plain errors carry no context to leak.
	errutil.AssertNoErrorContext(t, errors.New("plain"), "hunter2")
}
