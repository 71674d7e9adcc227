// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

package errutil_test

import (
	"errors"
	"testing"

	"github.com/samber/oops"

	"github.com/shopkeep/shopkeep/pkg/errutil"
)

var errKind = errors.New("kind")

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	errutil.AssertErrorCode(t, oops.Code("MY_CODE").Errorf("test error"), "MY_CODE")
}

func TestAssertErrorCode_InnermostCodeWins(t *testing.T) {
	inner := oops.Code("INNER").Errorf("inner")
	errutil.AssertErrorCode(t, oops.Code("OUTER").Wrap(inner), "INNER")
}

func TestAssertErrorKind(t *testing.T) {
	errutil.AssertErrorKind(t, oops.Code("WRAPPED").Wrap(errKind), "WRAPPED", errKind)
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	errutil.AssertErrorContext(t, oops.With("user_id", "123").Errorf("test error"), "user_id", "123")
}
