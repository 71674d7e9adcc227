// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"github.com/samber/oops"
)

// One-time code configuration.
const (
	CodeDigits     = 6
	CodeValidity   = 10 * time.Minute
	codeLowerBound = 100000 // smallest six digit value
	codeRangeWidth = 900000 // 100000..999999 inclusive
)

// OneTimeCode is the pending password reset code for an email.
// At most one exists per email; issuing a new code replaces the old one.
type OneTimeCode struct {
	Email     string
	Code      string
	CreatedAt time.Time
}

// NewOneTimeCode creates a OneTimeCode with a freshly generated code.
func NewOneTimeCode(email string, now time.Time) (*OneTimeCode, error) {
	if email == "" {
		return nil, oops.Code("CODE_INVALID_EMAIL").Wrap(required("email"))
	}
	code, err := GenerateCode()
	if err != nil {
		return nil, err
	}
	return &OneTimeCode{
		Email:     NormalizeEmail(email),
		Code:      code,
		CreatedAt: now.UTC(),
	}, nil
}

// IsExpiredAt reports whether more than window has elapsed since the code was created.
// A code is still valid at exactly window.
func (c *OneTimeCode) IsExpiredAt(now time.Time, window time.Duration) bool {
	return now.Sub(c.CreatedAt) > window
}

// Matches compares a submitted code in constant time.
func (c *OneTimeCode) Matches(code string) bool {
	return subtle.ConstantTimeCompare([]byte(c.Code), []byte(code)) == 1
}

// GenerateCode returns a uniformly random decimal code in [100000, 999999].
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeRangeWidth))
	if err != nil {
		return "", oops.Code("CODE_GENERATE_FAILED").Wrap(err)
	}
	return fmt.Sprintf("%0*d", CodeDigits, n.Int64()+codeLowerBound), nil
}

// OneTimeCodeRepository manages one-time code persistence.
type OneTimeCodeRepository interface {
	// Upsert stores the code, replacing any existing code for the same email.
	Upsert(ctx context.Context, code *OneTimeCode) error

	// Latest returns the newest code for an email.
	// Returns ErrNotFound if none exists.
	Latest(ctx context.Context, email string) (*OneTimeCode, error)

	// Delete removes any code for an email. Deleting a missing code is not an error.
	Delete(ctx context.Context, email string) error
}
