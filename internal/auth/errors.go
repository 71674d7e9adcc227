// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

package auth

import "errors"

// Error kinds. Services wrap these with oops codes so callers can classify
// failures with errors.Is while logs keep the code and context.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a username or email is already taken.
	ErrConflict = errors.New("already exists")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("invalid input")

	// ErrInvalidCredentials is returned by Login for both unknown users and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrUnauthenticated is returned when no credential was presented.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrInvalidToken is returned for malformed, forged or expired tokens.
	ErrInvalidToken = errors.New("token is not valid")

	// ErrForbidden is returned when an identity fails an authorization policy.
	ErrForbidden = errors.New("you are not allowed to do that")

	// ErrCodeNotFound is returned when no one-time code exists for an email.
	ErrCodeNotFound = errors.New("otp not found")

	// ErrCodeExpired is returned when the one-time code is older than its validity window.
	ErrCodeExpired = errors.New("otp has expired")

	// ErrCodeInvalid is returned when the submitted code does not match.
	ErrCodeInvalid = errors.New("invalid otp")

	// ErrDelivery is returned when a notification could not be sent.
	ErrDelivery = errors.New("failed to send notification")
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements error.
func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func required(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: "is required"}
}
