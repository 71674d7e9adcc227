// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// ResetConfig tunes the password reset flow.
type ResetConfig struct {
	// CodeValidity is how long a code stays usable. Zero means CodeValidity.
	CodeValidity time.Duration

	// RequireCodeOnConfirm makes ResetPassword re-run the code check instead of
	// trusting that the caller verified it first.
	RequireCodeOnConfirm bool
}

// PasswordResetService handles password reset operations.
type PasswordResetService struct {
	users    UserRepository
	codes    OneTimeCodeRepository
	notifier Notifier
	hasher   PasswordHasher
	cfg      ResetConfig
	logger   *slog.Logger
	metrics  *Metrics
	now      func() time.Time
}

// NewPasswordResetService creates a new PasswordResetService.
func NewPasswordResetService(
	users UserRepository,
	codes OneTimeCodeRepository,
	notifier Notifier,
	hasher PasswordHasher,
	cfg ResetConfig,
	opts ...ServiceOption,
) (*PasswordResetService, error) {
	if users == nil {
		return nil, oops.Code("RESET_INVALID_SERVICE").Errorf("users repository is required")
	}
	if codes == nil {
		return nil, oops.Code("RESET_INVALID_SERVICE").Errorf("code repository is required")
	}
	if notifier == nil {
		return nil, oops.Code("RESET_INVALID_SERVICE").Errorf("notifier is required")
	}
	if hasher == nil {
		return nil, oops.Code("RESET_INVALID_SERVICE").Errorf("password hasher is required")
	}
	if cfg.CodeValidity < 0 {
		return nil, oops.Code("RESET_INVALID_SERVICE").Errorf("code validity cannot be negative")
	}
	if cfg.CodeValidity == 0 {
		cfg.CodeValidity = CodeValidity
	}
	o := applyOptions(opts)
	if o.logger == nil {
		return nil, oops.Code("RESET_INVALID_SERVICE").Errorf("logger cannot be nil")
	}
	return &PasswordResetService{
		users:    users,
		codes:    codes,
		notifier: notifier,
		hasher:   hasher,
		cfg:      cfg,
		logger:   o.logger,
		metrics:  o.metrics,
		now:      o.now,
	}, nil
}

// RequestReset issues a fresh code for the user owning email and sends it.
// The code is stored before delivery, so a delivery error leaves a usable code behind.
// The code itself is never returned.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	if email == "" {
		s.metrics.record("reset_request", OutcomeFailure)
		return oops.Code("RESET_VALIDATION").Wrap(required("email"))
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.metrics.record("reset_request", OutcomeFailure)
			return oops.Code("USER_NOT_FOUND").With("email", email).Wrap(err)
		}
		s.metrics.record("reset_request", OutcomeError)
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	code, err := NewOneTimeCode(user.Email, s.now())
	if err != nil {
		s.metrics.record("reset_request", OutcomeError)
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate code").
			Wrap(err)
	}

	if err := s.codes.Upsert(ctx, code); err != nil {
		s.metrics.record("reset_request", OutcomeError)
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "store code").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	msg := ResetCodeMessage(user.Email, code.Code, s.cfg.CodeValidity)
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.metrics.record("reset_request", OutcomeError)
		return oops.Code("RESET_DELIVERY_FAILED").
			With("user_id", user.ID.String()).
			Wrap(fmt.Errorf("%w: %w", ErrDelivery, err))
	}

	s.metrics.record("reset_request", OutcomeSuccess)
	s.logger.InfoContext(ctx, "reset code issued", "user_id", user.ID.String())
	return nil
}

// VerifyCode checks a submitted code against the newest stored code for email.
// It does not consume the code; a code may be verified repeatedly while valid.
func (s *PasswordResetService) VerifyCode(ctx context.Context, email, code string) error {
	err := s.verifyCode(ctx, email, code)
	switch {
	case err == nil:
		s.metrics.record("reset_verify", OutcomeSuccess)
	case isClientError(err):
		s.metrics.record("reset_verify", OutcomeFailure)
	default:
		s.metrics.record("reset_verify", OutcomeError)
	}
	return err
}

func (s *PasswordResetService) verifyCode(ctx context.Context, email, code string) error {
	if email == "" {
		return oops.Code("RESET_VALIDATION").Wrap(required("email"))
	}
	if code == "" {
		return oops.Code("RESET_VALIDATION").Wrap(required("otp"))
	}

	stored, err := s.codes.Latest(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("CODE_NOT_FOUND").With("email", email).Wrap(ErrCodeNotFound)
		}
		return oops.Code("RESET_VERIFY_FAILED").
			With("operation", "get latest code").
			Wrap(err)
	}

	if stored.IsExpiredAt(s.now(), s.cfg.CodeValidity) {
		return oops.Code("CODE_EXPIRED").
			With("email", email).
			With("created_at", stored.CreatedAt).
			Wrap(ErrCodeExpired)
	}

	if !stored.Matches(code) {
		return oops.Code("CODE_INVALID").With("email", email).Wrap(ErrCodeInvalid)
	}
	return nil
}

// ResetPassword replaces the credential of the user owning email and deletes
// any pending code for that email. When RequireCodeOnConfirm is set, code must
// pass VerifyCode first.
func (s *PasswordResetService) ResetPassword(ctx context.Context, email, newPassword, code string) error {
	err := s.resetPassword(ctx, email, newPassword, code)
	switch {
	case err == nil:
		s.metrics.record("reset_confirm", OutcomeSuccess)
	case isClientError(err):
		s.metrics.record("reset_confirm", OutcomeFailure)
	default:
		s.metrics.record("reset_confirm", OutcomeError)
	}
	return err
}

func (s *PasswordResetService) resetPassword(ctx context.Context, email, newPassword, code string) error {
	if email == "" {
		return oops.Code("RESET_VALIDATION").Wrap(required("email"))
	}
	if newPassword == "" {
		return oops.Code("RESET_VALIDATION").Wrap(required("newPassword"))
	}
	if s.cfg.RequireCodeOnConfirm && code == "" {
		return oops.Code("RESET_VALIDATION").Wrap(required("otp"))
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("USER_NOT_FOUND").With("email", email).Wrap(err)
		}
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	if s.cfg.RequireCodeOnConfirm {
		if err := s.verifyCode(ctx, user.Email, code); err != nil {
			return err
		}
	}

	hashedPassword, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hashedPassword); err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "update password").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	// Cleanup failure is logged; the password was already updated.
	if err := s.codes.Delete(ctx, NormalizeEmail(user.Email)); err != nil {
		s.logger.WarnContext(ctx, "best-effort reset code cleanup failed",
			"user_id", user.ID.String(),
			"operation", "delete_code",
			"error", err)
	}

	s.logger.InfoContext(ctx, "password reset", "user_id", user.ID.String())
	return nil
}

// isClientError reports whether err was caused by the caller rather than a fault.
func isClientError(err error) bool {
	for _, kind := range []error{
		ErrValidation, ErrNotFound, ErrConflict, ErrInvalidCredentials,
		ErrCodeNotFound, ErrCodeExpired, ErrCodeInvalid,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
