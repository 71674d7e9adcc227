// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

package mail

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/shopkeep/shopkeep/internal/auth"
)

// RetryingSender retries transient failures of the wrapped notifier with
// exponential backoff.
type RetryingSender struct {
	next     auth.Notifier
	attempts uint64
	initial  time.Duration
	logger   *slog.Logger
}

// NewRetryingSender creates a new RetryingSender making at most attempts deliveries.
func NewRetryingSender(next auth.Notifier, attempts uint64, initial time.Duration, logger *slog.Logger) (*RetryingSender, error) {
	if next == nil {
		return nil, oops.Code("MAIL_INVALID_CONFIG").Errorf("wrapped sender is required")
	}
	if attempts == 0 {
		return nil, oops.Code("MAIL_INVALID_CONFIG").Errorf("attempts must be positive")
	}
	if initial <= 0 {
		return nil, oops.Code("MAIL_INVALID_CONFIG").Errorf("initial backoff must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryingSender{next: next, attempts: attempts, initial: initial, logger: logger}, nil
}

// Send delivers msg, retrying errors that wrap ErrTransient.
func (s *RetryingSender) Send(ctx context.Context, msg auth.Message) error {
	backoff := retry.WithMaxRetries(s.attempts-1, retry.NewExponential(s.initial))

	var attempt uint64
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := s.next.Send(ctx, msg)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrTransient) && attempt < s.attempts {
			s.logger.WarnContext(ctx, "mail delivery failed, retrying",
				"attempt", attempt,
				"to", msg.To,
				"error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return oops.With("attempts", attempt).Wrap(err)
	}
	return nil
}
