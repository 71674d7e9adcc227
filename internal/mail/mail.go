// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

// Package mail delivers auth notifications by email.
package mail

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/samber/oops"

	"github.com/shopkeep/shopkeep/internal/auth"
	"github.com/shopkeep/shopkeep/internal/config"
)

// ErrTransient marks delivery failures that may succeed when retried.
var ErrTransient = errors.New("transient delivery failure")

// Compile-time interface checks.
var (
	_ auth.Notifier = (*SendGridSender)(nil)
	_ auth.Notifier = (*SMTPSender)(nil)
	_ auth.Notifier = (*LogSender)(nil)
	_ auth.Notifier = (*RetryingSender)(nil)
)

// New builds the notifier selected by cfg.Provider. Network providers are
// wrapped in a RetryingSender unless cfg.Retry.Attempts is 1.
func New(cfg config.MailConfig, logger *slog.Logger) (auth.Notifier, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var sender auth.Notifier
	switch cfg.Provider {
	case config.MailSendGrid:
		s, err := NewSendGridSender(cfg.SendGrid.APIKey, cfg.From, WithHost(cfg.SendGrid.Host))
		if err != nil {
			return nil, err
		}
		sender = s
	case config.MailSMTP:
		s, err := NewSMTPSender(cfg.SMTP, cfg.From)
		if err != nil {
			return nil, err
		}
		sender = s
	case config.MailLog:
		return NewLogSender(logger), nil
	default:
		return nil, oops.Code("MAIL_INVALID_PROVIDER").
			With("provider", cfg.Provider).
			Errorf("unknown mail provider")
	}

	if cfg.Retry.Attempts <= 1 {
		return sender, nil
	}
	return NewRetryingSender(sender, cfg.Retry.Attempts, cfg.Retry.InitialBackoff, logger)
}

func validateMessage(msg auth.Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return oops.Code("MAIL_INVALID_MESSAGE").Errorf("recipient is required")
	}
	if strings.ContainsAny(msg.To, "\r\n") || strings.ContainsAny(msg.Subject, "\r\n") {
		return oops.Code("MAIL_INVALID_MESSAGE").
			With("to", msg.To).
			Errorf("headers must not contain line breaks")
	}
	return nil
}
