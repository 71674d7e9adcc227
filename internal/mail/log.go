// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

package mail

import (
	"context"
	"log/slog"

	"github.com/shopkeep/shopkeep/internal/auth"
)

// LogSender records deliveries in the log instead of sending them.
// The message body is never logged because it carries the reset code.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a new LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs the recipient and subject.
func (s *LogSender) Send(ctx context.Context, msg auth.Message) error {
	if err := validateMessage(msg); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "mail delivery skipped",
		"provider", "log",
		"to", msg.To,
		"subject", msg.Subject)
	return nil
}
