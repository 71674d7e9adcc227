// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

package auth

import (
	"context"
	"fmt"
	"time"
)

// ResetCodeSubject is the subject line of password reset messages.
const ResetCodeSubject = "Password Reset OTP"

// Message is a plain text notification for a single recipient.
type Message struct {
	To      string
	Subject string
	Text    string
}

// Notifier delivers messages to users. Implementations live in internal/mail.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// ResetCodeMessage composes the password reset notification for code.
func ResetCodeMessage(email, code string, validity time.Duration) Message {
	return Message{
		To:      email,
		Subject: ResetCodeSubject,
		Text: fmt.Sprintf("Your OTP for password reset is: %s. It is valid for %d minutes.",
			code, int(validity/time.Minute)),
	}
}
