// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

package mail

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/oops"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/shopkeep/shopkeep/internal/auth"
)

// SendGrid API defaults.
const (
	DefaultSendGridHost = "https://api.sendgrid.com"
	sendGridEndpoint    = "/v3/mail/send"
)

// SendGridSender sends plain text mail through the SendGrid v3 API.
type SendGridSender struct {
	apiKey string
	from   string
	host   string
}

// SendGridOption configures a SendGridSender.
type SendGridOption func(*SendGridSender)

// WithHost overrides the API base URL. Empty keeps the default.
func WithHost(host string) SendGridOption {
	return func(s *SendGridSender) {
		if host != "" {
			s.host = host
		}
	}
}

// NewSendGridSender creates a new SendGridSender.
func NewSendGridSender(apiKey, from string, opts ...SendGridOption) (*SendGridSender, error) {
	if apiKey == "" {
		return nil, oops.Code("MAIL_INVALID_CONFIG").Errorf("sendgrid api key is required")
	}
	if from == "" {
		return nil, oops.Code("MAIL_INVALID_CONFIG").Errorf("sender address is required")
	}
	s := &SendGridSender{apiKey: apiKey, from: from, host: DefaultSendGridHost}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Send delivers msg. Throttling, server errors and network failures wrap ErrTransient.
func (s *SendGridSender) Send(ctx context.Context, msg auth.Message) error {
	if err := validateMessage(msg); err != nil {
		return err
	}

	m := sgmail.NewV3MailInit(
		sgmail.NewEmail("", s.from),
		msg.Subject,
		sgmail.NewEmail("", msg.To),
		sgmail.NewContent("text/plain", msg.Text),
	)

	req := sendgrid.GetRequest(s.apiKey, sendGridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	resp, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("provider", "sendgrid").
			With("operation", "post message").
			Wrap(errors.Join(ErrTransient, err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return oops.Code("MAIL_SEND_FAILED").
			With("provider", "sendgrid").
			With("status", resp.StatusCode).
			Wrap(ErrTransient)
	case resp.StatusCode >= http.StatusMultipleChoices:
		return oops.Code("MAIL_REJECTED").
			With("provider", "sendgrid").
			With("status", resp.StatusCode).
			With("body", resp.Body).
			Errorf("sendgrid rejected the message")
	}
	return nil
}
