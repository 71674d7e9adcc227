// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

package mail

import (
	"context"
	"errors"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/samber/oops"

	"github.com/shopkeep/shopkeep/internal/auth"
	"github.com/shopkeep/shopkeep/internal/config"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends plain text mail through an SMTP relay.
type SMTPSender struct {
	addr     string
	from     string
	auth     smtp.Auth
	sendMail sendMailFunc
}

// NewSMTPSender creates a new SMTPSender. Authentication is skipped when no username is set.
func NewSMTPSender(cfg config.SMTPConfig, from string) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, oops.Code("MAIL_INVALID_CONFIG").Errorf("smtp host is required")
	}
	if cfg.Port <= 0 {
		return nil, oops.Code("MAIL_INVALID_CONFIG").With("port", cfg.Port).Errorf("smtp port must be positive")
	}
	if from == "" {
		return nil, oops.Code("MAIL_INVALID_CONFIG").Errorf("sender address is required")
	}
	s := &SMTPSender{
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		from:     from,
		sendMail: smtp.SendMail,
	}
	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return s, nil
}

// Send delivers msg. 4xx replies and connection failures wrap ErrTransient.
func (s *SMTPSender) Send(ctx context.Context, msg auth.Message) error {
	if err := validateMessage(msg); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("provider", "smtp").Wrap(err)
	}

	if err := s.sendMail(s.addr, s.auth, s.from, []string{msg.To}, buildMessage(s.from, msg)); err != nil {
		var reply *textproto.Error
		if errors.As(err, &reply) && reply.Code >= 500 {
			return oops.Code("MAIL_REJECTED").
				With("provider", "smtp").
				With("status", reply.Code).
				Wrap(err)
		}
		return oops.Code("MAIL_SEND_FAILED").
			With("provider", "smtp").
			With("addr", s.addr).
			Wrap(errors.Join(ErrTransient, err))
	}
	return nil
}

func buildMessage(from string, msg auth.Message) []byte {
	lines := []string{
		"From: " + from,
		"To: " + msg.To,
		"Subject: " + msg.Subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
		msg.Text,
	}
	return []byte(strings.Join(lines, "\r\n"))
}
