// Copyright (c) 2026 StratCap. All rights reserved.
// Author: identity-team@stratcap.io

package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// ResendSender delivers messages through the Resend transactional
// email API.
type ResendSender struct {
	client *resend.Client
	from   string
	logger *slog.Logger
}

/*
NewResendSender creates a Resend-backed Sender.

Parameters:
  - apiKey: Resend API key. Must be non-empty.
  - from: Sender address, e.g. "StratCap Identity <no-reply@stratcap.com>".
  - logger: Structured logger for delivery events.

Returns:
  - *ResendSender: The configured sender.
  - error: If the API key or from address is missing.
*/
func NewResendSender(apiKey string, from string, logger *slog.Logger) (*ResendSender, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("notify: resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("notify: from address is required")
	}

	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
		logger: logger,
	}, nil
}

// Send implements Sender.
func (sender *ResendSender) Send(ctx context.Context, message Message) error {
	params := &resend.SendEmailRequest{
		From:    sender.from,
		To:      []string{message.To},
		Subject: message.Subject,
		Html:    message.HTML,
		Text:    message.Text,
	}

	sent, err := sender.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("notify: resend send failed: %w", err)
	}

	sender.logger.Info("email_sent",
		slog.String("provider", "resend"),
		slog.String("email_id", sent.Id),
		slog.String("subject", message.Subject),
	)

	return nil
}

// LogSender writes messages to the structured log instead of delivering
// them. Used in development and tests where no email provider is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log-only Sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send implements Sender.
func (sender *LogSender) Send(_ context.Context, message Message) error {
	sender.logger.Info("email_logged",
		slog.String("provider", "log"),
		slog.String("to", message.To),
		slog.String("subject", message.Subject),
		slog.String("text", message.Text),
	)
	return nil
}
