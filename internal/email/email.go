package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"

	"github.com/resend/resend-go/v2"
)

// Message is one order notification.
type Message struct {
	To      string
	Subject string
	HTML    string
	// Key identifies the notification. The provider delivers repeated sends
	// with the same key once, so a requeued event does not email twice.
	Key string
	// Tags label the message in the provider's dashboard, e.g. order_status.
	Tags map[string]string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender logs emails instead of sending them. Used in ENV=local.
type LogSender struct {
	logger *slog.Logger
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "order email (local dev)",
		"to", msg.To, "subject", msg.Subject, "key", msg.Key, "tags", msg.Tags, "body", msg.HTML)
	return nil
}

// ResendSender sends emails via the Resend API. Used in staging/production.
type ResendSender struct {
	client *resend.Client
	from   string
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	}
	for name, value := range msg.Tags {
		params.Tags = append(params.Tags, resend.Tag{Name: name, Value: value})
	}
	if msg.Key != "" {
		// Keeps mail clients from threading separate order updates together.
		params.Headers = map[string]string{"X-Entity-Ref-ID": msg.Key}
	}

	_, err := s.client.Emails.SendWithOptions(ctx, params, &resend.SendEmailOptions{
		IdempotencyKey: msg.Key,
	})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// NewSender returns a LogSender for ENV=local, ResendSender otherwise.
// fromName is the display name shown next to the from address.
func NewSender(env, apiKey, from, fromName string, logger *slog.Logger) Sender {
	if env == "local" {
		return &LogSender{logger: logger.With("component", "email")}
	}
	if fromName != "" {
		from = (&mail.Address{Name: fromName, Address: from}).String()
	}
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}
