package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/resend/resend-go/v2"
)

var ErrNoRecipients = errors.New("email has no recipients")

// ResendSender sends through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender creates a sender for apiKey with a default from address.
// PRE: apiKey is a Resend API key; from is a verified sender address
func NewResendSender(apiKey, from string) *ResendSender {
	return NewResendSenderWithClient(resend.NewClient(apiKey), from)
}

// NewResendSenderWithClient wraps a preconfigured client, e.g. one pointed at a test server.
func NewResendSenderWithClient(client *resend.Client, from string) *ResendSender {
	return &ResendSender{client: client, from: from}
}

// Send queues msg for delivery.
// PRE: msg has at least one recipient
// POST: returns the Resend message id
func (s *ResendSender) Send(ctx context.Context, msg Message) (Receipt, error) {
	if len(msg.To) == 0 {
		return Receipt{}, ErrNoRecipients
	}
	from := msg.From
	if from == "" {
		from = s.from
	}
	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		slog.Error("resend_send_failed", "error", err, "to", msg.To, "subject", msg.Subject)
		return Receipt{}, fmt.Errorf("resend send: %w", err)
	}
	slog.Info("resend_sent", "message_id", sent.Id, "to", msg.To)
	return Receipt{MessageID: sent.Id, SentAt: time.Now()}, nil
}
