package email

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// NoopSender logs messages instead of delivering them. It keeps what it was
// given so development setups and tests can inspect it.
type NoopSender struct {
	mu   sync.Mutex
	sent []Message
}

func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

// Send records msg.
// POST: msg is appended to Sent(); never fails
func (s *NoopSender) Send(_ context.Context, msg Message) (Receipt, error) {
	slog.Info("noop_email_send", "to", msg.To, "subject", msg.Subject)
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	n := len(s.sent)
	s.mu.Unlock()
	return Receipt{MessageID: fmt.Sprintf("noop-%d", n), SentAt: time.Now()}, nil
}

// Sent returns a copy of every message recorded so far.
func (s *NoopSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}
