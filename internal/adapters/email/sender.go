// Package email delivers score-change notifications.
package email

import (
	"context"
	"time"
)

// Message is one outgoing notification.
type Message struct {
	To      []string
	From    string // optional; senders fall back to their configured address
	Subject string
	HTML    string
	Text    string
}

// Receipt is what the provider returned for an accepted message.
type Receipt struct {
	MessageID string
	SentAt    time.Time
}

// Sender delivers a message through some provider.
type Sender interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}
