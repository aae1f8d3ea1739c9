package orchestrators

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"scoreboard/internal/adapters/email"
	outboxStore "scoreboard/internal/adapters/storage/outbox"
	"scoreboard/internal/domain/outbox"
)

// NotificationQueue accepts notices that could not be delivered inline.
type NotificationQueue interface {
	Save(ctx context.Context, e outbox.Entry) error
}

// EnqueueNotice stores msg for background redelivery.
// PRE: cause is the error from the inline attempt, which counts as attempt one
// POST: a pending entry holding msg is saved
func EnqueueNotice(ctx context.Context, q NotificationQueue, msg email.Message, cause error) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notice: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	entry := outbox.Entry{
		ID:              id.String(),
		Kind:            outbox.KindGradeNotice,
		Payload:         string(payload),
		Status:          outbox.StatusPending,
		Attempts:        1,
		LastAttemptedAt: now,
		CreatedAt:       now,
		LastError:       cause.Error(),
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	return q.Save(ctx, entry)
}

// OutboxProcessor redelivers queued notices with exponential backoff.
type OutboxProcessor struct {
	store     outboxStore.Store
	sender    email.Sender
	metrics   GradeMetrics // optional
	baseDelay time.Duration
	maxDelay  time.Duration
	batchSize int
	retention time.Duration
	now       func() time.Time
}

// NewOutboxProcessor creates a processor sending through sender.
func NewOutboxProcessor(store outboxStore.Store, sender email.Sender, metrics GradeMetrics) *OutboxProcessor {
	return &OutboxProcessor{
		store:     store,
		sender:    sender,
		metrics:   metrics,
		baseDelay: 30 * time.Second,
		maxDelay:  time.Hour,
		batchSize: 10,
		retention: 7 * 24 * time.Hour,
		now:       time.Now,
	}
}

// ProcessPending attempts up to one batch of due entries once each, then
// prunes finished entries older than the retention period.
// POST: each attempted entry is saved with its new status; returns the number delivered
func (p *OutboxProcessor) ProcessPending(ctx context.Context) (int, error) {
	now := p.now()
	entries, err := p.store.ListDue(ctx, now, p.baseDelay, p.maxDelay, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list due outbox entries: %w", err)
	}
	sent := 0
	for _, entry := range entries {
		ok, err := p.processEntry(ctx, entry)
		if err != nil {
			slog.Error("outbox_process_failed", "entry_id", entry.ID, "kind", entry.Kind, "error", err)
			continue
		}
		if ok {
			sent++
		}
	}

	removed, err := p.store.Prune(ctx, now.Add(-p.retention))
	if err != nil {
		return sent, fmt.Errorf("prune outbox: %w", err)
	}
	if removed > 0 {
		slog.Info("outbox_pruned", "removed", removed)
	}
	return sent, nil
}

func (p *OutboxProcessor) processEntry(ctx context.Context, entry outbox.Entry) (bool, error) {
	entry.MarkAttempt(p.now())

	var msg email.Message
	err := json.Unmarshal([]byte(entry.Payload), &msg)
	if err != nil || entry.Kind != outbox.KindGradeNotice {
		// Nothing to replay; give up on it now.
		entry.Attempts = entry.MaxAttempts
		entry.MarkFailed(fmt.Errorf("unreplayable %s entry: %v", entry.Kind, err))
		return false, p.store.Save(ctx, entry)
	}

	receipt, err := p.sender.Send(ctx, msg)
	delivered := err == nil
	if err != nil {
		entry.MarkFailed(err)
		slog.Warn("outbox_action_failed", "entry_id", entry.ID, "attempt", entry.Attempts, "status", entry.Status, "error", err)
		if p.metrics != nil {
			p.metrics.NotificationFailed()
		}
	} else {
		entry.MarkSuccess(receipt.MessageID)
		slog.Info("outbox_action_succeeded", "entry_id", entry.ID, "kind", entry.Kind, "external_id", receipt.MessageID)
	}
	return delivered, p.store.Save(ctx, entry)
}

// Run processes the outbox every interval until ctx is done.
func (p *OutboxProcessor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.ProcessPending(ctx); err != nil {
				slog.Error("outbox_retry_error", "error", err)
			}
		}
	}
}
