package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"scoreboard/internal/adapters/email"
	"scoreboard/internal/adapters/storage/kv"
	outboxStore "scoreboard/internal/adapters/storage/outbox"
	"scoreboard/internal/domain/outbox"
)

// flakySender fails the first n sends.
type flakySender struct {
	failures int
	sent     []email.Message
}

// Send fails while failures remain.
// PRE: none
// POST: records msg on success
func (f *flakySender) Send(_ context.Context, msg email.Message) (email.Receipt, error) {
	if f.failures > 0 {
		f.failures--
		return email.Receipt{}, errors.New("provider unavailable")
	}
	f.sent = append(f.sent, msg)
	return email.Receipt{MessageID: "msg_ok"}, nil
}

// TestAddGrade_QueuesFailedNotice redelivers through the processor.
func TestAddGrade_QueuesFailedNotice(t *testing.T) {
	ctx := context.Background()
	l, _ := newFixtures(t)
	store := outboxStore.NewKVStore(kv.NewMemoryStore())
	m := newFakeMetrics()

	_, err := ExecuteAddGrade(ctx, adminPrincipal,
		AddGradeInput{TeamID: "blue", Points: "-3", Comment: "late"},
		AddGradeDeps{Ledger: l, Metrics: m, Notifier: failingSender{}, NotifyTo: []string{"ops@example.com"}, Outbox: store})
	if err != nil {
		t.Fatal(err)
	}

	queued, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(queued) != 1 || queued[0].Attempts != 1 || queued[0].LastError != "smtp down" {
		t.Fatalf("queued = %+v", queued)
	}

	sender := &flakySender{}
	p := NewOutboxProcessor(store, sender, m)
	p.now = func() time.Time { return queued[0].LastAttemptedAt.Add(time.Hour) }
	sent, err := p.ProcessPending(ctx)
	if err != nil || sent != 1 {
		t.Fatalf("ProcessPending = %d, %v", sent, err)
	}
	if len(sender.sent) != 1 || sender.sent[0].Subject != "Team Blue -3 points" {
		t.Errorf("redelivered = %+v", sender.sent)
	}
	got, _ := store.GetByID(ctx, queued[0].ID)
	if got.Status != outbox.StatusDone || got.ExternalID != "msg_ok" {
		t.Errorf("entry after delivery = %+v", got)
	}
}

func TestOutboxProcessor_BackoffAndGiveUp(t *testing.T) {
	ctx := context.Background()
	store := outboxStore.NewKVStore(kv.NewMemoryStore())
	if err := EnqueueNotice(ctx, store, email.Message{To: []string{"a@example.com"}, Subject: "s"}, errors.New("first")); err != nil {
		t.Fatal(err)
	}
	entries, _ := store.List(ctx)
	id := entries[0].ID

	sender := &flakySender{failures: 10}
	m := newFakeMetrics()
	p := NewOutboxProcessor(store, sender, m)

	// Inside the backoff window nothing is attempted.
	p.now = func() time.Time { return entries[0].LastAttemptedAt }
	if sent, _ := p.ProcessPending(ctx); sent != 0 || m.failures != 0 {
		t.Fatalf("attempted inside backoff: sent=%d failures=%d", sent, m.failures)
	}

	now := entries[0].LastAttemptedAt
	for i := 0; i < outbox.DefaultMaxAttempts; i++ {
		now = now.Add(2 * time.Hour)
		p.now = func() time.Time { return now }
		if _, err := p.ProcessPending(ctx); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := store.GetByID(ctx, id)
	if got.Status != outbox.StatusFailed || got.Attempts != outbox.DefaultMaxAttempts {
		t.Errorf("entry = %+v", got)
	}
	if m.failures != outbox.DefaultMaxAttempts-1 {
		t.Errorf("failures = %d", m.failures)
	}
	if pending, _ := store.ListPending(ctx, 10); len(pending) != 0 {
		t.Errorf("given-up entry still pending")
	}
}

func TestOutboxProcessor_Unreplayable(t *testing.T) {
	ctx := context.Background()
	store := outboxStore.NewKVStore(kv.NewMemoryStore())
	store.Save(ctx, outbox.Entry{
		ID: "bad", Kind: outbox.KindGradeNotice, Payload: "{oops", Status: outbox.StatusPending,
		MaxAttempts: 5, CreatedAt: time.Now(),
	})
	p := NewOutboxProcessor(store, &flakySender{}, nil)
	if _, err := p.ProcessPending(ctx); err != nil {
		t.Fatal(err)
	}
	got, _ := store.GetByID(ctx, "bad")
	if got.Status != outbox.StatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
}

// TestOutboxProcessor_BackedOffEntriesDoNotStarveDueOnes fills a whole batch
// with entries still inside their backoff window.
func TestOutboxProcessor_BackedOffEntriesDoNotStarveDueOnes(t *testing.T) {
	ctx := context.Background()
	store := outboxStore.NewKVStore(kv.RequireJSON(kv.NewMemoryStore()))
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := t0.Add(2 * time.Hour)

	for i := range 10 {
		store.Save(ctx, outbox.Entry{
			ID: fmt.Sprintf("wait%02d", i), Kind: outbox.KindGradeNotice, Payload: `{"subject":"wait"}`,
			Status: outbox.StatusRetrying, Attempts: 4, MaxAttempts: 5,
			CreatedAt: t0.Add(time.Duration(i) * time.Second), LastAttemptedAt: now.Add(-time.Minute),
		})
	}
	store.Save(ctx, outbox.Entry{
		ID: "due", Kind: outbox.KindGradeNotice, Payload: `{"subject":"due"}`,
		Status: outbox.StatusPending, Attempts: 1, MaxAttempts: 5,
		CreatedAt: t0.Add(time.Hour), LastAttemptedAt: t0.Add(time.Hour),
	})

	sender := &flakySender{}
	p := NewOutboxProcessor(store, sender, nil)
	p.now = func() time.Time { return now }
	sent, err := p.ProcessPending(ctx)
	if err != nil || sent != 1 {
		t.Fatalf("ProcessPending = %d, %v; want 1 delivery", sent, err)
	}
	if got, _ := store.GetByID(ctx, "due"); got.Status != outbox.StatusDone {
		t.Errorf("due entry = %+v", got)
	}
}

// TestOutboxProcessor_PrunesFinished removes delivered entries past retention.
func TestOutboxProcessor_PrunesFinished(t *testing.T) {
	ctx := context.Background()
	store := outboxStore.NewKVStore(kv.NewMemoryStore())
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store.Save(ctx, outbox.Entry{
		ID: "sent", Kind: outbox.KindGradeNotice, Payload: "{}", Status: outbox.StatusDone,
		Attempts: 2, MaxAttempts: 5, CreatedAt: t0, LastAttemptedAt: t0,
	})

	p := NewOutboxProcessor(store, &flakySender{}, nil)
	p.now = func() time.Time { return t0.Add(p.retention + time.Hour) }
	if _, err := p.ProcessPending(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetByID(ctx, "sent"); !errors.Is(err, outboxStore.ErrNotFound) {
		t.Errorf("finished entry kept past retention: %v", err)
	}
}
