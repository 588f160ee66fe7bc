package memory_test

import (
	"testing"

	"github.com/finci-square/cash-ap-exemplar/internal/domain"
	"github.com/finci-square/cash-ap-exemplar/internal/storage/memory"
)

func TestOutboxRepository_EnqueueAndPull(t *testing.T) {
	repo := memory.NewOutboxRepository()

	msg, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "payment",
		AggregateID:   "payment-1",
		EventType:     "payment.completed",
		Payload:       []byte(`{"amount":5000}`),
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if msg.ID == "" {
		t.Fatal("expected an id to be assigned")
	}

	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 1 || pending[0].EventType != "payment.completed" {
		t.Fatalf("unexpected pending set: %+v", pending)
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 1 || stats.OldestPendingAt.IsZero() {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestOutboxRepository_MarkSentAndFailed(t *testing.T) {
	repo := memory.NewOutboxRepository()

	sent, _ := repo.Enqueue(domain.OutboxMessage{AggregateType: "cart", AggregateID: "cart-1", EventType: "checkout.initiated"})
	failed, _ := repo.Enqueue(domain.OutboxMessage{AggregateType: "cart", AggregateID: "cart-2", EventType: "cart.expired"})

	if err := repo.MarkSent(sent.ID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	if err := repo.MarkFailed(failed.ID); err != nil {
		t.Fatalf("mark failed failed: %v", err)
	}

	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected drained outbox, got %+v", pending)
	}

	if err := repo.MarkSent("missing"); err == nil {
		t.Fatal("expected an error for an unknown id")
	}
}
