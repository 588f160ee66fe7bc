package domain

import (
	"context"
	"time"
)

// CheckoutProvider describes the external buy-now-pay-later service used to
// create hosted checkout sessions.
type CheckoutProvider interface {
	// Configured reports whether merchant credentials are present. Callers
	// must check this before attempting a checkout.
	Configured() bool
	// CreateCheckout creates a provider checkout session. Implementations
	// must honor the context deadline; no local state may change on failure.
	CreateCheckout(ctx context.Context, req CheckoutRequest) (ProviderSession, error)
}

// OutboxPublisher publishes events from the transactional outbox. Publish must
// be safe to call more than once for the same message.
type OutboxPublisher interface {
	Publish(event OutboxMessage) error
}

// OutboxMessage holds one storefront lifecycle event awaiting publication.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats describes the current outbox backlog.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// TimelineEvent records one step in a cart's lifecycle for audit/history.
type TimelineEvent struct {
	CartID   string    `json:"cartId"`
	Type     string    `json:"type"`
	Detail   string    `json:"detail,omitempty"`
	Occurred time.Time `json:"occurred"`
}
