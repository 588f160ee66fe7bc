package kafka

import "time"

// EventType names one storefront lifecycle event.
type EventType string

const (
	// Checkout events.
	EventTypeCheckoutInitiated EventType = "checkout.initiated"
	EventTypeCheckoutFailed    EventType = "checkout.failed"

	// Payment events.
	EventTypePaymentCompleted EventType = "payment.completed"
	EventTypePaymentCancelled EventType = "payment.cancelled"

	// Cart events.
	EventTypeCartCompleted EventType = "cart.completed"
	EventTypeCartExpired   EventType = "cart.expired"
)

// Kafka topics.
const (
	TopicCheckoutEvents  = "storefront.checkout.events"
	TopicDeadLetterQueue = "storefront.dlq"
)

// CheckoutEvent is the envelope published for checkout and payment lifecycle
// events.
type CheckoutEvent struct {
	EventType EventType              `json:"event_type"`
	CartID    string                 `json:"cart_id"`
	SessionID string                 `json:"session_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewCheckoutEvent builds an event stamped with the current time.
func NewCheckoutEvent(eventType EventType, cartID, sessionID string, metadata map[string]interface{}) *CheckoutEvent {
	return &CheckoutEvent{
		EventType: eventType,
		CartID:    cartID,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}
