package domain

import "time"

// CartRepository is the single source of truth for carts. Implementations
// must perform every read-modify-write as one atomic step so that concurrent
// requests for the same session cannot lose updates, and must recompute the
// total from the lines on every mutation.
type CartRepository interface {
	// GetOrCreateOpen returns the session's OPEN cart, creating an empty one
	// when none exists. At most one OPEN cart per session can ever exist.
	GetOrCreateOpen(sessionID string) (Cart, error)
	// AddItem adds one unit of the item to the session's OPEN cart, creating
	// the cart if needed. An existing line is incremented by exactly one and
	// keeps its originally captured unit price.
	AddItem(sessionID string, item Item) (Cart, error)
	// SetLineQuantity sets a line's quantity verbatim; a quantity of zero or
	// less removes the line. Returns ErrCartNotFound / ErrLineNotFound when
	// the session has no OPEN cart or no matching line.
	SetLineQuantity(sessionID, itemID string, quantity int) (Cart, error)
	// RemoveLine removes the line when present; an absent line is not an
	// error.
	RemoveLine(sessionID, itemID string) (Cart, error)
	// Transition moves the cart to status, validating the forward-only
	// ordering, and attaches paymentID when non-empty.
	Transition(cartID string, status CartStatus, paymentID string) (Cart, error)
	// Get returns the cart by id or ErrCartNotFound.
	Get(cartID string) (Cart, error)
	// GetOpenBySession returns the session's OPEN cart or ErrCartNotFound.
	GetOpenBySession(sessionID string) (Cart, error)
	// CountOpen reports the number of OPEN carts currently held.
	CountOpen() int
	// DeleteExpired removes up to limit OPEN carts not updated since before
	// and returns the removed carts.
	DeleteExpired(before time.Time, limit int) ([]Cart, error)
}

// PaymentRepository is an append-only-by-id ledger of payment attempts.
type PaymentRepository interface {
	// Create records a new PENDING payment with a snapshot of amount and
	// currency and returns it.
	Create(cartID string, typ PaymentType, amountMinor int64, currency, providerTransactionID string, metadata map[string]string) (Payment, error)
	// UpdateStatus moves the payment through its state machine or returns
	// ErrPaymentNotFound / ErrPaymentTransition.
	UpdateStatus(paymentID string, status PaymentStatus) (Payment, error)
	// Get returns the payment by id or ErrPaymentNotFound.
	Get(paymentID string) (Payment, error)
	// ListByCart returns every historical attempt for a cart, newest first.
	ListByCart(cartID string) ([]Payment, error)
}

// OutboxRepository stores events for later publication.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository stores cart lifecycle events.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(cartID string) ([]TimelineEvent, error)
}
