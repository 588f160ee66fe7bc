package domain

import "errors"

var (
	// ErrSessionRequired: a cart operation was attempted without a session id.
	ErrSessionRequired = errors.New("session_id is required")
	// ErrCartIDRequired: a payment or timeline entry is missing its cart link.
	ErrCartIDRequired = errors.New("cart_id is required")
	// ErrCurrencyRequired: a payment is missing its currency code.
	ErrCurrencyRequired = errors.New("currency is required")
	// ErrLineQuantityInvalid: a stored cart line has a quantity below one.
	ErrLineQuantityInvalid = errors.New("line quantity must be at least one")
	// ErrLinePriceInvalid: a cart line captured a negative unit price.
	ErrLinePriceInvalid = errors.New("line price must be non-negative")
	// ErrLineDuplicated: two lines in one cart reference the same item.
	ErrLineDuplicated = errors.New("item appears in more than one cart line")
	// ErrTotalMismatch: the stored total does not match the sum of the lines.
	ErrTotalMismatch = errors.New("cart total does not match lines sum")
	// ErrPaymentAmountNegative: a payment amount below zero.
	ErrPaymentAmountNegative = errors.New("payment amount must be non-negative")
	// ErrPaymentTypeInvalid: an unknown buy-now-pay-later provider string.
	ErrPaymentTypeInvalid = errors.New("payment type must be afterpay or cash_app_pay")

	// ErrItemNotFound is returned for an unknown catalog item id.
	ErrItemNotFound = errors.New("item not found")
	// ErrCartNotFound is returned when no cart matches the id or session.
	ErrCartNotFound = errors.New("cart not found")
	// ErrLineNotFound is returned when a cart has no line for the item.
	ErrLineNotFound = errors.New("cart line not found")
	// ErrPaymentNotFound is returned for an unknown payment id.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrCartEmpty: checkout was started on a cart with no lines.
	ErrCartEmpty = errors.New("cart is empty")
	// ErrCartConflict signals an id collision when creating a cart.
	ErrCartConflict = errors.New("cart already exists")
	// ErrCartTransition: a cart status change violates the forward-only
	// OPEN → IN_PROGRESS → COMPLETED ordering.
	ErrCartTransition = errors.New("illegal cart status transition")
	// ErrPaymentTransition: a payment status change violates the state machine.
	ErrPaymentTransition = errors.New("illegal payment status transition")

	// ErrConsumerEmailRequired: checkout was started without a consumer email.
	ErrConsumerEmailRequired = errors.New("consumer email is required")
	// ErrCheckoutResultInvalid: a finalize call carried an unknown result flag.
	ErrCheckoutResultInvalid = errors.New("checkout result must be SUCCESS or CANCELLED")
	// ErrProviderNotConfigured: provider credentials are absent; no checkout
	// can be created.
	ErrProviderNotConfigured = errors.New("payment provider is not configured")

	// ErrOutboxPublish: a message could not be published from the outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsNotFound reports whether err is one of the absence sentinels. Callers map
// these to a 404-class response rather than treating them as failures.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrCartNotFound) ||
		errors.Is(err, ErrLineNotFound) ||
		errors.Is(err, ErrPaymentNotFound)
}
