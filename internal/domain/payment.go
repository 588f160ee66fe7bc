package domain

import "time"

// PaymentType identifies the buy-now-pay-later product used at checkout.
type PaymentType string

const (
	PaymentTypeAfterpay   PaymentType = "afterpay"
	PaymentTypeCashAppPay PaymentType = "cash_app_pay"
)

// ParsePaymentType validates a provider string coming from the outside.
func ParsePaymentType(s string) (PaymentType, error) {
	switch PaymentType(s) {
	case PaymentTypeAfterpay:
		return PaymentTypeAfterpay, nil
	case PaymentTypeCashAppPay:
		return PaymentTypeCashAppPay, nil
	default:
		return "", ErrPaymentTypeInvalid
	}
}

// PaymentStatus describes the state of one payment attempt.
type PaymentStatus string

const (
	// PaymentStatusPending: the attempt is recorded but not yet confirmed.
	PaymentStatusPending PaymentStatus = "PENDING"
	// PaymentStatusAuthorized: the amount is reserved with the provider.
	PaymentStatusAuthorized PaymentStatus = "AUTHORIZED"
	// PaymentStatusCaptured: funds were captured for the merchant.
	PaymentStatusCaptured PaymentStatus = "CAPTURED"
	// PaymentStatusCompleted: the attempt finished successfully; terminal
	// except for refunds.
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	// PaymentStatusFailed: the provider declined or the attempt errored.
	PaymentStatusFailed PaymentStatus = "FAILED"
	// PaymentStatusRefunded: funds were returned to the consumer.
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// CanTransitionTo reports whether the payment status machine allows moving
// from s to next. The ordering is forward-only; FAILED and REFUNDED are
// terminal.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentStatusPending:
		return next == PaymentStatusAuthorized || next == PaymentStatusCaptured ||
			next == PaymentStatusCompleted || next == PaymentStatusFailed
	case PaymentStatusAuthorized:
		return next == PaymentStatusCaptured || next == PaymentStatusCompleted ||
			next == PaymentStatusFailed
	case PaymentStatusCaptured:
		return next == PaymentStatusCompleted || next == PaymentStatusRefunded ||
			next == PaymentStatusFailed
	case PaymentStatusCompleted:
		return next == PaymentStatusRefunded
	default:
		return false
	}
}

// Payment records one checkout/payment attempt tied to a cart. AmountMinor is
// snapshotted at creation and never recomputed from the cart afterwards.
type Payment struct {
	ID          string        `json:"id"`
	CartID      string        `json:"cartId"`
	Type        PaymentType   `json:"type"`
	Status      PaymentStatus `json:"status"`
	AmountMinor int64         `json:"amount"`
	Currency    string        `json:"currency"`
	// ProviderTransactionID holds the provider checkout token, when known.
	ProviderTransactionID string            `json:"providerTransactionId,omitempty"`
	Metadata              map[string]string `json:"metadata,omitempty"`
	CreatedAt             time.Time         `json:"createdAt"`
	UpdatedAt             time.Time         `json:"updatedAt"`
}

// Validate checks the required payment fields.
func (p *Payment) Validate() []error {
	var errs []error

	if p.CartID == "" {
		errs = append(errs, ErrCartIDRequired)
	}
	if p.Type != PaymentTypeAfterpay && p.Type != PaymentTypeCashAppPay {
		errs = append(errs, ErrPaymentTypeInvalid)
	}
	if p.AmountMinor < 0 {
		errs = append(errs, ErrPaymentAmountNegative)
	}
	if p.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}

	return errs
}
