package domain

import "time"

// CartStatus describes the lifecycle of a shopping cart.
type CartStatus string

const (
	// CartStatusOpen: the cart accepts line mutations and can start checkout.
	CartStatusOpen CartStatus = "OPEN"
	// CartStatusInProgress: a checkout has been started for the cart.
	CartStatusInProgress CartStatus = "IN_PROGRESS"
	// CartStatusCompleted: a payment was finalized; the cart is terminal.
	CartStatusCompleted CartStatus = "COMPLETED"
)

// CanTransitionTo reports whether the status machine allows moving from s to
// next. Transitions are forward-only: OPEN → IN_PROGRESS → COMPLETED, with
// OPEN → COMPLETED allowed for the single-step finalize path.
func (s CartStatus) CanTransitionTo(next CartStatus) bool {
	switch s {
	case CartStatusOpen:
		return next == CartStatusInProgress || next == CartStatusCompleted
	case CartStatusInProgress:
		return next == CartStatusCompleted
	default:
		return false
	}
}

// CartLine is one item-and-quantity entry within a cart. PriceMinor is the
// unit price captured when the line was first added; later catalog price
// changes never alter an open cart.
type CartLine struct {
	ItemID     string `json:"itemId"`
	Quantity   int    `json:"quantity"`
	PriceMinor int64  `json:"price"`
}

// Cart aggregates a session's line items with a computed total.
type Cart struct {
	ID        string     `json:"id"`
	SessionID string     `json:"sessionId"`
	Lines     []CartLine `json:"items"`
	// TotalMinor is always the recomputed sum of the current lines; nothing
	// may set it independently.
	TotalMinor int64      `json:"total"`
	Status     CartStatus `json:"status"`
	PaymentID  string     `json:"paymentId,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// LinesTotal computes the cart total as the sum of captured line price
// times quantity.
func LinesTotal(lines []CartLine) int64 {
	var total int64
	for _, line := range lines {
		total += line.PriceMinor * int64(line.Quantity)
	}
	return total
}

// ValidateInvariants checks the structural invariants of a cart and returns
// every violation found.
func (c *Cart) ValidateInvariants() []error {
	var errs []error

	if c.SessionID == "" {
		errs = append(errs, ErrSessionRequired)
	}

	seen := make(map[string]struct{}, len(c.Lines))
	for _, line := range c.Lines {
		if line.Quantity < 1 {
			errs = append(errs, ErrLineQuantityInvalid)
		}
		if line.PriceMinor < 0 {
			errs = append(errs, ErrLinePriceInvalid)
		}
		if _, dup := seen[line.ItemID]; dup {
			errs = append(errs, ErrLineDuplicated)
		}
		seen[line.ItemID] = struct{}{}
	}

	if c.TotalMinor != LinesTotal(c.Lines) {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}
