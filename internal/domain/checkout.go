package domain

// Consumer carries the shopper details forwarded to the payment provider.
type Consumer struct {
	Email       string `json:"email"`
	GivenNames  string `json:"givenNames,omitempty"`
	Surname     string `json:"surname,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// Validate checks the fields the provider requires.
func (c *Consumer) Validate() error {
	if c.Email == "" {
		return ErrConsumerEmailRequired
	}
	return nil
}

// CheckoutResult is the outcome flag carried on the provider redirect back to
// the storefront.
type CheckoutResult string

const (
	CheckoutResultSuccess   CheckoutResult = "SUCCESS"
	CheckoutResultCancelled CheckoutResult = "CANCELLED"
)

// ParseCheckoutResult validates the redirect result flag.
func ParseCheckoutResult(s string) (CheckoutResult, error) {
	switch CheckoutResult(s) {
	case CheckoutResultSuccess:
		return CheckoutResultSuccess, nil
	case CheckoutResultCancelled:
		return CheckoutResultCancelled, nil
	default:
		return "", ErrCheckoutResultInvalid
	}
}

// CheckoutRequest describes one provider checkout session to create. Amounts
// stay in minor units here; the provider client renders the decimal string the
// provider API expects.
type CheckoutRequest struct {
	AmountMinor        int64
	Currency           string
	Consumer           Consumer
	RedirectConfirmURL string
	RedirectCancelURL  string
	CashAppPay         bool
}

// ProviderSession is the provider's answer to a checkout creation: the token
// to hand to the browser SDK, its expiry, and the hosted checkout URL.
type ProviderSession struct {
	Token               string `json:"token"`
	Expires             string `json:"expires"`
	RedirectCheckoutURL string `json:"redirectCheckoutUrl"`
}
