package domain

import (
	"errors"
	"testing"
)

func TestParsePaymentType(t *testing.T) {
	if typ, err := ParsePaymentType("afterpay"); err != nil || typ != PaymentTypeAfterpay {
		t.Fatalf("expected afterpay, got %q err %v", typ, err)
	}
	if typ, err := ParsePaymentType("cash_app_pay"); err != nil || typ != PaymentTypeCashAppPay {
		t.Fatalf("expected cash_app_pay, got %q err %v", typ, err)
	}
	if _, err := ParsePaymentType("paypal"); !errors.Is(err, ErrPaymentTypeInvalid) {
		t.Fatalf("expected ErrPaymentTypeInvalid, got %v", err)
	}
}

func TestParseCheckoutResult(t *testing.T) {
	if _, err := ParseCheckoutResult("SUCCESS"); err != nil {
		t.Fatalf("SUCCESS should parse: %v", err)
	}
	if _, err := ParseCheckoutResult("CANCELLED"); err != nil {
		t.Fatalf("CANCELLED should parse: %v", err)
	}
	if _, err := ParseCheckoutResult("success"); !errors.Is(err, ErrCheckoutResultInvalid) {
		t.Fatalf("lowercase flag should be rejected, got %v", err)
	}
}

func TestPaymentStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to PaymentStatus
		allowed  bool
	}{
		{PaymentStatusPending, PaymentStatusCompleted, true},
		{PaymentStatusPending, PaymentStatusAuthorized, true},
		{PaymentStatusPending, PaymentStatusFailed, true},
		{PaymentStatusAuthorized, PaymentStatusCaptured, true},
		{PaymentStatusCaptured, PaymentStatusRefunded, true},
		{PaymentStatusCompleted, PaymentStatusRefunded, true},
		{PaymentStatusCompleted, PaymentStatusPending, false},
		{PaymentStatusFailed, PaymentStatusPending, false},
		{PaymentStatusRefunded, PaymentStatusCompleted, false},
		{PaymentStatusCompleted, PaymentStatusCompleted, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Fatalf("%s -> %s: expected allowed=%v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestPaymentValidate(t *testing.T) {
	payment := Payment{
		CartID:      "cart-1",
		Type:        PaymentTypeAfterpay,
		AmountMinor: 5000,
		Currency:    "USD",
	}
	if errs := payment.Validate(); len(errs) != 0 {
		t.Fatalf("expected valid payment, got %v", errs)
	}

	payment = Payment{Type: "venmo", AmountMinor: -1}
	errs := payment.Validate()
	if len(errs) != 4 {
		t.Fatalf("expected four violations, got %v", errs)
	}
}
