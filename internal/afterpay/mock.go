package afterpay

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/finci-square/cash-ap-exemplar/internal/domain"
)

// MockProvider is a configurable CheckoutProvider stub for tests. It counts
// calls so tests can assert which paths reached the provider.
type MockProvider struct {
	mu sync.Mutex

	Session       domain.ProviderSession
	Configuration json.RawMessage
	Err           error
	Unconfigured  bool

	CreateCalls int
	LastRequest domain.CheckoutRequest
}

// NewMockProvider returns a mock with a successful default session.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Session: domain.ProviderSession{
			Token:               "tok_mock",
			Expires:             "2030-01-01T00:00:00Z",
			RedirectCheckoutURL: "https://portal.sandbox.afterpay.com/checkout/tok_mock",
		},
	}
}

// Configured reports the configured flag.
func (m *MockProvider) Configured() bool {
	return !m.Unconfigured
}

// CreateCheckout returns the preset session or error and records the call.
func (m *MockProvider) CreateCheckout(_ context.Context, req domain.CheckoutRequest) (domain.ProviderSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls++
	m.LastRequest = req
	if m.Err != nil {
		return domain.ProviderSession{}, m.Err
	}
	return m.Session, nil
}

// GetConfiguration returns the preset configuration document or error.
func (m *MockProvider) GetConfiguration(_ context.Context) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if m.Configuration == nil {
		return json.RawMessage(`{"minimumAmount":{"amount":"1.00","currency":"USD"}}`), nil
	}
	return m.Configuration, nil
}

var _ domain.CheckoutProvider = (*MockProvider)(nil)
