package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/finci-square/cash-ap-exemplar/internal/afterpay"
	"github.com/finci-square/cash-ap-exemplar/internal/catalog"
	"github.com/finci-square/cash-ap-exemplar/internal/domain"
	"github.com/finci-square/cash-ap-exemplar/internal/service/checkout"
	"github.com/finci-square/cash-ap-exemplar/internal/session"
	"github.com/finci-square/cash-ap-exemplar/internal/storage/memory"
)

type testEnv struct {
	srv      *httptest.Server
	client   *http.Client
	provider *afterpay.MockProvider
	carts    domain.CartRepository
	payments domain.PaymentRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := log.New()
	logger.SetLevel(log.ErrorLevel)
	entry := logger.WithField("component", "rest-test")

	carts := memory.NewCartRepository()
	payments := memory.NewPaymentRepository()
	timeline := memory.NewTimelineRepository()
	outbox := memory.NewOutboxRepository()
	provider := afterpay.NewMockProvider()

	orch := checkout.NewOrchestratorWithoutMetrics(
		carts, payments, provider, timeline, outbox,
		checkout.Config{}, entry,
	)

	server := NewServer(Options{
		Logger:   entry,
		Sessions: session.NewManager([]byte("test-secret"), session.WithLogger(entry)),
		Catalog:  catalog.NewService(),
		Carts:    carts,
		Payments: payments,
		Timeline: timeline,
		Checkout: orch,
		Provider: provider,
	})

	srv := httptest.NewServer(server)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testEnv{
		srv:      srv,
		client:   &http.Client{Jar: jar},
		provider: provider,
		carts:    carts,
		payments: payments,
	}
}

// newClient returns an extra client with its own cookie jar (a second
// browser).
func (e *testEnv) newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func (e *testEnv) do(t *testing.T, client *http.Client, method, path string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var fields map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fields))
	return resp, fields
}

func decodeCart(t *testing.T, raw json.RawMessage) domain.Cart {
	t.Helper()
	var cart domain.Cart
	require.NoError(t, json.Unmarshal(raw, &cart))
	return cart
}

func TestHealthAndMe(t *testing.T) {
	env := newTestEnv(t)

	resp, fields := env.do(t, env.client, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `"ok"`, string(fields["status"]))

	resp, fields = env.do(t, env.client, http.MethodGet, "/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sessionID string
	require.NoError(t, json.Unmarshal(fields["sessionId"], &sessionID))
	require.NotEmpty(t, sessionID)

	// The cookie keeps the session stable across requests.
	_, fields = env.do(t, env.client, http.MethodGet, "/me", nil)
	var again string
	require.NoError(t, json.Unmarshal(fields["sessionId"], &again))
	require.Equal(t, sessionID, again)
}

func TestListItems(t *testing.T) {
	env := newTestEnv(t)

	resp, fields := env.do(t, env.client, http.MethodGet, "/items", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var items []domain.Item
	require.NoError(t, json.Unmarshal(fields["items"], &items))
	require.Len(t, items, 6)
	require.NotEmpty(t, items[0].ID)
	require.Positive(t, items[0].PriceMinor)
}

func TestGetCartBeforeFirstAdd(t *testing.T) {
	env := newTestEnv(t)

	resp, fields := env.do(t, env.client, http.MethodGet, "/cart", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "null", string(fields["cart"]))
}

func TestCartLifecycle(t *testing.T) {
	env := newTestEnv(t)

	// Two adds of the same item collapse into one line with quantity 2.
	resp, fields := env.do(t, env.client, http.MethodPost, "/cart/items", map[string]string{"itemId": "item-001"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, fields = env.do(t, env.client, http.MethodPost, "/cart/items", map[string]string{"itemId": "item-001"})
	cart := decodeCart(t, fields["cart"])
	require.Len(t, cart.Lines, 1)
	require.Equal(t, 2, cart.Lines[0].Quantity)
	require.Equal(t, int64(5000), cart.TotalMinor)
	require.Equal(t, domain.CartStatusOpen, cart.Status)

	// PATCH sets the quantity verbatim.
	resp, fields = env.do(t, env.client, http.MethodPatch, "/cart/items/item-001", map[string]int{"quantity": 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cart = decodeCart(t, fields["cart"])
	require.Equal(t, 3, cart.Lines[0].Quantity)
	require.Equal(t, int64(7500), cart.TotalMinor)

	// Quantity zero removes the line.
	_, fields = env.do(t, env.client, http.MethodPatch, "/cart/items/item-001", map[string]int{"quantity": 0})
	cart = decodeCart(t, fields["cart"])
	require.Empty(t, cart.Lines)
	require.Zero(t, cart.TotalMinor)

	// DELETE on an absent line is a no-op.
	resp, fields = env.do(t, env.client, http.MethodDelete, "/cart/items/item-001", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cart = decodeCart(t, fields["cart"])
	require.Empty(t, cart.Lines)
}

func TestAddItemValidation(t *testing.T) {
	env := newTestEnv(t)

	resp, fields := env.do(t, env.client, http.MethodPost, "/cart/items", map[string]string{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, string(fields["error"]), "itemId")

	resp, _ = env.do(t, env.client, http.MethodPost, "/cart/items", map[string]string{"itemId": "item-999"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSetQuantityValidation(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, env.client, http.MethodPost, "/cart/items", map[string]string{"itemId": "item-001"})

	resp, fields := env.do(t, env.client, http.MethodPatch, "/cart/items/item-001", map[string]string{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, string(fields["error"]), "quantity")

	resp, _ = env.do(t, env.client, http.MethodPatch, "/cart/items/item-999", map[string]int{"quantity": 1})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionIsolation(t *testing.T) {
	env := newTestEnv(t)
	other := env.newClient(t)

	env.do(t, env.client, http.MethodPost, "/cart/items", map[string]string{"itemId": "item-001"})

	_, fields := env.do(t, other, http.MethodGet, "/cart", nil)
	require.Equal(t, "null", string(fields["cart"]), "second browser must not see the first browser's cart")
}

func TestCheckoutEndToEnd(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, env.client, http.MethodPost, "/cart/items", map[string]string{"itemId": "item-001"})
	env.do(t, env.client, http.MethodPost, "/cart/items", map[string]string{"itemId": "item-001"})

	resp, fields := env.do(t, env.client, http.MethodPost, "/cart/checkout/afterpay", map[string]any{
		"consumer": map[string]string{"email": "shopper@example.com"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var providerSession domain.ProviderSession
	require.NoError(t, json.Unmarshal(fields["checkout"], &providerSession))
	require.Equal(t, "tok_mock", providerSession.Token)
	cart := decodeCart(t, fields["cart"])
	require.Equal(t, int64(5000), cart.TotalMinor)
	require.Equal(t, domain.CartStatusOpen, cart.Status)

	require.Equal(t, int64(5000), env.provider.LastRequest.AmountMinor)
	require.Equal(t, "USD", env.provider.LastRequest.Currency)
	wantRedirect := fmt.Sprintf("%s/cart/payment/result?provider=afterpay", env.srv.URL)
	require.Equal(t, wantRedirect, env.provider.LastRequest.RedirectConfirmURL)

	// The provider redirects the browser back with the result.
	resp, fields = env.do(t, env.client, http.MethodGet, "/cart/payment/result?status=SUCCESS&provider=afterpay&token=tok_1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var message string
	require.NoError(t, json.Unmarshal(fields["message"], &message))
	require.Equal(t, "Payment completed successfully with afterpay", message)

	completed := decodeCart(t, fields["cart"])
	require.Equal(t, domain.CartStatusCompleted, completed.Status)
	require.NotEmpty(t, completed.PaymentID)

	var payment domain.Payment
	require.NoError(t, json.Unmarshal(fields["payment"], &payment))
	require.Equal(t, domain.PaymentStatusCompleted, payment.Status)
	require.Equal(t, int64(5000), payment.AmountMinor)
	require.Equal(t, "tok_1", payment.ProviderTransactionID)

	// A replayed redirect finds no OPEN cart.
	resp, _ = env.do(t, env.client, http.MethodGet, "/cart/payment/result?status=SUCCESS&provider=afterpay&token=tok_1", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// The session starts over with no cart.
	_, fields = env.do(t, env.client, http.MethodGet, "/cart", nil)
	require.Equal(t, "null", string(fields["cart"]))

	// The completed cart's history stays reachable by id.
	resp, fields = env.do(t, env.client, http.MethodGet, "/cart/timeline?cartId="+completed.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var events []domain.TimelineEvent
	require.NoError(t, json.Unmarshal(fields["events"], &events))
	require.Len(t, events, 1)
	require.Equal(t, "CheckoutCompleted", events[0].Type)
}

func TestCheckoutCancelled(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, env.client, http.MethodPost, "/cart/items", map[string]string{"itemId": "item-002"})

	resp, fields := env.do(t, env.client, http.MethodGet, "/cart/payment/result?status=CANCELLED&provider=cash_app_pay&token=tok_1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var message string
	require.NoError(t, json.Unmarshal(fields["message"], &message))
	require.Equal(t, "Payment was cancelled with cash_app_pay", message)

	cart := decodeCart(t, fields["cart"])
	require.Equal(t, domain.CartStatusOpen, cart.Status)

	payments, err := env.payments.ListByCart(cart.ID)
	require.NoError(t, err)
	require.Empty(t, payments)
}

func TestCheckoutPreconditions(t *testing.T) {
	env := newTestEnv(t)

	// Empty cart.
	env.do(t, env.client, http.MethodGet, "/cart", nil)
	resp, _ := env.do(t, env.client, http.MethodPost, "/cart/checkout/afterpay", map[string]any{
		"consumer": map[string]string{"email": "shopper@example.com"},
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	env.do(t, env.client, http.MethodPost, "/cart/items", map[string]string{"itemId": "item-001"})

	// Missing consumer email.
	resp, _ = env.do(t, env.client, http.MethodPost, "/cart/checkout/afterpay", map[string]any{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unconfigured provider answers 503.
	env.provider.Unconfigured = true
	resp, _ = env.do(t, env.client, http.MethodPost, "/cart/checkout/afterpay", map[string]any{
		"consumer": map[string]string{"email": "shopper@example.com"},
	})
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestCheckoutProviderFailure(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, env.client, http.MethodPost, "/cart/items", map[string]string{"itemId": "item-001"})
	env.provider.Err = &afterpay.APIError{StatusCode: 422, Body: "rejected"}

	resp, _ := env.do(t, env.client, http.MethodPost, "/cart/checkout/afterpay", map[string]any{
		"consumer": map[string]string{"email": "shopper@example.com"},
	})
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestPaymentResultValidation(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, env.client, http.MethodGet, "/cart/payment/result", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, env.client, http.MethodGet, "/cart/payment/result?status=MAYBE&provider=afterpay", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, env.client, http.MethodGet, "/cart/payment/result?status=SUCCESS&provider=paypal", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProviderConfiguration(t *testing.T) {
	env := newTestEnv(t)

	resp, fields := env.do(t, env.client, http.MethodGet, "/afterpay/configuration", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(fields["configuration"]), "minimumAmount")

	env.provider.Unconfigured = true
	resp, _ = env.do(t, env.client, http.MethodGet, "/afterpay/configuration", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestProviderCheckoutPassthrough(t *testing.T) {
	env := newTestEnv(t)

	resp, fields := env.do(t, env.client, http.MethodPost, "/afterpay/checkout", map[string]any{
		"amount":   map[string]string{"amount": "42.50", "currency": "USD"},
		"consumer": map[string]string{"email": "shopper@example.com"},
		"merchant": map[string]string{
			"redirectConfirmUrl": "https://shop.example.com/done",
			"redirectCancelUrl":  "https://shop.example.com/cancel",
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `"tok_mock"`, string(fields["token"]))
	require.Equal(t, int64(4250), env.provider.LastRequest.AmountMinor)
	require.Equal(t, "https://shop.example.com/done", env.provider.LastRequest.RedirectConfirmURL)

	resp, _ = env.do(t, env.client, http.MethodPost, "/afterpay/checkout", map[string]any{
		"consumer": map[string]string{"email": "shopper@example.com"},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, env.client, http.MethodPost, "/afterpay/checkout", map[string]any{
		"amount": map[string]string{"amount": "42.50", "currency": "USD"},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTamperedSessionCookieGetsFreshCart(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, env.client, http.MethodPost, "/cart/items", map[string]string{"itemId": "item-001"})

	// Corrupt the cookie: the next request must be treated as a new browser.
	srvURL, err := url.Parse(env.srv.URL)
	require.NoError(t, err)
	for _, cookie := range env.client.Jar.Cookies(srvURL) {
		if cookie.Name == session.CookieName {
			cookie.Value = cookie.Value + "tampered"
			env.client.Jar.SetCookies(srvURL, []*http.Cookie{cookie})
		}
	}

	_, fields := env.do(t, env.client, http.MethodGet, "/cart", nil)
	require.Equal(t, "null", string(fields["cart"]))
}
