// Package afterpay wraps the Afterpay / Cash App Pay sandbox checkout API.
package afterpay

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/finci-square/cash-ap-exemplar/internal/domain"
)

const (
	// DefaultBaseURL is the Afterpay global sandbox endpoint.
	DefaultBaseURL = "https://global-api-sandbox.afterpay.com"

	userAgent      = "Cash-App-Pay-Exemplar"
	defaultTimeout = 10 * time.Second
)

// APIError carries the provider's status code and response body for
// diagnostics on non-success responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("afterpay api error: %d - %s", e.StatusCode, e.Body)
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL points the client at a different API host (tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTimeout bounds every provider call. Calls also honor the caller's
// context deadline, whichever fires first.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithLogger sets the component logger.
func WithLogger(logger *log.Entry) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client is the HTTP client for the provider checkout API.
type Client struct {
	baseURL    string
	merchantID string
	secretKey  string
	httpClient *http.Client
	logger     *log.Entry
}

// NewClient builds a provider client. Empty credentials produce a client that
// reports itself unconfigured; callers must check Configured before use.
func NewClient(merchantID, secretKey string, options ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		merchantID: merchantID,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     log.WithField("component", "afterpay-client"),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Configured reports whether merchant credentials are present.
func (c *Client) Configured() bool {
	return c.merchantID != "" && c.secretKey != ""
}

// FormatMinor renders an amount in minor units as the provider's decimal
// major-unit string: 5000 → "50.00".
func FormatMinor(amountMinor int64) string {
	return fmt.Sprintf("%d.%02d", amountMinor/100, amountMinor%100)
}

// ParseMajor converts the provider's decimal major-unit string back to minor
// units: "50.00" → 5000. At most two fraction digits are accepted.
func ParseMajor(amount string) (int64, error) {
	whole, frac, hasFrac := strings.Cut(amount, ".")
	if whole == "" {
		return 0, fmt.Errorf("invalid amount %q", amount)
	}
	major, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || major < 0 {
		return 0, fmt.Errorf("invalid amount %q", amount)
	}
	var cents int64
	if hasFrac {
		if len(frac) == 0 || len(frac) > 2 {
			return 0, fmt.Errorf("invalid amount %q", amount)
		}
		cents, err = strconv.ParseInt(frac, 10, 64)
		if err != nil || cents < 0 {
			return 0, fmt.Errorf("invalid amount %q", amount)
		}
		if len(frac) == 1 {
			cents *= 10
		}
	}
	return major*100 + cents, nil
}

// amountPayload is the provider's money representation.
type amountPayload struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type merchantPayload struct {
	RedirectConfirmURL string `json:"redirectConfirmUrl,omitempty"`
	RedirectCancelURL  string `json:"redirectCancelUrl,omitempty"`
}

type checkoutPayload struct {
	Amount     amountPayload   `json:"amount"`
	Consumer   domain.Consumer `json:"consumer"`
	Merchant   merchantPayload `json:"merchant"`
	CashAppPay bool            `json:"isCashAppPay,omitempty"`
}

// CreateCheckout creates a provider checkout session and returns the token,
// expiry and hosted checkout URL. Nothing is retried; the caller decides what
// a failure means.
func (c *Client) CreateCheckout(ctx context.Context, req domain.CheckoutRequest) (domain.ProviderSession, error) {
	if !c.Configured() {
		return domain.ProviderSession{}, domain.ErrProviderNotConfigured
	}

	payload := checkoutPayload{
		Amount: amountPayload{
			Amount:   FormatMinor(req.AmountMinor),
			Currency: req.Currency,
		},
		Consumer: req.Consumer,
		Merchant: merchantPayload{
			RedirectConfirmURL: req.RedirectConfirmURL,
			RedirectCancelURL:  req.RedirectCancelURL,
		},
		CashAppPay: req.CashAppPay,
	}

	c.logger.WithFields(log.Fields{
		"amount":          payload.Amount.Amount,
		"currency":        payload.Amount.Currency,
		"is_cash_app_pay": req.CashAppPay,
	}).Info("creating provider checkout")

	var session domain.ProviderSession
	if err := c.doJSON(ctx, http.MethodPost, "/v2/checkouts", payload, &session); err != nil {
		c.logger.WithError(err).Warn("provider checkout creation failed")
		return domain.ProviderSession{}, err
	}

	c.logger.WithField("token", session.Token).Info("provider checkout created")
	return session, nil
}

// GetConfiguration fetches the merchant configuration (order amount limits)
// and returns the raw document for passthrough to the storefront.
func (c *Client) GetConfiguration(ctx context.Context) (json.RawMessage, error) {
	if !c.Configured() {
		return nil, domain.ErrProviderNotConfigured
	}

	var configuration json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/v2/configuration", nil, &configuration); err != nil {
		return nil, err
	}
	return configuration, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader())
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode provider response: %w", err)
		}
	}
	return nil
}

func (c *Client) authHeader() string {
	credentials := base64.StdEncoding.EncodeToString([]byte(c.merchantID + ":" + c.secretKey))
	return "Basic " + credentials
}

var _ domain.CheckoutProvider = (*Client)(nil)
