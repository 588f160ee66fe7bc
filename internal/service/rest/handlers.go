package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/finci-square/cash-ap-exemplar/internal/afterpay"
	"github.com/finci-square/cash-ap-exemplar/internal/domain"
	"github.com/finci-square/cash-ap-exemplar/internal/service/checkout"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"sessionId": sessionFromContext(r.Context()),
	})
}

func (s *Server) handleListItems(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"items": s.catalog.All(),
	})
}

// handleGetCart returns the session's OPEN cart, or a null cart when the
// session has none yet.
func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := s.carts.GetOpenBySession(sessionFromContext(r.Context()))
	if err != nil {
		if domain.IsNotFound(err) {
			s.writeJSON(w, http.StatusOK, map[string]any{"cart": nil})
			return
		}
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"cart": cart})
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ItemID string `json:"itemId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ItemID == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid request. itemId is required.")
		return
	}

	item, err := s.catalog.Get(body.ItemID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	cart, err := s.carts.AddItem(sessionFromContext(r.Context()), item)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"cart": cart})
}

func (s *Server) handleSetQuantity(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["itemId"]

	var body struct {
		Quantity *int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Quantity == nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request. quantity is required.")
		return
	}

	cart, err := s.carts.SetLineQuantity(sessionFromContext(r.Context()), itemID, *body.Quantity)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"cart": cart})
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["itemId"]

	cart, err := s.carts.RemoveLine(sessionFromContext(r.Context()), itemID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"cart": cart})
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Consumer   domain.Consumer `json:"consumer"`
		CashAppPay bool            `json:"isCashAppPay"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	result, err := s.orch.Initiate(r.Context(), checkout.InitiateRequest{
		SessionID:       sessionFromContext(r.Context()),
		Consumer:        body.Consumer,
		CashAppPay:      body.CashAppPay,
		RedirectBaseURL: s.redirectBase(r),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handlePaymentResult is the provider redirect callback. The result flag in
// the query string is trusted as-is.
func (s *Server) handlePaymentResult(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	status := query.Get("status")
	provider := query.Get("provider")
	token := query.Get("token")

	if status == "" || provider == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid request. status and provider query parameters are required.")
		return
	}
	result, err := domain.ParseCheckoutResult(status)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, `Invalid status. Must be "SUCCESS" or "CANCELLED".`)
		return
	}
	typ, err := domain.ParsePaymentType(provider)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, `Invalid provider. Must be "afterpay" or "cash_app_pay".`)
		return
	}

	outcome, err := s.orch.Finalize(r.Context(), sessionFromContext(r.Context()), result, typ, token)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, outcome)
}

// handleTimeline reports the lifecycle history of a cart: the session's OPEN
// cart by default, or any cart named by ?cartId (completed carts stay
// reachable that way).
func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	cartID := r.URL.Query().Get("cartId")
	if cartID == "" {
		cart, err := s.carts.GetOpenBySession(sessionFromContext(r.Context()))
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		cartID = cart.ID
	} else if _, err := s.carts.Get(cartID); err != nil {
		s.writeDomainError(w, err)
		return
	}

	events, err := s.timeline.List(cartID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleProviderConfiguration(w http.ResponseWriter, r *http.Request) {
	if !s.provider.Configured() {
		s.writeDomainError(w, domain.ErrProviderNotConfigured)
		return
	}
	configuration, err := s.provider.GetConfiguration(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"configuration": configuration})
}

// handleProviderCheckout is the raw passthrough endpoint: the caller supplies
// the provider-format payload directly instead of checking out a cart.
func (s *Server) handleProviderCheckout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount struct {
			Amount   string `json:"amount"`
			Currency string `json:"currency"`
		} `json:"amount"`
		Consumer domain.Consumer `json:"consumer"`
		Merchant struct {
			RedirectConfirmURL string `json:"redirectConfirmUrl"`
			RedirectCancelURL  string `json:"redirectCancelUrl"`
		} `json:"merchant"`
		CashAppPay bool `json:"isCashAppPay"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if body.Amount.Amount == "" || body.Amount.Currency == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid request. amount.amount and amount.currency are required.")
		return
	}
	if body.Consumer.Email == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid request. consumer.email is required.")
		return
	}
	amountMinor, err := afterpay.ParseMajor(body.Amount.Amount)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request. amount.amount must be a decimal amount.")
		return
	}
	if !s.provider.Configured() {
		s.writeDomainError(w, domain.ErrProviderNotConfigured)
		return
	}

	session, err := s.provider.CreateCheckout(r.Context(), domain.CheckoutRequest{
		AmountMinor:        amountMinor,
		Currency:           body.Amount.Currency,
		Consumer:           body.Consumer,
		RedirectConfirmURL: body.Merchant.RedirectConfirmURL,
		RedirectCancelURL:  body.Merchant.RedirectCancelURL,
		CashAppPay:         body.CashAppPay,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, session)
}
