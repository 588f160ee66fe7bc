package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/finci-square/cash-ap-exemplar/internal/domain"
	"github.com/finci-square/cash-ap-exemplar/internal/messaging/kafka"
	"github.com/finci-square/cash-ap-exemplar/internal/metrics"
)

// Currency is the only currency the storefront sells in.
const Currency = "USD"

// DefaultProviderTimeout bounds one provider checkout call.
const DefaultProviderTimeout = 10 * time.Second

// InitiateRequest carries everything needed to start a provider checkout for
// one session.
type InitiateRequest struct {
	SessionID  string
	Consumer   domain.Consumer
	CashAppPay bool
	// RedirectBaseURL is the request-derived fallback used when no base URL
	// is configured.
	RedirectBaseURL string
}

// InitiateResult is the successful outcome of Initiate: the cart as it was
// priced plus the provider session the browser continues with.
type InitiateResult struct {
	Cart    domain.Cart            `json:"cart"`
	Session domain.ProviderSession `json:"checkout"`
}

// FinalizeResult reports the outcome of a provider redirect callback.
type FinalizeResult struct {
	Result  domain.CheckoutResult `json:"status"`
	Type    domain.PaymentType    `json:"provider"`
	Message string                `json:"message"`
	Cart    domain.Cart           `json:"cart"`
	Payment *domain.Payment       `json:"payment,omitempty"`
}

// Orchestrator drives the checkout lifecycle.
type Orchestrator interface {
	Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error)
	Finalize(ctx context.Context, sessionID string, result domain.CheckoutResult, typ domain.PaymentType, token string) (FinalizeResult, error)
}

// orchestrator runs the two checkout steps: create a provider session for an
// OPEN cart, then settle the cart when the provider redirects back. Finalize
// for one session is serialized with a per-session mutex; Initiate mutates
// nothing and needs no lock.
type orchestrator struct {
	carts    domain.CartRepository
	payments domain.PaymentRepository
	provider domain.CheckoutProvider
	timeline domain.TimelineRepository
	outbox   domain.OutboxRepository

	logger        *log.Entry
	metrics       *metrics.CheckoutMetrics
	kafkaProducer *kafka.Producer // optional event stream

	redirectBaseURL string
	providerTimeout time.Duration

	mu          sync.Mutex
	sessionLock map[string]*sync.Mutex
}

// Config holds the orchestration knobs that come from the environment.
type Config struct {
	// RedirectBaseURL is the public origin provider redirects come back to.
	// Empty means derive it per request.
	RedirectBaseURL string
	// ProviderTimeout bounds one provider API call; zero means the default.
	ProviderTimeout time.Duration
}

// NewOrchestrator builds a working orchestrator.
func NewOrchestrator(
	carts domain.CartRepository,
	payments domain.PaymentRepository,
	provider domain.CheckoutProvider,
	timeline domain.TimelineRepository,
	outbox domain.OutboxRepository,
	cfg Config,
	logger *log.Entry,
) Orchestrator {
	return newOrchestrator(carts, payments, provider, timeline, outbox, nil, cfg, logger, metrics.NewCheckoutMetrics())
}

// NewOrchestratorWithKafka additionally streams lifecycle events through the
// given producer.
func NewOrchestratorWithKafka(
	carts domain.CartRepository,
	payments domain.PaymentRepository,
	provider domain.CheckoutProvider,
	timeline domain.TimelineRepository,
	outbox domain.OutboxRepository,
	producer *kafka.Producer,
	cfg Config,
	logger *log.Entry,
) Orchestrator {
	return newOrchestrator(carts, payments, provider, timeline, outbox, producer, cfg, logger, metrics.NewCheckoutMetrics())
}

// NewOrchestratorWithoutMetrics skips metric registration (for tests).
func NewOrchestratorWithoutMetrics(
	carts domain.CartRepository,
	payments domain.PaymentRepository,
	provider domain.CheckoutProvider,
	timeline domain.TimelineRepository,
	outbox domain.OutboxRepository,
	cfg Config,
	logger *log.Entry,
) Orchestrator {
	return newOrchestrator(carts, payments, provider, timeline, outbox, nil, cfg, logger, nil)
}

func newOrchestrator(
	carts domain.CartRepository,
	payments domain.PaymentRepository,
	provider domain.CheckoutProvider,
	timeline domain.TimelineRepository,
	outbox domain.OutboxRepository,
	producer *kafka.Producer,
	cfg Config,
	logger *log.Entry,
	checkoutMetrics *metrics.CheckoutMetrics,
) Orchestrator {
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	return &orchestrator{
		carts:           carts,
		payments:        payments,
		provider:        provider,
		timeline:        timeline,
		outbox:          outbox,
		logger:          logger,
		metrics:         checkoutMetrics,
		kafkaProducer:   producer,
		redirectBaseURL: cfg.RedirectBaseURL,
		providerTimeout: timeout,
		sessionLock:     make(map[string]*sync.Mutex),
	}
}

// Initiate creates a provider checkout session for the session's OPEN cart.
// All preconditions are checked before the network call and no local state
// changes on any path, so a failed attempt leaves the cart exactly as it was.
func (o *orchestrator) Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error) {
	if req.SessionID == "" {
		return InitiateResult{}, domain.ErrSessionRequired
	}
	if o.provider == nil || !o.provider.Configured() {
		o.recordFailed()
		return InitiateResult{}, domain.ErrProviderNotConfigured
	}
	if err := req.Consumer.Validate(); err != nil {
		return InitiateResult{}, err
	}

	cart, err := o.carts.GetOpenBySession(req.SessionID)
	if err != nil {
		return InitiateResult{}, err
	}
	if len(cart.Lines) == 0 {
		return InitiateResult{}, domain.ErrCartEmpty
	}

	base := o.redirectBaseURL
	if base == "" {
		base = req.RedirectBaseURL
	}
	resultURL := fmt.Sprintf("%s/cart/payment/result?provider=%s", base, domain.PaymentTypeAfterpay)

	checkoutReq := domain.CheckoutRequest{
		AmountMinor:        cart.TotalMinor,
		Currency:           Currency,
		Consumer:           req.Consumer,
		RedirectConfirmURL: resultURL,
		RedirectCancelURL:  resultURL,
		CashAppPay:         req.CashAppPay,
	}

	callCtx, cancel := context.WithTimeout(ctx, o.providerTimeout)
	defer cancel()

	start := time.Now()
	session, err := o.provider.CreateCheckout(callCtx, checkoutReq)
	if o.metrics != nil {
		o.metrics.RecordProviderCallDuration("create_checkout", time.Since(start))
	}
	if err != nil {
		o.recordFailed()
		o.logger.WithError(err).WithFields(log.Fields{
			"session_id": req.SessionID,
			"cart_id":    cart.ID,
		}).Warn("provider checkout failed")
		o.publishEvent(kafka.EventTypeCheckoutFailed, cart.ID, req.SessionID, map[string]interface{}{
			"reason": err.Error(),
		})
		return InitiateResult{}, err
	}

	if o.metrics != nil {
		o.metrics.RecordCheckoutInitiated()
	}
	o.logger.WithFields(log.Fields{
		"session_id":   req.SessionID,
		"cart_id":      cart.ID,
		"amount_minor": cart.TotalMinor,
		"cash_app_pay": req.CashAppPay,
	}).Info("provider checkout created")
	o.publishEvent(kafka.EventTypeCheckoutInitiated, cart.ID, req.SessionID, map[string]interface{}{
		"amount_minor": cart.TotalMinor,
		"currency":     Currency,
		"cash_app_pay": req.CashAppPay,
	})

	return InitiateResult{Cart: cart, Session: session}, nil
}

// Finalize settles the session's OPEN cart after the provider redirect. A
// SUCCESS result creates the payment ledger entry and completes the cart; a
// CANCELLED result leaves the cart untouched. Because the cart is resolved
// through the OPEN-cart lookup, a repeated SUCCESS callback finds no cart and
// returns ErrCartNotFound instead of minting a second payment.
func (o *orchestrator) Finalize(ctx context.Context, sessionID string, result domain.CheckoutResult, typ domain.PaymentType, token string) (FinalizeResult, error) {
	if sessionID == "" {
		return FinalizeResult{}, domain.ErrSessionRequired
	}

	lock := o.lockSession(sessionID)
	lock.Lock()
	defer lock.Unlock()

	cart, err := o.carts.GetOpenBySession(sessionID)
	if err != nil {
		return FinalizeResult{}, err
	}

	if result == domain.CheckoutResultCancelled {
		if o.metrics != nil {
			o.metrics.RecordCheckoutCancelled()
		}
		o.logger.WithFields(log.Fields{
			"session_id": sessionID,
			"cart_id":    cart.ID,
			"provider":   typ,
		}).Info("checkout cancelled")
		o.appendTimeline(cart.ID, "CheckoutCancelled", string(typ))
		o.emitOutbox(cart.ID, string(kafka.EventTypePaymentCancelled), map[string]interface{}{
			"provider": string(typ),
		})
		o.publishEvent(kafka.EventTypePaymentCancelled, cart.ID, sessionID, map[string]interface{}{
			"provider": string(typ),
		})
		return FinalizeResult{
			Result:  result,
			Type:    typ,
			Message: fmt.Sprintf("Payment was cancelled with %s", typ),
			Cart:    cart,
		}, nil
	}

	now := time.Now().UTC()
	payment, err := o.payments.Create(cart.ID, typ, cart.TotalMinor, Currency, token, map[string]string{
		"sessionId":   sessionID,
		"completedAt": now.Format(time.RFC3339),
	})
	if err != nil {
		o.logger.WithError(err).WithField("cart_id", cart.ID).Error("create payment failed")
		return FinalizeResult{}, err
	}
	payment, err = o.payments.UpdateStatus(payment.ID, domain.PaymentStatusCompleted)
	if err != nil {
		o.logger.WithError(err).WithField("payment_id", payment.ID).Error("complete payment failed")
		return FinalizeResult{}, err
	}

	cart, err = o.carts.Transition(cart.ID, domain.CartStatusCompleted, payment.ID)
	if err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"cart_id":    cart.ID,
			"payment_id": payment.ID,
		}).Error("complete cart failed")
		return FinalizeResult{}, err
	}

	if o.metrics != nil {
		o.metrics.RecordCheckoutCompleted()
		o.metrics.SetOpenCarts(o.carts.CountOpen())
	}
	o.logger.WithFields(log.Fields{
		"session_id":   sessionID,
		"cart_id":      cart.ID,
		"payment_id":   payment.ID,
		"amount_minor": payment.AmountMinor,
		"provider":     typ,
	}).Info("checkout completed")

	o.appendTimeline(cart.ID, "CheckoutCompleted", string(typ))
	o.emitOutbox(cart.ID, string(kafka.EventTypePaymentCompleted), map[string]interface{}{
		"payment_id":   payment.ID,
		"amount_minor": payment.AmountMinor,
		"currency":     payment.Currency,
		"provider":     string(typ),
	})
	o.emitOutbox(cart.ID, string(kafka.EventTypeCartCompleted), map[string]interface{}{
		"payment_id": payment.ID,
	})
	o.publishEvent(kafka.EventTypePaymentCompleted, cart.ID, sessionID, map[string]interface{}{
		"payment_id":   payment.ID,
		"amount_minor": payment.AmountMinor,
		"provider":     string(typ),
	})

	return FinalizeResult{
		Result:  result,
		Type:    typ,
		Message: fmt.Sprintf("Payment completed successfully with %s", typ),
		Cart:    cart,
		Payment: &payment,
	}, nil
}

func (o *orchestrator) lockSession(sessionID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.sessionLock[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		o.sessionLock[sessionID] = lock
	}
	return lock
}

func (o *orchestrator) recordFailed() {
	if o.metrics != nil {
		o.metrics.RecordCheckoutFailed()
	}
}

func (o *orchestrator) appendTimeline(cartID, eventType, detail string) {
	if o.timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		CartID:   cartID,
		Type:     eventType,
		Detail:   detail,
		Occurred: time.Now().UTC(),
	}
	if err := o.timeline.Append(event); err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"cart_id": cartID,
			"event":   eventType,
		}).Warn("append timeline event failed")
	}
}

func (o *orchestrator) emitOutbox(cartID, eventType string, payload map[string]interface{}) {
	if o.outbox == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["cart_id"] = cartID
	data, err := json.Marshal(payload)
	if err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"cart_id": cartID,
			"event":   eventType,
		}).Error("marshal event failed")
		return
	}
	msg := domain.OutboxMessage{
		AggregateType: "cart",
		AggregateID:   cartID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := o.outbox.Enqueue(msg); err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"cart_id": cartID,
			"event":   eventType,
		}).Error("enqueue event failed")
	}
}

// publishEvent streams an event to Kafka when a producer is wired. Failures
// are logged and swallowed; Kafka is optional.
func (o *orchestrator) publishEvent(eventType kafka.EventType, cartID, sessionID string, metadata map[string]interface{}) {
	if o.kafkaProducer == nil {
		return
	}
	event := kafka.NewCheckoutEvent(eventType, cartID, sessionID, metadata)
	if err := o.kafkaProducer.PublishEvent(kafka.TopicCheckoutEvents, cartID, event); err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"cart_id":    cartID,
		}).Warn("failed to publish checkout event to kafka")
	}
}

var _ Orchestrator = (*orchestrator)(nil)
