// Package rest exposes the storefront HTTP API: catalog, session cart,
// checkout and the provider redirect callback.
package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/finci-square/cash-ap-exemplar/internal/catalog"
	"github.com/finci-square/cash-ap-exemplar/internal/domain"
	"github.com/finci-square/cash-ap-exemplar/internal/service/checkout"
	"github.com/finci-square/cash-ap-exemplar/internal/session"
)

// ProviderAPI is the provider surface the passthrough endpoints need on top
// of the checkout port.
type ProviderAPI interface {
	domain.CheckoutProvider
	GetConfiguration(ctx context.Context) (json.RawMessage, error)
}

type contextKey string

const sessionContextKey contextKey = "sessionID"

// Server routes storefront requests. Every handler runs behind the session
// middleware, so a session id is always present in the request context.
type Server struct {
	router   *mux.Router
	logger   *log.Entry
	sessions *session.Manager

	catalog  *catalog.Service
	carts    domain.CartRepository
	payments domain.PaymentRepository
	timeline domain.TimelineRepository
	orch     checkout.Orchestrator
	provider ProviderAPI

	production bool
}

// Options carries the server dependencies.
type Options struct {
	Logger   *log.Entry
	Sessions *session.Manager
	Catalog  *catalog.Service
	Carts    domain.CartRepository
	Payments domain.PaymentRepository
	Timeline domain.TimelineRepository
	Checkout checkout.Orchestrator
	Provider ProviderAPI
	// Production switches the request-derived redirect base to https.
	Production bool
}

// NewServer wires the router.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New().WithField("component", "rest")
	}
	s := &Server{
		router:     mux.NewRouter(),
		logger:     logger,
		sessions:   opts.Sessions,
		catalog:    opts.Catalog,
		carts:      opts.Carts,
		payments:   opts.Payments,
		timeline:   opts.Timeline,
		orch:       opts.Checkout,
		provider:   opts.Provider,
		production: opts.Production,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.sessionMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)

	s.router.HandleFunc("/items", s.handleListItems).Methods(http.MethodGet)

	s.router.HandleFunc("/cart", s.handleGetCart).Methods(http.MethodGet)
	s.router.HandleFunc("/cart/items", s.handleAddItem).Methods(http.MethodPost)
	s.router.HandleFunc("/cart/items/{itemId}", s.handleSetQuantity).Methods(http.MethodPatch)
	s.router.HandleFunc("/cart/items/{itemId}", s.handleRemoveItem).Methods(http.MethodDelete)
	s.router.HandleFunc("/cart/checkout/afterpay", s.handleCheckout).Methods(http.MethodPost)
	s.router.HandleFunc("/cart/payment/result", s.handlePaymentResult).Methods(http.MethodGet)
	s.router.HandleFunc("/cart/timeline", s.handleTimeline).Methods(http.MethodGet)

	s.router.HandleFunc("/afterpay/configuration", s.handleProviderConfiguration).Methods(http.MethodGet)
	s.router.HandleFunc("/afterpay/checkout", s.handleProviderCheckout).Methods(http.MethodPost)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// sessionMiddleware resolves the signed session cookie and re-issues it on
// every response so the expiry rolls forward.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, fresh := s.sessions.Resolve(r)
		if fresh {
			s.logger.WithField("session_id", sessionID).Debug("minted new session")
		}
		s.sessions.Issue(w, sessionID)
		ctx := context.WithValue(r.Context(), sessionContextKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.WithFields(log.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("http request")
	})
}

func sessionFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionContextKey).(string)
	return id
}

// redirectBase derives the public origin from the incoming request, used when
// no base URL is configured. Production deployments sit behind TLS.
func (s *Server) redirectBase(r *http.Request) string {
	scheme := "http"
	if s.production {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
