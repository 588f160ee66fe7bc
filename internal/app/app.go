// Package app wires the storefront together: stores, provider client,
// checkout orchestrator, background workers and the two HTTP listeners.
package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/finci-square/cash-ap-exemplar/internal/afterpay"
	"github.com/finci-square/cash-ap-exemplar/internal/catalog"
	healthcheck "github.com/finci-square/cash-ap-exemplar/internal/health"
	"github.com/finci-square/cash-ap-exemplar/internal/messaging/kafka"
	"github.com/finci-square/cash-ap-exemplar/internal/metrics"
	"github.com/finci-square/cash-ap-exemplar/internal/service/checkout"
	"github.com/finci-square/cash-ap-exemplar/internal/service/expiry"
	"github.com/finci-square/cash-ap-exemplar/internal/service/outbox"
	"github.com/finci-square/cash-ap-exemplar/internal/service/rest"
	"github.com/finci-square/cash-ap-exemplar/internal/session"
	"github.com/finci-square/cash-ap-exemplar/internal/storage/memory"
	"github.com/finci-square/cash-ap-exemplar/internal/version"
)

// Run starts the storefront and blocks until ctx is cancelled or a listener
// fails.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	cartRepo := memory.NewCartRepository()
	paymentRepo := memory.NewPaymentRepository()
	outboxRepo := memory.NewOutboxRepository()
	timelineRepo := memory.NewTimelineRepository()
	catalogSvc := catalog.NewService()
	checkoutMetrics := metrics.NewCheckoutMetrics()

	providerOptions := []afterpay.Option{
		afterpay.WithTimeout(cfg.AfterpayTimeout),
		afterpay.WithLogger(log.WithField("component", "afterpay-client")),
	}
	if cfg.AfterpayBaseURL != "" {
		providerOptions = append(providerOptions, afterpay.WithBaseURL(cfg.AfterpayBaseURL))
	}
	provider := afterpay.NewClient(cfg.AfterpayMerchantID, cfg.AfterpayAPIKey, providerOptions...)
	if !provider.Configured() {
		logger.Warn("afterpay credentials are not set, checkout endpoints will answer 503")
	}

	secret, err := sessionSecret(cfg, logger)
	if err != nil {
		return err
	}
	sessions := session.NewManager(secret,
		session.WithSecure(cfg.Production()),
		session.WithLogger(log.WithField("component", "session")),
	)

	// Kafka is optional; without it the outbox keeps accumulating and only
	// the in-process consumers (timeline, metrics) see events.
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)

	orchCfg := checkout.Config{
		RedirectBaseURL: cfg.RedirectBaseURL,
		ProviderTimeout: cfg.AfterpayTimeout,
	}
	var orchestrator checkout.Orchestrator
	if kafkaProducer != nil {
		orchestrator = checkout.NewOrchestratorWithKafka(
			cartRepo, paymentRepo, provider, timelineRepo, outboxRepo,
			kafkaProducer, orchCfg, log.WithField("component", "checkout"),
		)
	} else {
		orchestrator = checkout.NewOrchestrator(
			cartRepo, paymentRepo, provider, timelineRepo, outboxRepo,
			orchCfg, log.WithField("component", "checkout"),
		)
	}

	if kafkaProducer != nil {
		publisher := kafka.NewOutboxPublisher(kafkaProducer, kafka.TopicCheckoutEvents)
		dlqPublisher := kafka.NewOutboxPublisher(kafkaProducer, kafka.TopicDeadLetterQueue)
		worker := outbox.NewWorker(outboxRepo, publisher,
			outbox.WithDLQPublisher(dlqPublisher),
			outbox.WithLogger(log.WithField("component", "outbox-worker")),
		)
		go worker.Run(ctx)
	}

	sweeper := expiry.NewSweeper(cartRepo, outboxRepo,
		expiry.WithIdleTTL(cfg.CartIdleTTL),
		expiry.WithInterval(cfg.CartSweepInterval),
		expiry.WithMetrics(checkoutMetrics),
		expiry.WithLogger(log.WithField("component", "cart-expiry-sweeper")),
	)
	go sweeper.Run(ctx)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("outbox", healthcheck.NewSimpleChecker("outbox", func() error {
		_, err := outboxRepo.Stats()
		return err
	}))
	healthHandler.RegisterChecker("cart-store", healthcheck.NewSimpleChecker("cart-store", func() error {
		cartRepo.CountOpen()
		return nil
	}))

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	restServer := rest.NewServer(rest.Options{
		Logger:     log.WithField("component", "rest"),
		Sessions:   sessions,
		Catalog:    catalogSvc,
		Carts:      cartRepo,
		Payments:   paymentRepo,
		Timeline:   timelineRepo,
		Checkout:   orchestrator,
		Provider:   provider,
		Production: cfg.Production(),
	})
	apiSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: restServer}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("storefront API listening on %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping HTTP servers")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		closeKafka(kafkaProducer, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		closeKafka(kafkaProducer, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// sessionSecret loads the signing secret from the configured file, or mints
// an ephemeral one. Ephemeral secrets invalidate every cookie on restart.
func sessionSecret(cfg Config, logger *log.Entry) ([]byte, error) {
	if cfg.SessionSecretPath != "" {
		return session.LoadSecret(cfg.SessionSecretPath)
	}

	if cfg.Production() {
		return nil, fmt.Errorf("SESSION_SECRET_PATH is required in production")
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate session secret: %w", err)
	}
	logger.Warn("SESSION_SECRET_PATH not set, using an ephemeral session secret")
	return secret, nil
}

// startMetricsServer serves /metrics plus the health probes.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("metrics available at %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP stops an HTTP server with a bounded grace period.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
