// Package expiry evicts OPEN carts whose sessions went idle, so abandoned
// carts do not accumulate in memory forever.
package expiry

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/finci-square/cash-ap-exemplar/internal/domain"
	"github.com/finci-square/cash-ap-exemplar/internal/messaging/kafka"
	"github.com/finci-square/cash-ap-exemplar/internal/metrics"
)

const (
	defaultSweepInterval = 10 * time.Minute
	defaultIdleTTL       = 24 * time.Hour
	defaultBatchSize     = 500
)

var (
	sweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_expiry_runs_total",
		Help: "Total number of cart expiry sweeps grouped by result.",
	}, []string{"result"})
	sweepRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_cart_expiry_removed_total",
		Help: "Total number of idle OPEN carts removed by the sweeper.",
	})
	sweepLastRemoved = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_cart_expiry_last_removed",
		Help: "Number of carts removed during the last sweep.",
	})
)

// Options configures the sweeper.
type Options struct {
	Logger    *log.Entry
	Interval  time.Duration
	IdleTTL   time.Duration
	BatchSize int
	Metrics   *metrics.CheckoutMetrics
}

// Option adjusts one Options field.
type Option func(*Options)

// WithLogger sets the component logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithInterval sets the time between sweeps.
func WithInterval(interval time.Duration) Option {
	return func(opts *Options) {
		opts.Interval = interval
	}
}

// WithIdleTTL sets how long an OPEN cart may sit untouched before eviction.
func WithIdleTTL(ttl time.Duration) Option {
	return func(opts *Options) {
		opts.IdleTTL = ttl
	}
}

// WithBatchSize caps how many carts one repository call may remove.
func WithBatchSize(batchSize int) Option {
	return func(opts *Options) {
		opts.BatchSize = batchSize
	}
}

// WithMetrics attaches the shared checkout metrics.
func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// Sweeper periodically removes idle OPEN carts and records their eviction in
// the outbox.
type Sweeper struct {
	carts  domain.CartRepository
	outbox domain.OutboxRepository

	logger    *log.Entry
	metrics   *metrics.CheckoutMetrics
	interval  time.Duration
	idleTTL   time.Duration
	batchSize int
}

// NewSweeper builds a sweeper over the cart store. The outbox may be nil;
// evictions are then only logged.
func NewSweeper(carts domain.CartRepository, outbox domain.OutboxRepository, options ...Option) *Sweeper {
	opts := Options{
		Interval:  defaultSweepInterval,
		IdleTTL:   defaultIdleTTL,
		BatchSize: defaultBatchSize,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "cart-expiry-sweeper")
	}

	if opts.Interval <= 0 {
		opts.Interval = defaultSweepInterval
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = defaultIdleTTL
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	return &Sweeper{
		carts:     carts,
		outbox:    outbox,
		logger:    logger,
		metrics:   opts.Metrics,
		interval:  opts.Interval,
		idleTTL:   opts.IdleTTL,
		batchSize: opts.BatchSize,
	}
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if s.carts == nil {
		s.logger.Warn("cart expiry sweeper is disabled: cart store is nil")
		return
	}

	s.sweep(ctx, time.Now().UTC())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx, time.Now().UTC())
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context, now time.Time) {
	removed, err := s.SweepOnce(ctx, now)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		sweepRunsTotal.WithLabelValues("error").Inc()
		s.logger.WithError(err).Warn("cart expiry sweep failed")
		return
	}

	sweepRunsTotal.WithLabelValues("ok").Inc()
	sweepLastRemoved.Set(float64(removed))
	if s.metrics != nil {
		s.metrics.SetOpenCarts(s.carts.CountOpen())
	}
	if removed > 0 {
		s.logger.WithField("removed", removed).Info("cart expiry sweep completed")
	}
}

// SweepOnce removes every OPEN cart idle since before now-TTL, in batches,
// and returns how many were evicted.
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) (int, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	cutoff := now.Add(-s.idleTTL)

	totalRemoved := 0
	for {
		if err := ctx.Err(); err != nil {
			return totalRemoved, err
		}

		expired, err := s.carts.DeleteExpired(cutoff, s.batchSize)
		if err != nil {
			return totalRemoved, err
		}

		for _, cart := range expired {
			s.recordEviction(cart)
		}

		totalRemoved += len(expired)
		if len(expired) > 0 {
			sweepRemovedTotal.Add(float64(len(expired)))
			if s.metrics != nil {
				s.metrics.RecordCartsExpired(len(expired))
			}
		}

		if len(expired) < s.batchSize {
			break
		}
	}

	return totalRemoved, nil
}

func (s *Sweeper) recordEviction(cart domain.Cart) {
	s.logger.WithFields(log.Fields{
		"cart_id":    cart.ID,
		"session_id": cart.SessionID,
		"idle_since": cart.UpdatedAt,
	}).Debug("evicting idle cart")

	if s.outbox == nil {
		return
	}
	payload, err := json.Marshal(map[string]string{
		"cart_id":    cart.ID,
		"session_id": cart.SessionID,
	})
	if err != nil {
		s.logger.WithError(err).WithField("cart_id", cart.ID).Error("marshal cart expired event failed")
		return
	}
	msg := domain.OutboxMessage{
		AggregateType: "cart",
		AggregateID:   cart.ID,
		EventType:     string(kafka.EventTypeCartExpired),
		Payload:       payload,
	}
	if _, err := s.outbox.Enqueue(msg); err != nil {
		s.logger.WithError(err).WithField("cart_id", cart.ID).Warn("enqueue cart expired event failed")
	}
}
