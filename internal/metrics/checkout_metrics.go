package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics holds the Prometheus collectors for the checkout flow.
type CheckoutMetrics struct {
	checkoutsInitiated prometheus.Counter
	checkoutsCompleted prometheus.Counter
	checkoutsCancelled prometheus.Counter
	checkoutsFailed    prometheus.Counter

	cartsCreated prometheus.Counter
	cartsExpired prometheus.Counter

	providerCallDuration *prometheus.HistogramVec

	openCarts prometheus.Gauge
}

// NewCheckoutMetrics registers the checkout collectors with the default
// registerer.
func NewCheckoutMetrics() *CheckoutMetrics {
	return newCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CheckoutMetrics{
		checkoutsInitiated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_checkouts_initiated_total",
			Help: "Total number of provider checkout sessions created",
		}),
		checkoutsCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_checkouts_completed_total",
			Help: "Total number of checkouts finalized as SUCCESS",
		}),
		checkoutsCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_checkouts_cancelled_total",
			Help: "Total number of checkouts finalized as CANCELLED",
		}),
		checkoutsFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_checkouts_failed_total",
			Help: "Total number of checkout attempts that failed before or at the provider",
		}),
		cartsCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_carts_created_total",
			Help: "Total number of carts created",
		}),
		cartsExpired: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_carts_expired_total",
			Help: "Total number of idle OPEN carts evicted by the expiry sweeper",
		}),
		providerCallDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storefront_provider_call_duration_seconds",
			Help:    "Duration of payment provider API calls in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		openCarts: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_open_carts",
			Help: "Number of OPEN carts currently held in memory",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordCheckoutInitiated counts a successfully created provider session.
func (m *CheckoutMetrics) RecordCheckoutInitiated() {
	m.checkoutsInitiated.Inc()
}

// RecordCheckoutCompleted counts a SUCCESS finalization.
func (m *CheckoutMetrics) RecordCheckoutCompleted() {
	m.checkoutsCompleted.Inc()
}

// RecordCheckoutCancelled counts a CANCELLED finalization.
func (m *CheckoutMetrics) RecordCheckoutCancelled() {
	m.checkoutsCancelled.Inc()
}

// RecordCheckoutFailed counts a checkout attempt that did not produce a
// provider session.
func (m *CheckoutMetrics) RecordCheckoutFailed() {
	m.checkoutsFailed.Inc()
}

// RecordCartCreated counts a newly created cart.
func (m *CheckoutMetrics) RecordCartCreated() {
	m.cartsCreated.Inc()
}

// RecordCartsExpired counts carts evicted by the expiry sweeper.
func (m *CheckoutMetrics) RecordCartsExpired(n int) {
	m.cartsExpired.Add(float64(n))
}

// RecordProviderCallDuration records how long one provider API call took.
func (m *CheckoutMetrics) RecordProviderCallDuration(operation string, duration time.Duration) {
	m.providerCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetOpenCarts publishes the current number of OPEN carts.
func (m *CheckoutMetrics) SetOpenCarts(n int) {
	m.openCarts.Set(float64(n))
}
