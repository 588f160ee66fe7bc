package app

import (
	"os"
	"time"
)

// Config holds the runtime settings, all sourced from the environment.
type Config struct {
	// HTTPAddr is the storefront API listen address.
	HTTPAddr string
	// MetricsAddr serves Prometheus metrics and health probes.
	MetricsAddr string
	// Env is the deployment environment name; "production" switches on
	// secure cookies and https redirect fallbacks.
	Env string

	// SessionSecretPath points at the file holding the cookie signing
	// secret. Empty means an ephemeral secret is generated at startup.
	SessionSecretPath string

	// RedirectBaseURL is the public origin the provider redirects back to.
	// Empty means derive it from each request.
	RedirectBaseURL string

	// AfterpayMerchantID and AfterpayAPIKey are the provider credentials.
	// When either is empty the checkout endpoints answer 503.
	AfterpayMerchantID string
	AfterpayAPIKey     string
	// AfterpayBaseURL overrides the sandbox endpoint (tests, staging).
	AfterpayBaseURL string
	// AfterpayTimeout bounds one provider API call.
	AfterpayTimeout time.Duration

	// KafkaBrokers is a comma-separated broker list; empty disables Kafka.
	KafkaBrokers string

	// CartIdleTTL is how long an OPEN cart may sit untouched before the
	// sweeper evicts it.
	CartIdleTTL time.Duration
	// CartSweepInterval is the time between sweeps.
	CartSweepInterval time.Duration
}

// DefaultConfig returns the development defaults.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:          ":3000",
		MetricsAddr:       ":9090",
		Env:               "development",
		AfterpayTimeout:   10 * time.Second,
		CartIdleTTL:       24 * time.Hour,
		CartSweepInterval: 10 * time.Minute,
	}
}

// LoadConfig reads the configuration from the environment on top of the
// defaults.
func LoadConfig() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("SESSION_SECRET_PATH"); v != "" {
		cfg.SessionSecretPath = v
	}
	if v := os.Getenv("REDIRECT_BASE_URL"); v != "" {
		cfg.RedirectBaseURL = v
	}
	if v := os.Getenv("AFTERPAY_MERCHANT_ID"); v != "" {
		cfg.AfterpayMerchantID = v
	}
	if v := os.Getenv("AFTERPAY_API_KEY"); v != "" {
		cfg.AfterpayAPIKey = v
	}
	if v := os.Getenv("AFTERPAY_BASE_URL"); v != "" {
		cfg.AfterpayBaseURL = v
	}
	if v := os.Getenv("AFTERPAY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.AfterpayTimeout = d
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = v
	}
	if v := os.Getenv("CART_IDLE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.CartIdleTTL = d
		}
	}
	if v := os.Getenv("CART_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.CartSweepInterval = d
		}
	}

	return cfg
}

// Production reports whether the service runs in the production environment.
func (c Config) Production() bool {
	return c.Env == "production"
}
