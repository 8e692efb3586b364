package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/utafrali/promarket/pkg/config"
)

// Cart slot backends.
const (
	SlotRedis  = "redis"
	SlotMemory = "memory"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort       int      `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Redis
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass     string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	RedisPoolSize int           `env:"REDIS_POOL_SIZE" envDefault:"20"`
	RedisTimeout  time.Duration `env:"REDIS_TIMEOUT" envDefault:"3s"`

	// Cart persistence: "redis", or "memory" for a single-process setup
	// without durability. TTL in hours (default: 7 days).
	CartSlot      string `env:"CART_SLOT" envDefault:"redis"`
	CartTTL       int    `env:"CART_TTL_HOURS" envDefault:"168"`
	CartNamespace string `env:"CART_NAMESPACE" envDefault:"promarket_cart"`
	MaxSessions   int    `env:"MAX_SESSIONS" envDefault:"10000"`

	// Upstream services
	CatalogURL        string        `env:"CATALOG_URL" envDefault:"http://localhost:8001/api/products"`
	CatalogCacheTTL   time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"5m"`
	CheckoutURL       string        `env:"CHECKOUT_URL" envDefault:"http://localhost:8001/api/checkout"`
	HTTPClientTimeout time.Duration `env:"HTTP_CLIENT_TIMEOUT" envDefault:"10s"`

	// Per-client rate limits; an RPS of 0 disables a limit.
	SessionRateLimitRPS    float64 `env:"SESSION_RATE_LIMIT_RPS" envDefault:"2"`
	SessionRateLimitBurst  int     `env:"SESSION_RATE_LIMIT_BURST" envDefault:"20"`
	CheckoutRateLimitRPS   float64 `env:"CHECKOUT_RATE_LIMIT_RPS" envDefault:"0.2"`
	CheckoutRateLimitBurst int     `env:"CHECKOUT_RATE_LIMIT_BURST" envDefault:"5"`

	// Rendering
	TaxRate float64 `env:"TAX_RATE" envDefault:"0.08"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables. opts are passed to
// the underlying loader.
func Load(opts ...pkgconfig.Option) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg, opts...); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CartTTLDuration returns the cart slot TTL.
func (c *Config) CartTTLDuration() time.Duration {
	return time.Duration(c.CartTTL) * time.Hour
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	var errs []error
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP port: %d", c.HTTPPort))
	}
	if c.CartSlot != SlotRedis && c.CartSlot != SlotMemory {
		errs = append(errs, fmt.Errorf("CART_SLOT must be %q or %q: %q", SlotRedis, SlotMemory, c.CartSlot))
	}
	if c.CartTTL < 0 {
		errs = append(errs, fmt.Errorf("CART_TTL_HOURS must not be negative: %d", c.CartTTL))
	}
	if c.MaxSessions < 1 {
		errs = append(errs, fmt.Errorf("MAX_SESSIONS must be positive: %d", c.MaxSessions))
	}
	if c.TaxRate < 0 || c.TaxRate >= 1 {
		errs = append(errs, fmt.Errorf("TAX_RATE must be in [0, 1): %g", c.TaxRate))
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATE must be in [0, 1]: %g", c.OTELSampleRate))
	}
	if c.HTTPClientTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_CLIENT_TIMEOUT must be positive"))
	}
	urls := []struct{ name, raw string }{
		{"CATALOG_URL", c.CatalogURL},
		{"CHECKOUT_URL", c.CheckoutURL},
	}
	for _, u := range urls {
		if parsed, err := url.Parse(u.raw); err != nil || parsed.Scheme == "" || parsed.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL: %q", u.name, u.raw))
		}
	}
	if c.SessionRateLimitRPS < 0 || c.CheckoutRateLimitRPS < 0 {
		errs = append(errs, errors.New("rate limits must not be negative"))
	}
	if (c.SessionRateLimitRPS > 0 && c.SessionRateLimitBurst < 1) ||
		(c.CheckoutRateLimitRPS > 0 && c.CheckoutRateLimitBurst < 1) {
		errs = append(errs, errors.New("rate limit bursts must be positive when the limit is enabled"))
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is set"))
	}
	return errors.Join(errs...)
}
