package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgconfig "github.com/utafrali/promarket/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 20, cfg.RedisPoolSize)
	assert.Equal(t, 3*time.Second, cfg.RedisTimeout)
	assert.Equal(t, 168, cfg.CartTTL)
	assert.Equal(t, 168*time.Hour, cfg.CartTTLDuration())
	assert.Equal(t, "promarket_cart", cfg.CartNamespace)
	assert.Equal(t, SlotRedis, cfg.CartSlot)
	assert.InDelta(t, 0.08, cfg.TaxRate, 1e-9)
	assert.Equal(t, 5*time.Minute, cfg.CatalogCacheTTL)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.False(t, cfg.KafkaEnabled)
	assert.False(t, cfg.OTELEnabled)
	assert.InDelta(t, 2, cfg.SessionRateLimitRPS, 1e-9)
	assert.Equal(t, 20, cfg.SessionRateLimitBurst)
	assert.InDelta(t, 0.2, cfg.CheckoutRateLimitRPS, 1e-9)
	assert.Equal(t, 5, cfg.CheckoutRateLimitBurst)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("STOREFRONT_HTTP_PORT", "9000")
	t.Setenv("CART_NAMESPACE", "shop_cart")
	t.Setenv("CHECKOUT_URL", "https://api.example.com/checkout")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("TAX_RATE", "0.2")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, "shop_cart", cfg.CartNamespace)
	assert.Equal(t, "https://api.example.com/checkout", cfg.CheckoutURL)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.InDelta(t, 0.2, cfg.TaxRate, 1e-9)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"port", "STOREFRONT_HTTP_PORT", "0", "invalid HTTP port"},
		{"sample rate", "OTEL_SAMPLE_RATE", "2.0", "OTEL_SAMPLE_RATE"},
		{"tax rate", "TAX_RATE", "-0.1", "TAX_RATE"},
		{"sessions", "MAX_SESSIONS", "0", "MAX_SESSIONS"},
		{"checkout url", "CHECKOUT_URL", "/api/checkout", "CHECKOUT_URL must be an absolute URL"},
		{"cart ttl", "CART_TTL_HOURS", "-1", "CART_TTL_HOURS"},
		{"cart slot", "CART_SLOT", "disk", "CART_SLOT"},
		{"unparsable", "REDIS_DB", "zero", "load storefront config"},
		{"negative rate", "CHECKOUT_RATE_LIMIT_RPS", "-1", "rate limits must not be negative"},
		{"zero burst", "SESSION_RATE_LIMIT_BURST", "0", "rate limit bursts must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(pkgconfig.WithEnvironment(map[string]string{tt.key: tt.val}))

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_ReportsEveryProblem(t *testing.T) {
	t.Setenv("STOREFRONT_HTTP_PORT", "70000")
	t.Setenv("TAX_RATE", "1.5")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port")
	assert.Contains(t, err.Error(), "TAX_RATE")
}

func TestLoad_URLProblemsInFixedOrder(t *testing.T) {
	for range 10 {
		_, err := Load(pkgconfig.WithEnvironment(map[string]string{
			"CATALOG_URL":  "catalog",
			"CHECKOUT_URL": "checkout",
		}))

		require.Error(t, err)
		assert.Equal(t,
			"CATALOG_URL must be an absolute URL: \"catalog\"\nCHECKOUT_URL must be an absolute URL: \"checkout\"",
			err.Error())
	}
}

func TestLoad_RateLimitsCanBeDisabled(t *testing.T) {
	cfg, err := Load(pkgconfig.WithEnvironment(map[string]string{
		"SESSION_RATE_LIMIT_RPS":    "0",
		"SESSION_RATE_LIMIT_BURST":  "0",
		"CHECKOUT_RATE_LIMIT_RPS":   "0",
		"CHECKOUT_RATE_LIMIT_BURST": "0",
	}))

	require.NoError(t, err)
	assert.Zero(t, cfg.SessionRateLimitRPS)
	assert.Zero(t, cfg.CheckoutRateLimitRPS)
}
