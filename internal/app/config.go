package app

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodkart-checkout/internal/domain/pricing"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (CHECKOUT_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (CHECKOUT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (CHECKOUT_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Pricing      PricingConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// PricingConfig holds the delivery config used when the settings row is
// missing, and how long loaded settings and coupons are cached.
type PricingConfig struct {
	TaxRatePercent        string        `default:"5" usage:"Fallback tax rate, percent of item total"`
	BaseFee               string        `default:"40" usage:"Fallback delivery base fee"`
	PerKmFee              string        `default:"10" usage:"Fallback fee per km beyond 2 km"`
	FreeDeliveryThreshold string        `default:"" usage:"Fallback free delivery threshold, empty disables"`
	SettingsTTL           time.Duration `default:"30s" usage:"How long delivery settings are cached" flag:"settings-ttl"`
	CouponsTTL            time.Duration `default:"1m" usage:"How long the coupon catalog is cached" flag:"coupons-ttl"`
}

// DeliveryConfig parses the fallback delivery config.
func (p PricingConfig) DeliveryConfig() (pricing.DeliveryConfig, error) {
	var cfg pricing.DeliveryConfig
	for _, f := range []struct {
		name  string
		raw   string
		value *decimal.Decimal
	}{
		{"tax rate", p.TaxRatePercent, &cfg.TaxRatePercent},
		{"base fee", p.BaseFee, &cfg.BaseFee},
		{"per km fee", p.PerKmFee, &cfg.PerKmFee},
	} {
		v, err := decimal.NewFromString(strings.TrimSpace(f.raw))
		if err != nil {
			return pricing.DeliveryConfig{}, errors.Wrapf(err, "parse %s", f.name)
		}
		if v.IsNegative() {
			return pricing.DeliveryConfig{}, errors.Errorf("%s must not be negative", f.name)
		}
		*f.value = v
	}

	if raw := strings.TrimSpace(p.FreeDeliveryThreshold); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return pricing.DeliveryConfig{}, errors.Wrap(err, "parse free delivery threshold")
		}
		cfg.FreeDeliveryThreshold = decimal.NewNullDecimal(v)
	}
	return cfg, nil
}

// RateLimitConfig controls the per-client token bucket rate limiter.
type RateLimitConfig struct {
	Rate  float64 `default:"5" usage:"Sustained requests per second per client"`
	Burst int     `default:"20" usage:"Maximum burst per client"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(os.Args[1:])
}

func loadConfig(args []string) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CHECKOUT",
		Args:      args,
		Files:     []string{"config.yaml", "/etc/checkout/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set CHECKOUT_DATABASE_URL or DATABASE_URL")
	}
	if _, err := cfg.Pricing.DeliveryConfig(); err != nil {
		return nil, errors.Wrap(err, "pricing")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's CHECKOUT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
