package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CHECKOUT_DATABASE_URL", "postgres://localhost/checkout")
	t.Setenv("PORT", "")

	cfg, err := loadConfig([]string{})
	require.NoError(t, err)

	assert.Equal(t, defaultAddr, cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.Pricing.SettingsTTL)
	assert.Equal(t, time.Minute, cfg.Pricing.CouponsTTL)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
	assert.Equal(t, []string{"*"}, cfg.CORS.Origins)
	assert.Equal(t, 15*time.Second, cfg.Graceful.ShutdownTimeout)

	delivery, err := cfg.Pricing.DeliveryConfig()
	require.NoError(t, err)
	assert.Equal(t, "5", delivery.TaxRatePercent.String())
	assert.Equal(t, "40", delivery.BaseFee.String())
	assert.Equal(t, "10", delivery.PerKmFee.String())
	assert.False(t, delivery.FreeDeliveryThreshold.Valid)
}

func TestLoadConfig_PlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "9090")

	cfg, err := loadConfig([]string{})
	require.NoError(t, err)

	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
}

func TestLoadConfig_PrefixedWinsOverPlatform(t *testing.T) {
	t.Setenv("CHECKOUT_DATABASE_URL", "postgres://prefixed/db")
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("CHECKOUT_ADDR", "127.0.0.1:7000")
	t.Setenv("PORT", "9090")

	cfg, err := loadConfig([]string{})
	require.NoError(t, err)

	assert.Equal(t, "postgres://prefixed/db", cfg.DatabaseURL)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}

func TestLoadConfig_RequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := loadConfig([]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database URL is required")
}

func TestPricingConfig_DeliveryConfig(t *testing.T) {
	p := PricingConfig{TaxRatePercent: "5", BaseFee: "40", PerKmFee: "10", FreeDeliveryThreshold: "499"}

	cfg, err := p.DeliveryConfig()
	require.NoError(t, err)
	require.True(t, cfg.FreeDeliveryThreshold.Valid)
	assert.Equal(t, "499", cfg.FreeDeliveryThreshold.Decimal.String())

	p.BaseFee = "-1"
	_, err = p.DeliveryConfig()
	require.Error(t, err)

	p.BaseFee = "forty"
	_, err = p.DeliveryConfig()
	require.Error(t, err)
}
