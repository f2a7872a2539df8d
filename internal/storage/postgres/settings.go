package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/foodkart-checkout/internal/domain/checkout"
	"github.com/xenking/foodkart-checkout/internal/domain/pricing"
)

const (
	getDeliverySettingsSQL = `SELECT tax_rate_percent, base_fee, per_km_fee,
		free_delivery_threshold, platform_commission
		FROM delivery_settings WHERE id = 1`

	upsertDeliverySettingsSQL = `INSERT INTO delivery_settings
		(id, tax_rate_percent, base_fee, per_km_fee, free_delivery_threshold, platform_commission, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, now())
		ON CONFLICT (id) DO UPDATE SET
			tax_rate_percent = EXCLUDED.tax_rate_percent,
			base_fee = EXCLUDED.base_fee,
			per_km_fee = EXCLUDED.per_km_fee,
			free_delivery_threshold = EXCLUDED.free_delivery_threshold,
			platform_commission = EXCLUDED.platform_commission,
			updated_at = now()`
)

var _ checkout.SettingsSource = (*SettingsRepository)(nil)

// SettingsRepository stores the single delivery settings row.
type SettingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository returns a SettingsRepository that uses the given pool.
func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

// DeliveryConfig returns the saved delivery settings, or
// pricing.ErrConfigNotFound when none were saved.
func (r *SettingsRepository) DeliveryConfig(ctx context.Context) (pricing.DeliveryConfig, error) {
	var cfg pricing.DeliveryConfig
	err := r.pool.QueryRow(ctx, getDeliverySettingsSQL).Scan(
		&cfg.TaxRatePercent, &cfg.BaseFee, &cfg.PerKmFee,
		&cfg.FreeDeliveryThreshold, &cfg.PlatformCommission,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pricing.DeliveryConfig{}, pricing.ErrConfigNotFound
		}
		return pricing.DeliveryConfig{}, errors.Wrap(err, "get delivery settings")
	}
	return cfg, nil
}

// UpsertDeliveryConfig replaces the delivery settings.
func (r *SettingsRepository) UpsertDeliveryConfig(ctx context.Context, cfg pricing.DeliveryConfig) error {
	_, err := r.pool.Exec(ctx, upsertDeliverySettingsSQL,
		cfg.TaxRatePercent, cfg.BaseFee, cfg.PerKmFee,
		cfg.FreeDeliveryThreshold, cfg.PlatformCommission,
	)
	if err != nil {
		return errors.Wrap(err, "upsert delivery settings")
	}
	return nil
}
