package snapshot

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/foodkart-checkout/internal/domain/coupon"
	"github.com/xenking/foodkart-checkout/internal/domain/pricing"
)

// SettingsSource is the uncached delivery settings store.
type SettingsSource interface {
	DeliveryConfig(ctx context.Context) (pricing.DeliveryConfig, error)
}

// Settings caches the delivery configuration.
type Settings struct {
	loader *Loader[pricing.DeliveryConfig]
}

// NewSettings wraps src with a ttl cache. A missing configuration is
// cached too, so a fresh install does not query src on every call.
func NewSettings(src SettingsSource, ttl time.Duration) *Settings {
	return &Settings{loader: New("delivery settings", src.DeliveryConfig, ttl,
		WithCachedError[pricing.DeliveryConfig](func(err error) bool {
			return errors.Is(err, pricing.ErrConfigNotFound)
		}),
	)}
}

// DeliveryConfig returns the cached configuration. DeliveryConfig is a value
// type, so callers always get their own copy.
func (s *Settings) DeliveryConfig(ctx context.Context) (pricing.DeliveryConfig, error) {
	return s.loader.Get(ctx)
}

// Invalidate forces a reload on the next call.
func (s *Settings) Invalidate() {
	s.loader.Invalidate()
}

// Coupons caches the coupon catalog.
type Coupons struct {
	loader *Loader[[]coupon.Coupon]
}

// NewCoupons wraps src with a ttl cache.
func NewCoupons(src coupon.Source, ttl time.Duration) *Coupons {
	return &Coupons{loader: New("coupon catalog", src.ListCoupons, ttl,
		WithClone(slices.Clone[[]coupon.Coupon]),
	)}
}

// ListCoupons returns a copy of the cached catalog in catalog order.
func (c *Coupons) ListCoupons(ctx context.Context) ([]coupon.Coupon, error) {
	return c.loader.Get(ctx)
}

// Invalidate forces a reload on the next call.
func (c *Coupons) Invalidate() {
	c.loader.Invalidate()
}
