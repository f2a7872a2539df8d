package coupon

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodkart-checkout/internal/domain/cart"
)

// Kind enumerates the supported coupon discount strategies.
type Kind string

const (
	// KindPercentage takes a percentage of the item total, optionally capped.
	KindPercentage Kind = "PERCENTAGE"
	// KindFlat takes a fixed amount off the item total.
	KindFlat Kind = "FLAT"
)

var (
	// ErrInvalidCoupon is returned when a coupon code is not in the catalog.
	ErrInvalidCoupon = errors.New("invalid coupon code")
	// ErrMinOrderNotMet matches *MinOrderError.
	ErrMinOrderNotMet = errors.New("minimum order value not met")
	// ErrNotEligible matches *EligibilityError.
	ErrNotEligible = errors.New("coupon not eligible")
	// ErrMalformedCoupon is returned by Validate for coupons that cannot be
	// issued.
	ErrMalformedCoupon = errors.New("malformed coupon")
)

// Coupon is an issued discount. Coupons are immutable once issued.
type Coupon struct {
	Code          string
	Description   string
	Kind          Kind
	Value         decimal.Decimal
	MinOrderValue decimal.Decimal
	// MaxDiscount caps percentage discounts when set to a positive amount.
	MaxDiscount decimal.NullDecimal
	Scope       Scope
}

// Scope narrows where a coupon may be used. The zero value applies
// everywhere.
type Scope struct {
	FirstOrderOnly bool
	RestaurantID   string
	Category       string
}

// EligibilityContext is the per-checkout view used for scope checks.
type EligibilityContext struct {
	Lines          []cart.Line
	PastOrderCount int
}

// Discount is the amount a successfully applied coupon takes off.
type Discount struct {
	Code   string
	Amount decimal.Decimal
}

// Source supplies the coupon catalog in display order.
type Source interface {
	ListCoupons(ctx context.Context) ([]Coupon, error)
}

// NormalizeCode upper-cases and trims a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// FindByCode returns the catalog entry matching code, ignoring case and
// surrounding whitespace.
func FindByCode(catalog []Coupon, code string) (Coupon, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return Coupon{}, ErrInvalidCoupon
	}
	for _, c := range catalog {
		if NormalizeCode(c.Code) == normalized {
			return c, nil
		}
	}
	return Coupon{}, ErrInvalidCoupon
}

// Validate reports whether the coupon is well formed enough to be issued.
func (c Coupon) Validate() error {
	switch {
	case NormalizeCode(c.Code) == "":
		return errors.Wrap(ErrMalformedCoupon, "empty code")
	case c.Kind != KindPercentage && c.Kind != KindFlat:
		return errors.Wrapf(ErrMalformedCoupon, "%s: unsupported kind %q", c.Code, c.Kind)
	case !c.Value.IsPositive():
		return errors.Wrapf(ErrMalformedCoupon, "%s: value must be positive", c.Code)
	case c.MinOrderValue.IsNegative():
		return errors.Wrapf(ErrMalformedCoupon, "%s: negative minimum order value", c.Code)
	case c.MaxDiscount.Valid && c.MaxDiscount.Decimal.IsNegative():
		return errors.Wrapf(ErrMalformedCoupon, "%s: negative max discount", c.Code)
	}
	return nil
}
