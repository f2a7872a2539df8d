package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Apply validates the coupon against the checkout and computes its discount.
//
// Checks run in order and the first failure wins: the minimum order value
// (*MinOrderError), then the scope rules (*EligibilityError). The discount
// never exceeds itemTotal; delivery fees and taxes are not discounted.
func Apply(c Coupon, itemTotal decimal.Decimal, ctx EligibilityContext) (Discount, error) {
	if itemTotal.LessThan(c.MinOrderValue) {
		return Discount{}, &MinOrderError{Code: c.Code, Required: c.MinOrderValue}
	}
	if err := CheckEligibility(c, ctx); err != nil {
		return Discount{}, err
	}

	var amount decimal.Decimal
	switch c.Kind {
	case KindPercentage:
		amount = itemTotal.Mul(c.Value).Div(hundred)
		if c.MaxDiscount.Valid && c.MaxDiscount.Decimal.IsPositive() {
			amount = decimal.Min(amount, c.MaxDiscount.Decimal)
		}
	case KindFlat:
		amount = c.Value
	default:
		return Discount{}, errors.Errorf("unsupported discount kind: %q", c.Kind)
	}

	amount = decimal.Min(amount, itemTotal)
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	return Discount{Code: c.Code, Amount: amount}, nil
}
