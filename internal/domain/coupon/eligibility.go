package coupon

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Reason identifies which scope rule excluded a coupon.
type Reason string

const (
	// ReasonFirstOrderOnly marks a first-order coupon for a returning user.
	ReasonFirstOrderOnly Reason = "FIRST_ORDER_ONLY"
	// ReasonRestaurantMismatch marks a coupon bound to another restaurant.
	ReasonRestaurantMismatch Reason = "RESTAURANT_MISMATCH"
	// ReasonCategoryMismatch marks a coupon whose category is not in the cart.
	ReasonCategoryMismatch Reason = "CATEGORY_MISMATCH"
)

// EligibilityError reports a coupon whose scope does not cover the cart.
type EligibilityError struct {
	Code   string
	Reason Reason
}

func (e *EligibilityError) Error() string {
	return fmt.Sprintf("coupon %s not eligible: %s", e.Code, e.Reason)
}

// Unwrap allows errors.Is(err, ErrNotEligible).
func (e *EligibilityError) Unwrap() error {
	return ErrNotEligible
}

// MinOrderError reports an item total below the coupon's minimum.
type MinOrderError struct {
	Code     string
	Required decimal.Decimal
}

func (e *MinOrderError) Error() string {
	return fmt.Sprintf("coupon %s requires a minimum order of %s", e.Code, e.Required)
}

// Unwrap allows errors.Is(err, ErrMinOrderNotMet).
func (e *MinOrderError) Unwrap() error {
	return ErrMinOrderNotMet
}

// scopeRule is a single optional restriction. Rules whose field is unset on
// the coupon always pass.
type scopeRule struct {
	reason Reason
	allows func(s Scope, ctx EligibilityContext) bool
}

// scopeRules are evaluated in order; the first failing rule is reported.
var scopeRules = []scopeRule{
	{
		reason: ReasonFirstOrderOnly,
		allows: func(s Scope, ctx EligibilityContext) bool {
			return !s.FirstOrderOnly || ctx.PastOrderCount <= 0
		},
	},
	{
		reason: ReasonRestaurantMismatch,
		allows: func(s Scope, ctx EligibilityContext) bool {
			if s.RestaurantID == "" {
				return true
			}
			return len(ctx.Lines) > 0 && ctx.Lines[0].RestaurantID == s.RestaurantID
		},
	},
	{
		reason: ReasonCategoryMismatch,
		allows: func(s Scope, ctx EligibilityContext) bool {
			if s.Category == "" {
				return true
			}
			for _, line := range ctx.Lines {
				if line.Category == s.Category {
					return true
				}
			}
			return false
		},
	},
}

// CheckEligibility evaluates the coupon's scope against the checkout context.
// It does not look at the minimum order value.
func CheckEligibility(c Coupon, ctx EligibilityContext) error {
	for _, rule := range scopeRules {
		if !rule.allows(c.Scope, ctx) {
			return &EligibilityError{Code: c.Code, Reason: rule.reason}
		}
	}
	return nil
}

// Eligible returns the coupons from catalog the user may apply to the cart,
// in catalog order.
func Eligible(catalog []Coupon, ctx EligibilityContext) []Coupon {
	out := make([]Coupon, 0, len(catalog))
	for _, c := range catalog {
		if CheckEligibility(c, ctx) == nil {
			out = append(out, c)
		}
	}
	return out
}
