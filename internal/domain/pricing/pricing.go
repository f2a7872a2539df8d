// Package pricing computes delivery fees and checkout bills.
//
// All functions are pure: they read only their arguments and return new
// values, so they can be called repeatedly (on every cart change or coupon
// keystroke) with identical results for identical inputs.
package pricing

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrConfigNotFound is returned by settings stores when no delivery
// configuration has been saved yet.
var ErrConfigNotFound = errors.New("delivery config not found")

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.NewFromFloat(0.5)
	zero    = decimal.Zero

	// baseFeeRadiusKm is the distance covered by the base delivery fee.
	baseFeeRadiusKm = decimal.NewFromInt(2)
)

// DeliveryConfig holds the admin-configured fee parameters. It is supplied by
// the caller on every invocation and never read from globals.
type DeliveryConfig struct {
	TaxRatePercent decimal.Decimal
	BaseFee        decimal.Decimal
	PerKmFee       decimal.Decimal
	// FreeDeliveryThreshold waives the delivery fee when the item total
	// reaches it. An invalid (unset) value means no free delivery tier.
	FreeDeliveryThreshold decimal.NullDecimal
	// PlatformCommission is stored alongside the fee settings but does not
	// take part in customer-facing pricing.
	PlatformCommission decimal.Decimal
}

// BillDetails is the priced breakdown handed to order submission and
// persisted verbatim.
type BillDetails struct {
	ItemTotal   decimal.Decimal
	DeliveryFee decimal.Decimal
	Taxes       decimal.Decimal
	Discount    decimal.Decimal
	GrandTotal  decimal.Decimal
}

// Round rounds to whole currency units, halves toward positive infinity.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Add(half).Floor()
}

// ComposeBill combines the item total, delivery fee, taxes and discount into
// the final payable amount. The discount is expected to be already clamped to
// the item total, which keeps GrandTotal >= fee + taxes >= 0.
func ComposeBill(itemTotal decimal.Decimal, fee DeliveryFee, taxRatePercent, discount decimal.Decimal) BillDetails {
	taxes := Round(itemTotal.Mul(taxRatePercent).Div(hundred))
	grand := Round(itemTotal.Add(fee.Fee).Add(taxes).Sub(discount))

	return BillDetails{
		ItemTotal:   itemTotal,
		DeliveryFee: fee.Fee,
		Taxes:       taxes,
		Discount:    discount,
		GrandTotal:  grand,
	}
}
