package pricing

import (
	"github.com/shopspring/decimal"
)

// LegacyTaxRatePercent is the tax rate assumed for orders persisted before
// bill breakdowns were stored.
var LegacyTaxRatePercent = decimal.NewFromInt(5)

// ReconstructLegacyBill rebuilds an approximate breakdown for an order that
// only stored its total. Taxes are assumed at LegacyTaxRatePercent and the
// remainder is attributed to the delivery fee when positive or to a discount
// when negative.
//
// The result is a display heuristic. It must not be used for financial
// reporting.
func ReconstructLegacyBill(itemTotal, totalAmount decimal.Decimal) BillDetails {
	taxes := Round(itemTotal.Mul(LegacyTaxRatePercent).Div(hundred))
	remainder := totalAmount.Sub(itemTotal).Sub(taxes)

	bill := BillDetails{
		ItemTotal:   itemTotal,
		Taxes:       taxes,
		DeliveryFee: zero,
		Discount:    zero,
		GrandTotal:  totalAmount,
	}
	if remainder.IsPositive() {
		bill.DeliveryFee = remainder
	} else {
		bill.Discount = remainder.Abs()
	}
	return bill
}
