package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

// DeliveryFee is the outcome of the delivery fee calculation.
type DeliveryFee struct {
	// Fee is the amount charged to the customer.
	Fee decimal.Decimal
	// Waived reports whether the free delivery threshold zeroed the fee.
	Waived bool
	// OriginalFee is the fee before any waiver, for strike-through display.
	OriginalFee decimal.Decimal
	// BillableKm is the distance beyond the base fee radius.
	BillableKm decimal.Decimal
}

// CalculateDeliveryFee converts a delivery distance into a fee. The first
// 2 km are covered by the base fee; each further kilometre costs PerKmFee.
// Negative and non-finite distances are clamped to zero, the same as an
// unknown location.
func CalculateDeliveryFee(distanceKm float64, cfg DeliveryConfig, itemTotal decimal.Decimal) DeliveryFee {
	distance := zero
	if !math.IsNaN(distanceKm) && !math.IsInf(distanceKm, 0) && distanceKm > 0 {
		distance = decimal.NewFromFloat(distanceKm)
	}

	billable := decimal.Max(zero, distance.Sub(baseFeeRadiusKm))
	original := Round(cfg.BaseFee.Add(billable.Mul(cfg.PerKmFee)))

	fee := DeliveryFee{
		Fee:         original,
		OriginalFee: original,
		BillableKm:  billable,
	}
	if FreeDeliveryApplies(cfg, itemTotal) {
		fee.Fee = zero
		fee.Waived = true
	}
	return fee
}

// FreeDeliveryApplies reports whether itemTotal reaches the configured free
// delivery threshold.
func FreeDeliveryApplies(cfg DeliveryConfig, itemTotal decimal.Decimal) bool {
	if !cfg.FreeDeliveryThreshold.Valid {
		return false
	}
	return itemTotal.GreaterThanOrEqual(cfg.FreeDeliveryThreshold.Decimal)
}
