package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/xenking/foodkart-checkout/internal/domain/cart"
	"github.com/xenking/foodkart-checkout/internal/domain/pricing"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestOrder_BillDetailsStored(t *testing.T) {
	stored := pricing.BillDetails{
		ItemTotal:   d("1000"),
		DeliveryFee: d("0"),
		Taxes:       d("50"),
		Discount:    d("100"),
		GrandTotal:  d("950"),
	}
	o := &Order{
		Items:       []cart.Line{{ItemID: "m1", UnitPrice: d("500"), Quantity: 2}},
		TotalAmount: d("950"),
		Bill:        &stored,
	}

	bill, approximate := o.BillDetails()

	assert.False(t, approximate)
	assert.Equal(t, stored, bill)
}

func TestOrder_BillDetailsLegacy(t *testing.T) {
	o := &Order{
		Items: []cart.Line{
			{ItemID: "m1", UnitPrice: d("200"), Quantity: 2},
			{ItemID: "m2", UnitPrice: d("100"), Quantity: 1},
		},
		TotalAmount: d("555"),
	}

	bill, approximate := o.BillDetails()

	assert.True(t, approximate)
	assert.True(t, d("500").Equal(bill.ItemTotal), "item total %s", bill.ItemTotal)
	assert.True(t, d("25").Equal(bill.Taxes), "taxes %s", bill.Taxes)
	assert.True(t, d("30").Equal(bill.DeliveryFee), "delivery %s", bill.DeliveryFee)
	assert.True(t, bill.Discount.IsZero())
	assert.True(t, d("555").Equal(bill.GrandTotal))
}

func TestPaymentMethod_Valid(t *testing.T) {
	assert.True(t, PaymentCOD.Valid())
	assert.True(t, PaymentOnline.Valid())
	assert.False(t, PaymentMethod("CARD").Valid())
	assert.False(t, PaymentMethod("").Valid())
}
