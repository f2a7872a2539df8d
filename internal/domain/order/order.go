package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodkart-checkout/internal/domain/cart"
	"github.com/xenking/foodkart-checkout/internal/domain/geo"
	"github.com/xenking/foodkart-checkout/internal/domain/pricing"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Status is the order state as recorded at placement. Transitions are owned
// by the operator backend.
type Status string

const (
	// StatusPlaced is the state of every newly placed order.
	StatusPlaced Status = "PLACED"
	// StatusPreparing means the restaurant is cooking.
	StatusPreparing Status = "PREPARING"
	// StatusOnTheWay means a rider picked the order up.
	StatusOnTheWay Status = "ON_THE_WAY"
	// StatusDelivered is terminal.
	StatusDelivered Status = "DELIVERED"
	// StatusCancelled is terminal.
	StatusCancelled Status = "CANCELLED"
)

// PaymentMethod is how the customer pays.
type PaymentMethod string

const (
	// PaymentCOD is cash on delivery.
	PaymentCOD PaymentMethod = "COD"
	// PaymentOnline requires a payment reference.
	PaymentOnline PaymentMethod = "ONLINE"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCOD || m == PaymentOnline
}

// Order is a placed customer order.
type Order struct {
	ID             string
	UserID         string
	RestaurantID   string
	RestaurantName string
	Items          []cart.Line
	TotalAmount    decimal.Decimal
	// Bill is the breakdown shown at checkout. It is nil for orders placed
	// before bills were stored.
	Bill             *pricing.BillDetails
	CouponCode       string
	Status           Status
	DeliveryAddress  string
	DeliveryLocation *geo.Point
	PaymentMethod    PaymentMethod
	PaymentID        string
	CreatedAt        time.Time
}

// BillDetails returns the stored bill, or a reconstruction from the item
// lines and TotalAmount for legacy orders. approximate is true for
// reconstructed bills, which must not be used for financial reporting.
func (o *Order) BillDetails() (bill pricing.BillDetails, approximate bool) {
	if o.Bill != nil {
		return *o.Bill, false
	}
	return pricing.ReconstructLegacyBill(cart.Subtotal(o.Items), o.TotalAmount), true
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	CountByUser(ctx context.Context, userID string) (int, error)
}
