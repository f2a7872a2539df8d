package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/foodkart-checkout/internal/domain/order"
)

// Sentinel errors for order placement.
var (
	ErrInvalidAddress       = errors.New("delivery address required")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrPaymentRequired      = errors.New("payment id required for online payment")
	ErrInvalidPaymentMethod = errors.New("unsupported payment method")
	ErrCouponRejected       = errors.New("coupon rejected")
)

// CouponRejectedError is returned by PlaceOrder when the requested coupon
// does not apply to the cart.
type CouponRejectedError struct {
	Rejection Rejection
}

func (e *CouponRejectedError) Error() string {
	return fmt.Sprintf("coupon %s rejected: %s", e.Rejection.Code, e.Rejection.Reason)
}

// Unwrap allows errors.Is(err, ErrCouponRejected).
func (e *CouponRejectedError) Unwrap() error {
	return ErrCouponRejected
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	QuoteRequest

	RestaurantName  string
	DeliveryAddress string
	PaymentMethod   order.PaymentMethod
	// PaymentID is the payment provider's reference; required for ONLINE.
	PaymentID string
}

// PlaceOrder reprices the cart, persists the order with its bill and
// returns it. The stored total always equals the bill's grand total.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*order.Order, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.PlaceOrder")
	defer span.End()

	o, err := s.placeOrder(ctx, req)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("order.id", o.ID),
		attribute.String("order.payment_method", string(o.PaymentMethod)),
	)
	return o, nil
}

func (s *Service) placeOrder(ctx context.Context, req PlaceOrderRequest) (*order.Order, error) {
	address := strings.TrimSpace(req.DeliveryAddress)
	switch {
	case address == "":
		return nil, ErrInvalidAddress
	case len(req.Lines) == 0:
		return nil, ErrEmptyCart
	case !req.PaymentMethod.Valid():
		return nil, errors.Wrapf(ErrInvalidPaymentMethod, "%q", req.PaymentMethod)
	case req.PaymentMethod == order.PaymentOnline && strings.TrimSpace(req.PaymentID) == "":
		return nil, ErrPaymentRequired
	}

	q, err := s.quote(ctx, req.QuoteRequest)
	if err != nil {
		return nil, err
	}
	if q.Rejection != nil {
		return nil, &CouponRejectedError{Rejection: *q.Rejection}
	}

	bill := q.Bill
	o := &order.Order{
		ID:               s.newID(),
		UserID:           req.UserID,
		RestaurantID:     q.Lines[0].RestaurantID,
		RestaurantName:   req.RestaurantName,
		Items:            q.Lines,
		TotalAmount:      bill.GrandTotal,
		Bill:             &bill,
		Status:           order.StatusPlaced,
		DeliveryAddress:  address,
		DeliveryLocation: req.DeliveryLocation,
		PaymentMethod:    req.PaymentMethod,
		PaymentID:        req.PaymentID,
		CreatedAt:        s.now().UTC(),
	}
	if q.Discount != nil {
		o.CouponCode = q.Discount.Code
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	s.metrics.ordersPlaced.Add(ctx, 1, metric.WithAttributes(
		attribute.String("payment_method", string(o.PaymentMethod)),
	))
	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("restaurant_id", o.RestaurantID),
		zap.String("grand_total", bill.GrandTotal.String()),
		zap.String("coupon", o.CouponCode),
	)
	return o, nil
}
