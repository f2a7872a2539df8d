package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/foodkart-checkout/internal/domain/cart"
	"github.com/xenking/foodkart-checkout/internal/domain/coupon"
	"github.com/xenking/foodkart-checkout/internal/domain/geo"
	"github.com/xenking/foodkart-checkout/internal/domain/pricing"
)

// RejectionReason explains why a requested coupon was not applied.
type RejectionReason string

const (
	// RejectInvalidCode means the code is not in the catalog.
	RejectInvalidCode RejectionReason = "INVALID_CODE"
	// RejectMinOrderNotMet means the item total is below the coupon minimum.
	RejectMinOrderNotMet RejectionReason = "MIN_ORDER_NOT_MET"
	// RejectFirstOrderOnly means the user already has past orders.
	RejectFirstOrderOnly RejectionReason = RejectionReason(coupon.ReasonFirstOrderOnly)
	// RejectRestaurantMismatch means the coupon belongs to another restaurant.
	RejectRestaurantMismatch RejectionReason = RejectionReason(coupon.ReasonRestaurantMismatch)
	// RejectCategoryMismatch means no cart line has the coupon category.
	RejectCategoryMismatch RejectionReason = RejectionReason(coupon.ReasonCategoryMismatch)
)

// Rejection describes a coupon that could not be applied.
type Rejection struct {
	Code   string
	Reason RejectionReason
	// Required is the coupon's minimum order value for RejectMinOrderNotMet.
	Required decimal.NullDecimal
}

// QuoteRequest is a cart snapshot to price.
type QuoteRequest struct {
	// UserID identifies the customer for first-order checks. Empty for
	// anonymous quotes, which count as having no past orders.
	UserID             string
	Lines              []cart.Line
	RestaurantLocation *geo.Point
	DeliveryLocation   *geo.Point
	CouponCode         string
}

// Quote is a fully priced cart.
type Quote struct {
	Lines      []cart.Line
	DistanceKm float64
	Delivery   pricing.DeliveryFee
	// Discount is set when the requested coupon was applied.
	Discount *coupon.Discount
	// Rejection is set when a coupon was requested but not applied.
	Rejection *Rejection
	Bill      pricing.BillDetails
}

// Quote prices the cart: delivery fee from the distance between restaurant
// and delivery location, optional coupon discount, taxes and grand total.
//
// A coupon that is unknown or not applicable is reported in Quote.Rejection
// and the bill is computed without a discount.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Quote")
	defer span.End()

	q, err := s.quote(ctx, req)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Float64("checkout.distance_km", q.DistanceKm),
		attribute.String("checkout.grand_total", q.Bill.GrandTotal.String()),
	)
	return q, nil
}

func (s *Service) quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	c, err := cart.FromLines(req.Lines)
	if err != nil {
		return nil, errors.Wrap(err, "invalid cart")
	}

	code := coupon.NormalizeCode(req.CouponCode)
	in, err := s.loadInputs(ctx, req.UserID, code != "")
	if err != nil {
		return nil, err
	}

	lines := c.Lines()
	itemTotal := c.Subtotal()
	distance := geo.Between(req.RestaurantLocation, req.DeliveryLocation)
	fee := pricing.CalculateDeliveryFee(distance, in.config, itemTotal)

	q := &Quote{
		Lines:      lines,
		DistanceKm: distance,
		Delivery:   fee,
	}

	discount := decimal.Zero
	if code != "" {
		applied, rejection, err := s.applyCoupon(ctx, code, itemTotal, in, lines)
		if err != nil {
			return nil, err
		}
		if applied != nil {
			q.Discount = applied
			discount = applied.Amount
		}
		q.Rejection = rejection
	}

	q.Bill = pricing.ComposeBill(itemTotal, fee, in.config.TaxRatePercent, discount)
	s.metrics.quotes.Add(ctx, 1)
	return q, nil
}

// applyCoupon returns either the applied discount or the rejection. The
// error is reserved for malformed catalog entries.
func (s *Service) applyCoupon(
	ctx context.Context,
	code string,
	itemTotal decimal.Decimal,
	in inputs,
	lines []cart.Line,
) (*coupon.Discount, *Rejection, error) {
	c, err := coupon.FindByCode(in.catalog, code)
	if err != nil {
		return nil, s.reject(ctx, &Rejection{Code: code, Reason: RejectInvalidCode}), nil
	}

	d, err := coupon.Apply(c, itemTotal, coupon.EligibilityContext{
		Lines:          lines,
		PastOrderCount: in.pastOrderCount,
	})
	var (
		minErr   *coupon.MinOrderError
		eligible *coupon.EligibilityError
	)
	switch {
	case err == nil:
		return &d, nil, nil
	case errors.As(err, &minErr):
		return nil, s.reject(ctx, &Rejection{
			Code:     c.Code,
			Reason:   RejectMinOrderNotMet,
			Required: decimal.NewNullDecimal(minErr.Required),
		}), nil
	case errors.As(err, &eligible):
		return nil, s.reject(ctx, &Rejection{
			Code:   c.Code,
			Reason: RejectionReason(eligible.Reason),
		}), nil
	default:
		return nil, nil, errors.Wrapf(err, "apply coupon %s", c.Code)
	}
}

func (s *Service) reject(ctx context.Context, r *Rejection) *Rejection {
	s.metrics.couponRejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", string(r.Reason)),
	))
	trace.SpanFromContext(ctx).AddEvent("coupon rejected", trace.WithAttributes(
		attribute.String("coupon.code", r.Code),
		attribute.String("reason", string(r.Reason)),
	))
	zctx.From(ctx).Debug("Coupon rejected",
		zap.String("code", r.Code),
		zap.String("reason", string(r.Reason)),
	)
	return r
}

// EligibilityRequest selects the cart and user to list coupons for.
type EligibilityRequest struct {
	UserID string
	Lines  []cart.Line
}

// EligibleCoupons lists the catalog coupons whose scope covers the cart, in
// catalog order. Minimum order values are not checked here; Quote reports
// them when the coupon is applied.
func (s *Service) EligibleCoupons(ctx context.Context, req EligibilityRequest) ([]coupon.Coupon, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.EligibleCoupons")
	defer span.End()

	c, err := cart.FromLines(req.Lines)
	if err != nil {
		recordError(span, err)
		return nil, errors.Wrap(err, "invalid cart")
	}

	in, err := s.loadInputs(ctx, req.UserID, true)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	eligible := coupon.Eligible(in.catalog, coupon.EligibilityContext{
		Lines:          c.Lines(),
		PastOrderCount: in.pastOrderCount,
	})
	span.SetAttributes(
		attribute.Int("checkout.catalog_size", len(in.catalog)),
		attribute.Int("checkout.eligible", len(eligible)),
	)
	return eligible, nil
}
