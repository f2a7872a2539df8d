// Package checkout prices carts and places orders. It loads the admin
// delivery configuration, coupon catalog and order history, runs them
// through the pricing and coupon engines and persists the resulting bill.
package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/foodkart-checkout/internal/domain/coupon"
	"github.com/xenking/foodkart-checkout/internal/domain/order"
	"github.com/xenking/foodkart-checkout/internal/domain/pricing"
)

const instrumentationName = "github.com/xenking/foodkart-checkout/internal/domain/checkout"

// SettingsSource supplies the current delivery configuration. It returns
// pricing.ErrConfigNotFound when no configuration has been saved.
type SettingsSource interface {
	DeliveryConfig(ctx context.Context) (pricing.DeliveryConfig, error)
}

// DefaultDeliveryConfig is used until an admin saves delivery settings.
var DefaultDeliveryConfig = pricing.DeliveryConfig{
	TaxRatePercent: decimal.NewFromInt(5),
	BaseFee:        decimal.NewFromInt(40),
	PerKmFee:       decimal.NewFromInt(10),
}

// Service implements quoting and order placement.
type Service struct {
	settings SettingsSource
	coupons  coupon.Source
	orders   order.Repository
	fallback pricing.DeliveryConfig

	tracer  trace.Tracer
	metrics *metrics
	now     func() time.Time
	newID   func() string
}

// Option configures a Service.
type Option func(*options)

type options struct {
	fallback       pricing.DeliveryConfig
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	now            func() time.Time
	newID          func() string
}

// WithFallbackConfig overrides DefaultDeliveryConfig.
func WithFallbackConfig(cfg pricing.DeliveryConfig) Option {
	return func(o *options) { o.fallback = cfg }
}

// WithTracerProvider sets the tracer provider. Defaults to noop.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider. Defaults to noop.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithClock overrides time.Now for order timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator overrides the order ID generator.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

// NewService creates a checkout Service with the required dependencies.
func NewService(
	settings SettingsSource,
	coupons coupon.Source,
	orders order.Repository,
	opts ...Option,
) (*Service, error) {
	o := options{
		fallback:       DefaultDeliveryConfig,
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
		now:            time.Now,
		newID:          func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(&o)
	}

	m, err := newMetrics(o.meterProvider.Meter(instrumentationName))
	if err != nil {
		return nil, errors.Wrap(err, "create metrics")
	}

	return &Service{
		settings: settings,
		coupons:  coupons,
		orders:   orders,
		fallback: o.fallback,
		tracer:   o.tracerProvider.Tracer(instrumentationName),
		metrics:  m,
		now:      o.now,
		newID:    o.newID,
	}, nil
}

// inputs is everything a quote needs from storage.
type inputs struct {
	config         pricing.DeliveryConfig
	catalog        []coupon.Coupon
	pastOrderCount int
}

// loadInputs fetches the delivery config, the coupon catalog and the user's
// order count concurrently. The catalog and order count are only loaded when
// withCoupons is set.
func (s *Service) loadInputs(ctx context.Context, userID string, withCoupons bool) (inputs, error) {
	var in inputs

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cfg, err := s.deliveryConfig(gctx)
		if err != nil {
			return err
		}
		in.config = cfg
		return nil
	})
	if withCoupons {
		g.Go(func() error {
			catalog, err := s.coupons.ListCoupons(gctx)
			if err != nil {
				return errors.Wrap(err, "list coupons")
			}
			in.catalog = catalog
			return nil
		})
		g.Go(func() error {
			if userID == "" {
				return nil
			}
			n, err := s.orders.CountByUser(gctx, userID)
			if err != nil {
				return errors.Wrap(err, "count orders")
			}
			in.pastOrderCount = n
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return inputs{}, err
	}
	return in, nil
}

func (s *Service) deliveryConfig(ctx context.Context) (pricing.DeliveryConfig, error) {
	cfg, err := s.settings.DeliveryConfig(ctx)
	if errors.Is(err, pricing.ErrConfigNotFound) {
		zctx.From(ctx).Debug("Delivery settings not configured, using defaults")
		return s.fallback, nil
	}
	if err != nil {
		return pricing.DeliveryConfig{}, errors.Wrap(err, "load delivery config")
	}
	return cfg, nil
}

// Order returns a single order by ID.
func (s *Service) Order(ctx context.Context, id string) (*order.Order, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Order", trace.WithAttributes(
		attribute.String("order.id", id),
	))
	defer span.End()

	o, err := s.orders.Get(ctx, id)
	if err != nil {
		recordError(span, err)
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

// OrdersForUser returns the user's order history, newest first.
func (s *Service) OrdersForUser(ctx context.Context, userID string) ([]order.Order, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.OrdersForUser")
	defer span.End()

	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		recordError(span, err)
		return nil, errors.Wrap(err, "list orders")
	}
	zctx.From(ctx).Debug("Loaded order history",
		zap.String("user_id", userID),
		zap.Int("count", len(orders)),
	)
	return orders, nil
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
