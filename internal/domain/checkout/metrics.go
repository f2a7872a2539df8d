package checkout

import (
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	quotes           metric.Int64Counter
	couponRejections metric.Int64Counter
	ordersPlaced     metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	var (
		m   metrics
		err error
	)
	if m.quotes, err = meter.Int64Counter("checkout.quotes",
		metric.WithDescription("Number of priced carts"),
	); err != nil {
		return nil, errors.Wrap(err, "quotes")
	}
	if m.couponRejections, err = meter.Int64Counter("checkout.coupon_rejections",
		metric.WithDescription("Number of coupon applications rejected, by reason"),
	); err != nil {
		return nil, errors.Wrap(err, "coupon_rejections")
	}
	if m.ordersPlaced, err = meter.Int64Counter("checkout.orders_placed",
		metric.WithDescription("Number of orders placed, by payment method"),
	); err != nil {
		return nil, errors.Wrap(err, "orders_placed")
	}
	return &m, nil
}
