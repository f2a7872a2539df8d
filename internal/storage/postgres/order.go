package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodkart-checkout/internal/domain/cart"
	"github.com/xenking/foodkart-checkout/internal/domain/geo"
	"github.com/xenking/foodkart-checkout/internal/domain/order"
	"github.com/xenking/foodkart-checkout/internal/domain/pricing"
)

const (
	orderColumns = `id, user_id, restaurant_id, restaurant_name, items, total_amount,
		item_total, delivery_fee, taxes, discount, grand_total, coupon_code, status,
		delivery_address, delivery_lat, delivery_lng, payment_method, payment_id, created_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC, id`

	countOrdersByUserSQL = `SELECT count(*) FROM orders WHERE user_id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The order items are serialized to JSON for
// storage in the JSONB column; the bill is stored in its own columns.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshal order items")
	}

	var itemTotal, deliveryFee, taxes, discount, grandTotal decimal.NullDecimal
	if b := o.Bill; b != nil {
		itemTotal = decimal.NewNullDecimal(b.ItemTotal)
		deliveryFee = decimal.NewNullDecimal(b.DeliveryFee)
		taxes = decimal.NewNullDecimal(b.Taxes)
		discount = decimal.NewNullDecimal(b.Discount)
		grandTotal = decimal.NewNullDecimal(b.GrandTotal)
	}

	var lat, lng *float64
	if p := o.DeliveryLocation; p != nil {
		lat, lng = &p.Lat, &p.Lng
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, o.RestaurantID, o.RestaurantName, itemsJSON, o.TotalAmount,
		itemTotal, deliveryFee, taxes, discount, grandTotal, o.CouponCode, string(o.Status),
		o.DeliveryAddress, lat, lng, string(o.PaymentMethod), o.PaymentID, o.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "create order %q", o.ID)
	}

	return nil
}

// Get returns the order with the given ID, or order.ErrNotFound.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	return &o, nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// CountByUser returns how many orders the user has placed.
func (r *OrderRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countOrdersByUserSQL, userID).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count orders")
	}
	return n, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		itemsJSON     []byte
		status        string
		paymentMethod string
		lat, lng      *float64
		createdAt     time.Time

		itemTotal, deliveryFee, taxes, discount, grandTotal decimal.NullDecimal
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.RestaurantID, &o.RestaurantName, &itemsJSON, &o.TotalAmount,
		&itemTotal, &deliveryFee, &taxes, &discount, &grandTotal, &o.CouponCode, &status,
		&o.DeliveryAddress, &lat, &lng, &paymentMethod, &o.PaymentID, &createdAt,
	)
	if err != nil {
		return order.Order{}, err
	}

	var items []cart.Line
	if err := json.Unmarshal(itemsJSON, &items); err != nil {
		return order.Order{}, errors.Wrapf(err, "unmarshal items of order %q", o.ID)
	}
	o.Items = items
	o.Status = order.Status(status)
	o.PaymentMethod = order.PaymentMethod(paymentMethod)
	o.CreatedAt = createdAt.UTC()

	// Orders placed before bills were stored have no breakdown.
	if grandTotal.Valid {
		o.Bill = &pricing.BillDetails{
			ItemTotal:   itemTotal.Decimal,
			DeliveryFee: deliveryFee.Decimal,
			Taxes:       taxes.Decimal,
			Discount:    discount.Decimal,
			GrandTotal:  grandTotal.Decimal,
		}
	}
	if lat != nil && lng != nil {
		o.DeliveryLocation = &geo.Point{Lat: *lat, Lng: *lng}
	}

	return o, nil
}
