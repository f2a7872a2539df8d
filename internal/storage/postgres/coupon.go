package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/foodkart-checkout/internal/domain/coupon"
)

const (
	listCouponsSQL = `SELECT code, description, kind, value, min_order_value, max_discount,
		first_order_only, restaurant_id, category
		FROM coupons WHERE active = TRUE
		ORDER BY position, code`

	upsertCouponSQL = `INSERT INTO coupons
		(code, description, kind, value, min_order_value, max_discount,
		 first_order_only, restaurant_id, category, position, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE)
		ON CONFLICT (code) DO UPDATE SET
			description = EXCLUDED.description,
			kind = EXCLUDED.kind,
			value = EXCLUDED.value,
			min_order_value = EXCLUDED.min_order_value,
			max_discount = EXCLUDED.max_discount,
			first_order_only = EXCLUDED.first_order_only,
			restaurant_id = EXCLUDED.restaurant_id,
			category = EXCLUDED.category,
			position = EXCLUDED.position,
			active = TRUE`

	deactivateCouponSQL = `UPDATE coupons SET active = FALSE WHERE code = $1`
)

var _ coupon.Source = (*CouponRepository)(nil)

// CouponRepository implements coupon.Source backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// ListCoupons returns the active catalog in display order.
func (r *CouponRepository) ListCoupons(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}

	coupons, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	return coupons, nil
}

// Upsert inserts or replaces a coupon at the given catalog position. The
// code is normalized before storing.
func (r *CouponRepository) Upsert(ctx context.Context, c coupon.Coupon, position int) error {
	code := coupon.NormalizeCode(c.Code)
	_, err := r.pool.Exec(ctx, upsertCouponSQL,
		code, c.Description, string(c.Kind), c.Value, c.MinOrderValue, c.MaxDiscount,
		c.Scope.FirstOrderOnly, c.Scope.RestaurantID, c.Scope.Category, position,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert coupon %q", code)
	}
	return nil
}

// Deactivate hides a coupon from the catalog without deleting it.
func (r *CouponRepository) Deactivate(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, deactivateCouponSQL, coupon.NormalizeCode(code))
	if err != nil {
		return errors.Wrapf(err, "deactivate coupon %q", code)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrInvalidCoupon
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c    coupon.Coupon
		kind string
	)
	err := row.Scan(
		&c.Code, &c.Description, &kind, &c.Value, &c.MinOrderValue, &c.MaxDiscount,
		&c.Scope.FirstOrderOnly, &c.Scope.RestaurantID, &c.Scope.Category,
	)
	c.Kind = coupon.Kind(kind)
	return c, err
}
