// Package ingest reads coupon catalogs from JSON documents and gzip
// compressed JSON-lines files.
package ingest

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodkart-checkout/internal/domain/coupon"
)

// DecodeCoupon reads one coupon object. Codes and kinds are normalized and
// the result is validated.
func DecodeCoupon(d *jx.Decoder) (coupon.Coupon, error) {
	var c coupon.Coupon
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "code":
			c.Code, err = d.Str()
		case "description":
			c.Description, err = d.Str()
		case "kind":
			var kind string
			kind, err = d.Str()
			c.Kind = coupon.Kind(strings.ToUpper(strings.TrimSpace(kind)))
		case "value":
			c.Value, err = decodeDecimal(d)
		case "minOrderValue":
			c.MinOrderValue, err = decodeDecimal(d)
		case "maxDiscount":
			if d.Next() == jx.Null {
				err = d.Null()
				break
			}
			var v decimal.Decimal
			v, err = decodeDecimal(d)
			c.MaxDiscount = decimal.NewNullDecimal(v)
		case "firstOrderOnly":
			c.Scope.FirstOrderOnly, err = d.Bool()
		case "restaurantId":
			c.Scope.RestaurantID, err = decodeOptionalStr(d)
		case "category":
			c.Scope.Category, err = decodeOptionalStr(d)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, string(key))
	}); err != nil {
		return coupon.Coupon{}, err
	}

	c.Code = coupon.NormalizeCode(c.Code)
	if err := c.Validate(); err != nil {
		return coupon.Coupon{}, err
	}
	return c, nil
}

// DecodeCatalog reads a JSON array of coupons, keeping the array order.
func DecodeCatalog(data []byte) ([]coupon.Coupon, error) {
	var catalog []coupon.Coupon
	if err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		c, err := DecodeCoupon(d)
		if err != nil {
			return errors.Wrapf(err, "coupon %d", len(catalog))
		}
		catalog = append(catalog, c)
		return nil
	}); err != nil {
		return nil, err
	}
	return catalog, nil
}

func decodeOptionalStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	s, err := d.Str()
	return strings.TrimSpace(s), err
}

// decodeDecimal accepts both JSON numbers and numeric strings.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = string(n)
	default:
		return decimal.Decimal{}, errors.Errorf("expected number, got %s", d.Next())
	}
	return decimal.NewFromString(strings.TrimSpace(raw))
}
