package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodkart-checkout/internal/domain/cart"
	"github.com/xenking/foodkart-checkout/internal/domain/coupon"
	"github.com/xenking/foodkart-checkout/internal/domain/geo"
	"github.com/xenking/foodkart-checkout/internal/domain/order"
	"github.com/xenking/foodkart-checkout/internal/domain/pricing"
)

const maxBodyBytes = 1 << 20

// requestError marks input the client has to fix.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }

func (e *requestError) Unwrap() error { return e.err }

// decodeRequest reads the body and hands it to fn. Any failure is a
// *requestError.
func decodeRequest(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder) error) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return &requestError{err: errors.Wrap(err, "read body")}
	}
	if err := fn(jx.DecodeBytes(body)); err != nil {
		return &requestError{err: errors.Wrap(err, "decode body")}
	}
	return nil
}

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
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse %q", raw)
	}
	return v, nil
}

// decodeOptional decodes the value with fn unless it is null.
func decodeOptional(d *jx.Decoder, fn func(d *jx.Decoder) error) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	return fn(d)
}

func decodePoint(d *jx.Decoder) (*pointDTO, error) {
	var p *pointDTO
	err := decodeOptional(d, func(d *jx.Decoder) error {
		p = &pointDTO{}
		return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			var err error
			switch string(key) {
			case "lat":
				p.Lat, err = d.Float64()
			case "lng":
				p.Lng, err = d.Float64()
			default:
				err = d.Skip()
			}
			return errors.Wrap(err, string(key))
		})
	})
	return p, err
}

func decodeLines(d *jx.Decoder) ([]lineDTO, error) {
	var lines []lineDTO
	err := d.Arr(func(d *jx.Decoder) error {
		var l lineDTO
		if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			var err error
			switch string(key) {
			case "itemId":
				l.ItemID, err = d.Str()
			case "name":
				l.Name, err = d.Str()
			case "unitPrice":
				l.UnitPrice, err = decodeDecimal(d)
				if err == nil && !cart.PriceInRange(l.UnitPrice) {
					err = cart.ErrPriceOutOfRange
				}
			case "quantity":
				l.Quantity, err = d.Int()
			case "isVeg":
				l.IsVeg, err = d.Bool()
			case "category":
				l.Category, err = d.Str()
			case "restaurantId":
				l.RestaurantID, err = d.Str()
			case "variant":
				err = decodeOptional(d, func(d *jx.Decoder) error {
					var err error
					l.Variant, err = d.Str()
					return err
				})
			default:
				err = d.Skip()
			}
			return errors.Wrap(err, string(key))
		}); err != nil {
			return err
		}
		lines = append(lines, l)
		return nil
	})
	return lines, err
}

func encodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.String()))
}

func encodeError(code int, message string, reason string) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(code)
	e.FieldStart("message")
	e.Str(message)
	if reason != "" {
		e.FieldStart("reason")
		e.Str(reason)
	}
	e.ObjEnd()
	return e.Bytes()
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func encodeLines(e *jx.Encoder, lines []cart.Line) {
	e.ArrStart()
	for _, l := range lines {
		e.ObjStart()
		e.FieldStart("itemId")
		e.Str(l.ItemID)
		e.FieldStart("name")
		e.Str(l.Name)
		e.FieldStart("unitPrice")
		encodeDecimal(e, l.UnitPrice)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.FieldStart("isVeg")
		e.Bool(l.IsVeg)
		e.FieldStart("category")
		e.Str(l.Category)
		e.FieldStart("restaurantId")
		e.Str(l.RestaurantID)
		if l.Variant != "" {
			e.FieldStart("variant")
			e.Str(l.Variant)
		}
		e.FieldStart("lineTotal")
		encodeDecimal(e, l.Total())
		e.ObjEnd()
	}
	e.ArrEnd()
}

func encodeBill(e *jx.Encoder, b pricing.BillDetails) {
	e.ObjStart()
	e.FieldStart("itemTotal")
	encodeDecimal(e, b.ItemTotal)
	e.FieldStart("deliveryFee")
	encodeDecimal(e, b.DeliveryFee)
	e.FieldStart("taxes")
	encodeDecimal(e, b.Taxes)
	e.FieldStart("discount")
	encodeDecimal(e, b.Discount)
	e.FieldStart("grandTotal")
	encodeDecimal(e, b.GrandTotal)
	e.ObjEnd()
}

func encodePoint(e *jx.Encoder, p geo.Point) {
	e.ObjStart()
	e.FieldStart("lat")
	e.Float64(p.Lat)
	e.FieldStart("lng")
	e.Float64(p.Lng)
	e.ObjEnd()
}

func encodeCoupon(e *jx.Encoder, c coupon.Coupon) {
	e.ObjStart()
	e.FieldStart("code")
	e.Str(c.Code)
	e.FieldStart("description")
	e.Str(c.Description)
	e.FieldStart("kind")
	e.Str(string(c.Kind))
	e.FieldStart("value")
	encodeDecimal(e, c.Value)
	e.FieldStart("minOrderValue")
	encodeDecimal(e, c.MinOrderValue)
	if c.MaxDiscount.Valid && c.MaxDiscount.Decimal.IsPositive() {
		e.FieldStart("maxDiscount")
		encodeDecimal(e, c.MaxDiscount.Decimal)
	}
	e.FieldStart("firstOrderOnly")
	e.Bool(c.Scope.FirstOrderOnly)
	if c.Scope.RestaurantID != "" {
		e.FieldStart("restaurantId")
		e.Str(c.Scope.RestaurantID)
	}
	if c.Scope.Category != "" {
		e.FieldStart("category")
		e.Str(c.Scope.Category)
	}
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	bill, approximate := o.BillDetails()

	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("userId")
	e.Str(o.UserID)
	e.FieldStart("restaurantId")
	e.Str(o.RestaurantID)
	e.FieldStart("restaurantName")
	e.Str(o.RestaurantName)
	e.FieldStart("items")
	encodeLines(e, o.Items)
	e.FieldStart("totalAmount")
	encodeDecimal(e, o.TotalAmount)
	e.FieldStart("bill")
	encodeBill(e, bill)
	e.FieldStart("approximate")
	e.Bool(approximate)
	if o.CouponCode != "" {
		e.FieldStart("couponCode")
		e.Str(o.CouponCode)
	}
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("deliveryAddress")
	e.Str(o.DeliveryAddress)
	if o.DeliveryLocation != nil {
		e.FieldStart("deliveryLocation")
		encodePoint(e, *o.DeliveryLocation)
	}
	e.FieldStart("paymentMethod")
	e.Str(string(o.PaymentMethod))
	if o.PaymentID != "" {
		e.FieldStart("paymentId")
		e.Str(o.PaymentID)
	}
	e.FieldStart("createdAt")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339))
	e.ObjEnd()
}
