package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodkart-checkout/internal/domain/cart"
	"github.com/xenking/foodkart-checkout/internal/domain/checkout"
	"github.com/xenking/foodkart-checkout/internal/domain/geo"
	"github.com/xenking/foodkart-checkout/internal/domain/order"
)

type pointDTO struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

func (p *pointDTO) point() *geo.Point {
	if p == nil {
		return nil
	}
	return &geo.Point{Lat: p.Lat, Lng: p.Lng}
}

type lineDTO struct {
	ItemID       string          `json:"itemId" validate:"required"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	Quantity     int             `json:"quantity" validate:"gte=1"`
	IsVeg        bool            `json:"isVeg"`
	Category     string          `json:"category"`
	RestaurantID string          `json:"restaurantId" validate:"required"`
	Variant      string          `json:"variant"`
}

type quoteDTO struct {
	UserID             string    `json:"userId"`
	Items              []lineDTO `json:"items" validate:"dive"`
	RestaurantLocation *pointDTO `json:"restaurantLocation"`
	DeliveryLocation   *pointDTO `json:"deliveryLocation"`
	CouponCode         string    `json:"couponCode"`
}

// decodeField handles the quote fields shared by every cart request.
func (q *quoteDTO) decodeField(d *jx.Decoder, key string) (bool, error) {
	var err error
	switch key {
	case "userId":
		q.UserID, err = d.Str()
	case "items":
		q.Items, err = decodeLines(d)
	case "restaurantLocation":
		q.RestaurantLocation, err = decodePoint(d)
	case "deliveryLocation":
		q.DeliveryLocation, err = decodePoint(d)
	case "couponCode":
		err = decodeOptional(d, func(d *jx.Decoder) error {
			var err error
			q.CouponCode, err = d.Str()
			return err
		})
	default:
		return false, nil
	}
	return true, errors.Wrap(err, key)
}

func (q *quoteDTO) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if ok, err := q.decodeField(d, string(key)); ok {
			return err
		}
		return d.Skip()
	})
}

func (q *quoteDTO) request() checkout.QuoteRequest {
	lines := make([]cart.Line, len(q.Items))
	for i, l := range q.Items {
		lines[i] = cart.Line{
			ItemID:       l.ItemID,
			Name:         l.Name,
			UnitPrice:    l.UnitPrice,
			Quantity:     l.Quantity,
			IsVeg:        l.IsVeg,
			Category:     l.Category,
			RestaurantID: l.RestaurantID,
			Variant:      l.Variant,
		}
	}
	return checkout.QuoteRequest{
		UserID:             strings.TrimSpace(q.UserID),
		Lines:              lines,
		RestaurantLocation: q.RestaurantLocation.point(),
		DeliveryLocation:   q.DeliveryLocation.point(),
		CouponCode:         q.CouponCode,
	}
}

type placeOrderDTO struct {
	quoteDTO

	RestaurantName  string `json:"restaurantName"`
	DeliveryAddress string `json:"deliveryAddress"`
	PaymentMethod   string `json:"paymentMethod" validate:"required"`
	PaymentID       string `json:"paymentId"`
}

func (p *placeOrderDTO) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if ok, err := p.decodeField(d, string(key)); ok {
			return err
		}
		var err error
		switch string(key) {
		case "restaurantName":
			p.RestaurantName, err = d.Str()
		case "deliveryAddress":
			p.DeliveryAddress, err = d.Str()
		case "paymentMethod":
			p.PaymentMethod, err = d.Str()
		case "paymentId":
			err = decodeOptional(d, func(d *jx.Decoder) error {
				var err error
				p.PaymentID, err = d.Str()
				return err
			})
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, string(key))
	})
}

// Quote handles POST /api/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteDTO
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	q, err := h.checkout.Quote(r.Context(), req.request())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("items")
	encodeLines(&e, q.Lines)
	e.FieldStart("distanceKm")
	e.Float64(q.DistanceKm)
	e.FieldStart("delivery")
	e.ObjStart()
	e.FieldStart("fee")
	encodeDecimal(&e, q.Delivery.Fee)
	e.FieldStart("originalFee")
	encodeDecimal(&e, q.Delivery.OriginalFee)
	e.FieldStart("waived")
	e.Bool(q.Delivery.Waived)
	e.FieldStart("billableKm")
	encodeDecimal(&e, q.Delivery.BillableKm)
	e.ObjEnd()
	if q.Discount != nil {
		e.FieldStart("coupon")
		e.ObjStart()
		e.FieldStart("code")
		e.Str(q.Discount.Code)
		e.FieldStart("amount")
		encodeDecimal(&e, q.Discount.Amount)
		e.ObjEnd()
	}
	if q.Rejection != nil {
		e.FieldStart("rejection")
		e.ObjStart()
		e.FieldStart("code")
		e.Str(q.Rejection.Code)
		e.FieldStart("reason")
		e.Str(string(q.Rejection.Reason))
		if q.Rejection.Required.Valid {
			e.FieldStart("required")
			encodeDecimal(&e, q.Rejection.Required.Decimal)
		}
		e.ObjEnd()
	}
	e.FieldStart("bill")
	encodeBill(&e, q.Bill)
	e.ObjEnd()

	writeJSON(w, http.StatusOK, e.Bytes())
}

// EligibleCoupons handles POST /api/coupons/eligible.
func (h *Handler) EligibleCoupons(w http.ResponseWriter, r *http.Request) {
	var req quoteDTO
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	q := req.request()
	coupons, err := h.checkout.EligibleCoupons(r.Context(), checkout.EligibilityRequest{
		UserID: q.UserID,
		Lines:  q.Lines,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("coupons")
	e.ArrStart()
	for _, c := range coupons {
		encodeCoupon(&e, c)
	}
	e.ArrEnd()
	e.ObjEnd()

	writeJSON(w, http.StatusOK, e.Bytes())
}

// PlaceOrder handles POST /api/orders.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderDTO
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	o, err := h.checkout.PlaceOrder(r.Context(), checkout.PlaceOrderRequest{
		QuoteRequest:    req.request(),
		RestaurantName:  req.RestaurantName,
		DeliveryAddress: req.DeliveryAddress,
		PaymentMethod:   order.PaymentMethod(strings.ToUpper(strings.TrimSpace(req.PaymentMethod))),
		PaymentID:       req.PaymentID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	w.Header().Set("Location", "/api/orders/"+o.ID)
	writeJSON(w, http.StatusCreated, e.Bytes())
}

// GetOrder handles GET /api/orders/{orderID}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.checkout.Order(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, e.Bytes())
}

// ListUserOrders handles GET /api/users/{userID}/orders.
func (h *Handler) ListUserOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.checkout.OrdersForUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("orders")
	e.ArrStart()
	for i := range orders {
		encodeOrder(&e, &orders[i])
	}
	e.ArrEnd()
	e.ObjEnd()

	writeJSON(w, http.StatusOK, e.Bytes())
}

type decodable interface {
	Decode(d *jx.Decoder) error
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v decodable) error {
	if err := decodeRequest(w, r, v.Decode); err != nil {
		return err
	}
	return h.validate.Struct(v)
}
