// Package handler serves the checkout HTTP API.
package handler

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xenking/foodkart-checkout/internal/domain/auth"
	"github.com/xenking/foodkart-checkout/internal/domain/cart"
	"github.com/xenking/foodkart-checkout/internal/domain/checkout"
	"github.com/xenking/foodkart-checkout/internal/domain/coupon"
	"github.com/xenking/foodkart-checkout/internal/domain/order"
)

// APIKeyHeader carries the client's API key.
const APIKeyHeader = "api_key"

// ScopeCheckout grants access to every checkout endpoint.
const ScopeCheckout = "checkout"

// Checkout is the service behind the API.
type Checkout interface {
	Quote(ctx context.Context, req checkout.QuoteRequest) (*checkout.Quote, error)
	EligibleCoupons(ctx context.Context, req checkout.EligibilityRequest) ([]coupon.Coupon, error)
	PlaceOrder(ctx context.Context, req checkout.PlaceOrderRequest) (*order.Order, error)
	Order(ctx context.Context, id string) (*order.Order, error)
	OrdersForUser(ctx context.Context, userID string) ([]order.Order, error)
}

// Authenticator resolves an API key to its owner.
type Authenticator interface {
	Authenticate(ctx context.Context, key string) (*auth.APIKeyInfo, error)
}

var _ Checkout = (*checkout.Service)(nil)

// Handler implements the /api routes.
type Handler struct {
	checkout Checkout
	keys     Authenticator
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(svc Checkout, keys Authenticator) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{
		checkout: svc,
		keys:     keys,
		validate: v,
	}
}

// Router returns the API routes mounted under /api.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, encodeError(http.StatusNotFound, "not found", ""))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, encodeError(http.StatusMethodNotAllowed, "method not allowed", ""))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(h.requireAPIKey(ScopeCheckout))

		r.Post("/quote", h.Quote)
		r.Post("/coupons/eligible", h.EligibleCoupons)
		r.Post("/orders", h.PlaceOrder)
		r.Get("/orders/{orderID}", h.GetOrder)
		r.Get("/users/{userID}/orders", h.ListUserOrders)
	})
	return r
}

type apiKeyCtxKey struct{}

// APIKeyFromContext returns the key that authenticated the request.
func APIKeyFromContext(ctx context.Context) (*auth.APIKeyInfo, bool) {
	info, ok := ctx.Value(apiKeyCtxKey{}).(*auth.APIKeyInfo)
	return info, ok
}

func (h *Handler) requireAPIKey(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			info, err := h.keys.Authenticate(ctx, r.Header.Get(APIKeyHeader))
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, encodeError(http.StatusUnauthorized, "unauthorized", ""))
				return
			}
			if !info.HasScope(scope) {
				writeJSON(w, http.StatusForbidden, encodeError(http.StatusForbidden, "api key lacks scope "+scope, ""))
				return
			}

			ctx = context.WithValue(ctx, apiKeyCtxKey{}, info)
			ctx = zctx.With(ctx, zap.String("api_key_id", info.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// fail maps err to a status code and writes the error body.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		reqErr      *requestError
		validErr    validator.ValidationErrors
		qtyErr      *cart.InvalidQuantityError
		rejectedErr *checkout.CouponRejectedError
	)
	status, reason := http.StatusInternalServerError, ""
	message := err.Error()

	switch {
	case errors.As(err, &validErr):
		status = http.StatusBadRequest
		message = describeValidation(validErr)
	case errors.As(err, &reqErr),
		errors.As(err, &qtyErr),
		errors.Is(err, cart.ErrMixedRestaurants),
		errors.Is(err, cart.ErrNegativePrice),
		errors.Is(err, cart.ErrPriceOutOfRange),
		errors.Is(err, checkout.ErrInvalidAddress),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrInvalidPaymentMethod):
		status = http.StatusBadRequest
	case errors.Is(err, checkout.ErrPaymentRequired):
		status = http.StatusPaymentRequired
	case errors.As(err, &rejectedErr):
		status = http.StatusUnprocessableEntity
		reason = string(rejectedErr.Rejection.Reason)
	case errors.Is(err, order.ErrNotFound):
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		message = "internal error"
	}
	writeJSON(w, status, encodeError(status, message, reason))
}

func describeValidation(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = strings.TrimPrefix(rest, "quoteDTO.")
		}
		if fe.Param() != "" {
			msgs = append(msgs, field+": must satisfy "+fe.Tag()+"="+fe.Param())
			continue
		}
		msgs = append(msgs, field+": must satisfy "+fe.Tag())
	}
	return strings.Join(msgs, "; ")
}
