//go:build integration

package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/foodkart-checkout/db"
	"github.com/xenking/foodkart-checkout/internal/domain/auth"
	"github.com/xenking/foodkart-checkout/internal/domain/pricing"
	"github.com/xenking/foodkart-checkout/internal/handler"
	"github.com/xenking/foodkart-checkout/internal/ingest"
	"github.com/xenking/foodkart-checkout/internal/storage/postgres"
	"github.com/xenking/foodkart-checkout/pkg/health"
)

const (
	testAPIKey = "integration-key"
	testPepper = "integration-pepper"
)

var baseURL string

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startCtx, startCancel := context.WithTimeout(ctx, 3*time.Minute)
	defer startCancel()

	container, err := testcontainers.GenericContainer(startCtx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "checkout",
				"POSTGRES_PASSWORD": "checkout",
				"POSTGRES_DB":       "checkout",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := container.Terminate(context.Background()); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	host, err := container.Host(startCtx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(startCtx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://checkout:checkout@%s:%s/checkout?sslmode=disable", host, port.Port())

	pool, err := postgres.NewPool(startCtx, dsn)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(startCtx, pool); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	if err := seed(startCtx, pool); err != nil {
		log.Fatalf("seed: %v", err)
	}

	healthSvc := health.New(nil)
	healthSvc.Add(health.Readiness, "postgres", health.PingCheck(pool))
	healthSvc.SetReady(true)

	cfg := &Config{
		APIKeyPepper: testPepper,
		Pricing:      PricingConfig{TaxRatePercent: "5", BaseFee: "40", PerKmFee: "10"},
		RateLimit:    RateLimitConfig{Rate: 1000, Burst: 1000},
		CORS:         CORSConfig{Origins: []string{"*"}},
	}
	fallback, err := cfg.Pricing.DeliveryConfig()
	if err != nil {
		log.Fatalf("fallback: %v", err)
	}

	h, err := newHandler(ctx, pool, healthSvc, tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider(), cfg, fallback)
	if err != nil {
		log.Fatalf("handler: %v", err)
	}
	srv := httptest.NewServer(h)
	defer srv.Close()
	baseURL = srv.URL

	return m.Run()
}

func seed(ctx context.Context, pool *pgxpool.Pool) error {
	settings := pricing.DeliveryConfig{
		TaxRatePercent:        decimal.NewFromInt(5),
		BaseFee:               decimal.NewFromInt(40),
		PerKmFee:              decimal.NewFromInt(10),
		FreeDeliveryThreshold: decimal.NewNullDecimal(decimal.NewFromInt(499)),
	}
	if err := postgres.NewSettingsRepository(pool).UpsertDeliveryConfig(ctx, settings); err != nil {
		return err
	}

	catalog, err := ingest.DecodeCatalog(db.SeedCoupons)
	if err != nil {
		return err
	}
	coupons := postgres.NewCouponRepository(pool)
	for i, c := range catalog {
		if err := coupons.Upsert(ctx, c, i); err != nil {
			return err
		}
	}

	return postgres.NewAPIKeyRepository(pool).Upsert(ctx, auth.APIKeyInfo{
		ID:      "integration",
		KeyHash: auth.HashKey([]byte(testPepper), testAPIKey),
		Name:    "Integration tests",
		Scopes:  []string{handler.ScopeCheckout},
	})
}

type response struct {
	status int
	header http.Header
	fields map[string]string
}

func call(t *testing.T, method, path, body string) response {
	t.Helper()

	req, err := http.NewRequest(method, baseURL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set(handler.APIKeyHeader, testAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	fields := make(map[string]string)
	require.NoError(t, jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		raw, err := d.Raw()
		if err != nil {
			return err
		}
		fields[string(key)] = string(raw)
		return nil
	}), string(data))

	return response{status: resp.StatusCode, header: resp.Header, fields: fields}
}

func cartBody(userID, coupon string, extra string) string {
	return fmt.Sprintf(`{
		"userId": %q,
		"items": [{"itemId":"thali","name":"Thali","unitPrice":"500","quantity":2,"category":"Mains","restaurantId":"r1"}],
		"couponCode": %q%s
	}`, userID, coupon, extra)
}

func TestProbes(t *testing.T) {
	for _, path := range []string{"/livez", "/readyz"} {
		resp := call(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, resp.status, path)
		assert.Equal(t, `"ok"`, resp.fields["status"])
		assert.NotEmpty(t, resp.header.Get("X-Request-ID"))
	}
}

func TestUnauthorized(t *testing.T) {
	resp, err := http.Post(baseURL+"/api/quote", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestQuote_FreeDeliveryWithFlatCoupon(t *testing.T) {
	resp := call(t, http.MethodPost, "/api/quote", cartBody("quote-user", "flat100", ""))

	require.Equal(t, http.StatusOK, resp.status)
	assert.JSONEq(t, `{"itemTotal":1000,"deliveryFee":0,"taxes":50,"discount":100,"grandTotal":950}`, resp.fields["bill"])
	assert.JSONEq(t, `{"code":"FLAT100","amount":100}`, resp.fields["coupon"])
}

func TestPlaceOrder_FirstOrderCoupon(t *testing.T) {
	place := `, "restaurantName": "Thali House", "deliveryAddress": "12 Janpath", "paymentMethod": "COD"`

	first := call(t, http.MethodPost, "/api/orders", cartBody("new-user", "WELCOME50", place))
	require.Equal(t, http.StatusCreated, first.status)
	assert.Equal(t, "950", first.fields["totalAmount"])
	assert.Equal(t, "false", first.fields["approximate"])
	assert.Equal(t, `"WELCOME50"`, first.fields["couponCode"])

	second := call(t, http.MethodPost, "/api/orders", cartBody("new-user", "WELCOME50", place))
	require.Equal(t, http.StatusUnprocessableEntity, second.status)
	assert.Equal(t, `"FIRST_ORDER_ONLY"`, second.fields["reason"])

	id := strings.Trim(first.fields["id"], `"`)
	got := call(t, http.MethodGet, "/api/orders/"+id, "")
	require.Equal(t, http.StatusOK, got.status)
	assert.JSONEq(t, first.fields["bill"], got.fields["bill"])

	history := call(t, http.MethodGet, "/api/users/new-user/orders", "")
	require.Equal(t, http.StatusOK, history.status)
	assert.Contains(t, history.fields["orders"], id)
}

func TestPlaceOrder_OnlineWithoutPayment(t *testing.T) {
	place := `, "deliveryAddress": "12 Janpath", "paymentMethod": "ONLINE"`

	resp := call(t, http.MethodPost, "/api/orders", cartBody("online-user", "", place))
	assert.Equal(t, http.StatusPaymentRequired, resp.status)
}

func TestGetOrder_NotFound(t *testing.T) {
	resp := call(t, http.MethodGet, "/api/orders/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, resp.status)
	assert.Equal(t, "404", resp.fields["code"])
}
