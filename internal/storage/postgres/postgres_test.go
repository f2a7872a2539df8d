//go:build integration

package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/foodkart-checkout/internal/domain/auth"
	"github.com/xenking/foodkart-checkout/internal/domain/cart"
	"github.com/xenking/foodkart-checkout/internal/domain/coupon"
	"github.com/xenking/foodkart-checkout/internal/domain/geo"
	"github.com/xenking/foodkart-checkout/internal/domain/order"
	"github.com/xenking/foodkart-checkout/internal/domain/pricing"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
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

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	url := fmt.Sprintf("postgres://checkout:checkout@%s:%s/checkout?sslmode=disable", host, port.Port())
	testPool, err = NewPool(ctx, url)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer testPool.Close()

	if err := RunMigrations(ctx, testPool); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	// Running twice must be harmless.
	if err := RunMigrations(ctx, testPool); err != nil {
		log.Fatalf("migrations rerun: %v", err)
	}

	return m.Run()
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestSettingsRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingsRepository(testPool)

	_, err := testPool.Exec(ctx, `DELETE FROM delivery_settings`)
	require.NoError(t, err)

	_, err = repo.DeliveryConfig(ctx)
	require.ErrorIs(t, err, pricing.ErrConfigNotFound)

	want := pricing.DeliveryConfig{
		TaxRatePercent:        d("5"),
		BaseFee:               d("40"),
		PerKmFee:              d("10"),
		FreeDeliveryThreshold: decimal.NewNullDecimal(d("499")),
		PlatformCommission:    d("12.5"),
	}
	require.NoError(t, repo.UpsertDeliveryConfig(ctx, want))

	got, err := repo.DeliveryConfig(ctx)
	require.NoError(t, err)
	assert.True(t, want.BaseFee.Equal(got.BaseFee))
	assert.True(t, want.PlatformCommission.Equal(got.PlatformCommission))
	require.True(t, got.FreeDeliveryThreshold.Valid)
	assert.True(t, d("499").Equal(got.FreeDeliveryThreshold.Decimal))

	want.FreeDeliveryThreshold = decimal.NullDecimal{}
	require.NoError(t, repo.UpsertDeliveryConfig(ctx, want))
	got, err = repo.DeliveryConfig(ctx)
	require.NoError(t, err)
	assert.False(t, got.FreeDeliveryThreshold.Valid)
}

func TestCouponRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewCouponRepository(testPool)

	_, err := testPool.Exec(ctx, `DELETE FROM coupons`)
	require.NoError(t, err)

	catalog := []coupon.Coupon{
		{Code: "zeta", Kind: coupon.KindFlat, Value: d("50"), MinOrderValue: d("199")},
		{Code: "ALPHA", Kind: coupon.KindPercentage, Value: d("20"), MaxDiscount: decimal.NewNullDecimal(d("80")),
			Scope: coupon.Scope{FirstOrderOnly: true, RestaurantID: "r1", Category: "Pizza"}},
	}
	for i, c := range catalog {
		require.NoError(t, repo.Upsert(ctx, c, i))
	}

	got, err := repo.ListCoupons(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ZETA", got[0].Code, "catalog order follows position, codes are normalized")
	assert.False(t, got[0].MaxDiscount.Valid)
	assert.Equal(t, "ALPHA", got[1].Code)
	assert.Equal(t, coupon.KindPercentage, got[1].Kind)
	assert.Equal(t, coupon.Scope{FirstOrderOnly: true, RestaurantID: "r1", Category: "Pizza"}, got[1].Scope)
	assert.True(t, d("80").Equal(got[1].MaxDiscount.Decimal))

	require.NoError(t, repo.Deactivate(ctx, "zeta"))
	got, err = repo.ListCoupons(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.ErrorIs(t, repo.Deactivate(ctx, "missing"), coupon.ErrInvalidCoupon)
}

func TestOrderRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(testPool)

	_, err := testPool.Exec(ctx, `DELETE FROM orders`)
	require.NoError(t, err)

	createdAt := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	bill := pricing.BillDetails{
		ItemTotal: d("1000"), DeliveryFee: d("0"), Taxes: d("50"), Discount: d("100"), GrandTotal: d("950"),
	}
	placed := &order.Order{
		ID:             "o-new",
		UserID:         "u1",
		RestaurantID:   "r1",
		RestaurantName: "Thali House",
		Items: []cart.Line{
			{ItemID: "m1", Name: "Thali", UnitPrice: d("500"), Quantity: 2, Category: "Mains", RestaurantID: "r1", Variant: "Large"},
		},
		TotalAmount:      d("950"),
		Bill:             &bill,
		CouponCode:       "FLAT100",
		Status:           order.StatusPlaced,
		DeliveryAddress:  "12 Janpath",
		DeliveryLocation: &geo.Point{Lat: 28.61, Lng: 77.22},
		PaymentMethod:    order.PaymentOnline,
		PaymentID:        "pay_1",
		CreatedAt:        createdAt,
	}
	require.NoError(t, repo.Create(ctx, placed))

	// Legacy row without bill columns.
	_, err = testPool.Exec(ctx, `INSERT INTO orders
		(id, user_id, restaurant_id, items, total_amount, status, delivery_address, payment_method, created_at)
		VALUES ('o-old', 'u1', 'r1', '[{"itemId":"m1","unitPrice":"200","quantity":2,"restaurantId":"r1"}]',
		        450, 'DELIVERED', 'Old address', 'COD', $1)`, createdAt.Add(-24*time.Hour))
	require.NoError(t, err)

	got, err := repo.Get(ctx, "o-new")
	require.NoError(t, err)
	require.NotNil(t, got.Bill)
	assert.True(t, d("950").Equal(got.Bill.GrandTotal))
	assert.True(t, d("100").Equal(got.Bill.Discount))
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Large", got.Items[0].Variant)
	assert.True(t, d("500").Equal(got.Items[0].UnitPrice))
	require.NotNil(t, got.DeliveryLocation)
	assert.InDelta(t, 28.61, got.DeliveryLocation.Lat, 1e-9)
	assert.Equal(t, createdAt, got.CreatedAt)

	legacy, err := repo.Get(ctx, "o-old")
	require.NoError(t, err)
	assert.Nil(t, legacy.Bill)
	assert.Nil(t, legacy.DeliveryLocation)
	legacyBill, approximate := legacy.BillDetails()
	assert.True(t, approximate)
	assert.True(t, d("30").Equal(legacyBill.DeliveryFee), "got %s", legacyBill.DeliveryFee)

	_, err = repo.Get(ctx, "missing")
	require.ErrorIs(t, err, order.ErrNotFound)

	history, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "o-new", history[0].ID)
	assert.Equal(t, "o-old", history[1].ID)

	n, err := repo.CountByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.CountByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAPIKeyRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAPIKeyRepository(testPool)

	hash := auth.HashKey([]byte("pepper"), "secret")
	require.NoError(t, repo.Upsert(ctx, auth.APIKeyInfo{ID: "k1", KeyHash: hash, Name: "web", Scopes: []string{"checkout"}}))

	info, err := repo.FindByHash(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, "web", info.Name)
	assert.Equal(t, []string{"checkout"}, info.Scopes)

	_, err = repo.FindByHash(ctx, "nope")
	require.ErrorIs(t, err, auth.ErrKeyNotFound)

	a := auth.NewAuthenticator(repo, []byte("pepper"))
	_, err = a.Authenticate(ctx, "secret")
	require.NoError(t, err)
}
