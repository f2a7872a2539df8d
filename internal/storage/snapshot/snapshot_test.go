package snapshot

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/foodkart-checkout/internal/domain/coupon"
	"github.com/xenking/foodkart-checkout/internal/domain/pricing"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestLoader_CachesUntilTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	var calls atomic.Int32
	l := New("settings", func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}, time.Minute, WithClock[int](clock.Now))

	ctx := context.Background()
	v, err := l.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	clock.Advance(30 * time.Second)
	v, err = l.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v, "value within TTL should come from cache")

	clock.Advance(31 * time.Second)
	v, err = l.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.EqualValues(t, 2, calls.Load())
}

func TestLoader_ZeroTTLDisablesCache(t *testing.T) {
	var calls atomic.Int32
	l := New("coupons", func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}, 0)

	for range 3 {
		_, err := l.Get(context.Background())
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, calls.Load())
}

func TestLoader_CollapsesConcurrentLoads(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	l := New("coupons", func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "catalog", nil
	}, time.Minute)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := l.Get(context.Background())
			assert.NoError(t, err)
			results[i] = v
		}()
	}

	// Let the goroutines pile up on the in-flight load.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	for _, r := range results {
		assert.Equal(t, "catalog", r)
	}
}

func TestLoader_ErrorIsNotCached(t *testing.T) {
	fail := true
	l := New("settings", func(context.Context) (int, error) {
		if fail {
			return 0, errors.New("db down")
		}
		return 7, nil
	}, time.Minute)

	_, err := l.Get(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load settings")

	fail = false
	v, err := l.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestLoader_CachedErrorExpires(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	errMissing := errors.New("missing")
	var calls atomic.Int32
	l := New("settings", func(context.Context) (int, error) {
		if calls.Add(1) == 1 {
			return 0, errMissing
		}
		return 9, nil
	}, time.Minute,
		WithClock[int](clock.Now),
		WithCachedError[int](func(err error) bool { return errors.Is(err, errMissing) }),
	)
	ctx := context.Background()

	_, err := l.Get(ctx)
	require.ErrorIs(t, err, errMissing)
	_, err = l.Get(ctx)
	require.ErrorIs(t, err, errMissing)
	assert.EqualValues(t, 1, calls.Load(), "matching error should be cached")

	clock.Advance(61 * time.Second)
	v, err := l.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, v)
}

func TestLoader_CloneIsolatesCallers(t *testing.T) {
	l := New("coupons", func(context.Context) ([]string, error) {
		return []string{"A", "B"}, nil
	}, time.Minute, WithClone(slices.Clone[[]string]))

	first, err := l.Get(context.Background())
	require.NoError(t, err)
	first[0] = "mutated"

	second, err := l.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, second)
}

func TestLoader_Invalidate(t *testing.T) {
	var calls atomic.Int32
	l := New("settings", func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}, time.Hour)

	_, err := l.Get(context.Background())
	require.NoError(t, err)
	l.Invalidate()
	v, err := l.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, v)
}

func TestLoader_CallerCancellation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	l := New("settings", func(context.Context) (int, error) {
		<-release
		return 1, nil
	}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Get(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

type countingCoupons struct {
	calls atomic.Int32
}

func (c *countingCoupons) ListCoupons(context.Context) ([]coupon.Coupon, error) {
	c.calls.Add(1)
	return []coupon.Coupon{{Code: "A"}, {Code: "B"}}, nil
}

type missingSettings struct {
	calls atomic.Int32
}

func (m *missingSettings) DeliveryConfig(context.Context) (pricing.DeliveryConfig, error) {
	m.calls.Add(1)
	return pricing.DeliveryConfig{}, pricing.ErrConfigNotFound
}

func TestCoupons_CachedCopies(t *testing.T) {
	src := &countingCoupons{}
	c := NewCoupons(src, time.Minute)

	first, err := c.ListCoupons(context.Background())
	require.NoError(t, err)
	first[0].Code = "mutated"

	second, err := c.ListCoupons(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A", second[0].Code)
	assert.EqualValues(t, 1, src.calls.Load())
}

func TestSettings_CachesNotFound(t *testing.T) {
	src := &missingSettings{}
	s := NewSettings(src, time.Minute)

	for range 3 {
		_, err := s.DeliveryConfig(context.Background())
		require.ErrorIs(t, err, pricing.ErrConfigNotFound)
	}
	assert.EqualValues(t, 1, src.calls.Load())

	s.Invalidate()
	_, err := s.DeliveryConfig(context.Background())
	require.ErrorIs(t, err, pricing.ErrConfigNotFound)
	assert.EqualValues(t, 2, src.calls.Load())
}
