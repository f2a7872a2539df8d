// Package snapshot caches slowly changing admin data (delivery settings,
// coupon catalog) behind a TTL. Concurrent refreshes of an expired snapshot
// collapse into a single load.
package snapshot

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/sync/singleflight"
)

// LoadFunc fetches a fresh value from the source of truth.
type LoadFunc[T any] func(ctx context.Context) (T, error)

type entry[T any] struct {
	value     T
	err       error
	expiresAt time.Time
}

// Loader serves a cached value of T and reloads it after TTL. The value
// returned by Get is shared between callers and must be treated as
// read-only; use a Clone func to hand out copies.
type Loader[T any] struct {
	name  string
	load  LoadFunc[T]
	ttl   time.Duration
	clone func(T) T
	keep  func(error) bool
	now   func() time.Time

	current atomic.Pointer[entry[T]]
	group   singleflight.Group
}

// Option configures a Loader.
type Option[T any] func(*Loader[T])

// WithClone sets a function applied to the cached value on every Get.
func WithClone[T any](clone func(T) T) Option[T] {
	return func(l *Loader[T]) { l.clone = clone }
}

// WithCachedError caches load errors matching keep for the TTL, like a
// value. Other errors are never cached.
func WithCachedError[T any](keep func(error) bool) Option[T] {
	return func(l *Loader[T]) { l.keep = keep }
}

// WithClock overrides time.Now.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(l *Loader[T]) { l.now = now }
}

// New returns a Loader named name (used in errors). A ttl <= 0 disables
// caching and every Get calls load.
func New[T any](name string, load LoadFunc[T], ttl time.Duration, opts ...Option[T]) *Loader[T] {
	l := &Loader[T]{
		name: name,
		load: load,
		ttl:  ttl,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Get returns the cached value, loading it when missing or expired.
func (l *Loader[T]) Get(ctx context.Context) (T, error) {
	if e := l.current.Load(); e != nil && l.now().Before(e.expiresAt) {
		return l.result(e)
	}

	ch := l.group.DoChan(l.name, func() (any, error) {
		// The load must outlive a single caller's cancellation since other
		// callers may be waiting on it.
		v, err := l.load(context.WithoutCancel(ctx))
		if err != nil && (l.keep == nil || !l.keep(err)) {
			return nil, err
		}
		e := &entry[T]{value: v, err: err, expiresAt: l.now().Add(l.ttl)}
		if l.ttl > 0 {
			l.current.Store(e)
		}
		return e, nil
	})

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, errors.Wrapf(res.Err, "load %s", l.name)
		}
		return l.result(res.Val.(*entry[T]))
	}
}

func (l *Loader[T]) result(e *entry[T]) (T, error) {
	if e.err != nil {
		var zero T
		return zero, errors.Wrapf(e.err, "load %s", l.name)
	}
	return l.copyOf(e.value), nil
}

// Invalidate drops the cached value so the next Get reloads it.
func (l *Loader[T]) Invalidate() {
	l.current.Store(nil)
}

func (l *Loader[T]) copyOf(v T) T {
	if l.clone == nil {
		return v
	}
	return l.clone(v)
}
