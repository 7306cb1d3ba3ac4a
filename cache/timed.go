// Package cache provides an in-process timed memoization layer for
// idempotent read operations.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Clock supplies the current time; injectable for tests.
type Clock func() time.Time

type entry struct {
	value  any
	expiry time.Time
}

// TimedCache memoizes operation results until a per-entry expiry.
// Entries are replaced lazily on read after their ttl elapses; there is
// no size bound and no background eviction. That is an accepted scaling
// limitation given the narrow set of cached operations.
//
// Concurrent callers missing on the same key may each invoke the
// operation and overwrite one another. Results are idempotent, so the
// race is benign; the mutex only guards the map itself and is never
// held while the operation runs.
type TimedCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	clock   Clock
}

// New creates a TimedCache with the given ttl. A zero or negative ttl
// falls back to five minutes.
func New(ttl time.Duration) *TimedCache {
	return NewWithClock(ttl, time.Now)
}

// NewWithClock creates a TimedCache with an explicit time source.
func NewWithClock(ttl time.Duration, clock Clock) *TimedCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TimedCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		clock:   clock,
	}
}

// Key derives a deterministic cache key from an operation name and its
// arguments.
func Key(op string, args ...any) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, op)
	for _, a := range args {
		parts = append(parts, fmt.Sprintf("%v", a))
	}
	return strings.Join(parts, ":")
}

// Do returns the cached value for key when a live entry exists,
// otherwise invokes fn, stores its result with expiry now+ttl and
// returns it. Errors are never cached.
func (c *TimedCache) Do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	now := c.clock()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && now.Before(e.expiry) {
		return e.value, nil
	}

	value, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = entry{value: value, expiry: c.clock().Add(c.ttl)}
	c.mu.Unlock()

	return value, nil
}

// Invalidate drops the entry for key, if any.
func (c *TimedCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Memoize wraps a single-argument operation with Do, preserving its
// result type. The zero value of T is returned on error.
func Memoize[A, T any](c *TimedCache, op string, fn func(context.Context, A) (T, error)) func(context.Context, A) (T, error) {
	return func(ctx context.Context, arg A) (T, error) {
		v, err := c.Do(ctx, Key(op, arg), func(ctx context.Context) (any, error) {
			return fn(ctx, arg)
		})
		if err != nil {
			var zero T
			return zero, err
		}
		return v.(T), nil
	}
}
