package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when told to.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestKey(t *testing.T) {
	assert.Equal(t, "list_short_links", Key("list_short_links"))
	assert.Equal(t, "list_short_links:0:100", Key("list_short_links", 0, 100))
	assert.Equal(t, "op:a:true", Key("op", "a", true))
}

func TestDo(t *testing.T) {
	ctx := context.Background()

	t.Run("CachesWithinTTL", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(0, 0)}
		c := NewWithClock(5*time.Minute, clock.Now)

		calls := 0
		fn := func(ctx context.Context) (any, error) {
			calls++
			return calls, nil
		}

		v, err := c.Do(ctx, "k", fn)
		require.NoError(t, err)
		assert.Equal(t, 1, v)

		clock.Advance(4 * time.Minute)
		v, err = c.Do(ctx, "k", fn)
		require.NoError(t, err)
		assert.Equal(t, 1, v)
		assert.Equal(t, 1, calls)
	})

	t.Run("RecomputesAfterExpiry", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(0, 0)}
		c := NewWithClock(5*time.Minute, clock.Now)

		calls := 0
		fn := func(ctx context.Context) (any, error) {
			calls++
			return calls, nil
		}

		_, err := c.Do(ctx, "k", fn)
		require.NoError(t, err)

		clock.Advance(5*time.Minute + time.Second)
		v, err := c.Do(ctx, "k", fn)
		require.NoError(t, err)
		assert.Equal(t, 2, v)
		assert.Equal(t, 2, calls)
	})

	t.Run("KeysAreIndependent", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(0, 0)}
		c := NewWithClock(time.Minute, clock.Now)

		a, err := c.Do(ctx, "a", func(ctx context.Context) (any, error) { return "first", nil })
		require.NoError(t, err)
		b, err := c.Do(ctx, "b", func(ctx context.Context) (any, error) { return "second", nil })
		require.NoError(t, err)
		assert.Equal(t, "first", a)
		assert.Equal(t, "second", b)
	})

	t.Run("ErrorsAreNotCached", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(0, 0)}
		c := NewWithClock(time.Minute, clock.Now)

		calls := 0
		boom := errors.New("backend down")
		fn := func(ctx context.Context) (any, error) {
			calls++
			if calls == 1 {
				return nil, boom
			}
			return "ok", nil
		}

		_, err := c.Do(ctx, "k", fn)
		assert.ErrorIs(t, err, boom)

		v, err := c.Do(ctx, "k", fn)
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
		assert.Equal(t, 2, calls)
	})

	t.Run("InvalidateDropsEntry", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(0, 0)}
		c := NewWithClock(time.Minute, clock.Now)

		calls := 0
		fn := func(ctx context.Context) (any, error) {
			calls++
			return calls, nil
		}

		_, err := c.Do(ctx, "k", fn)
		require.NoError(t, err)
		c.Invalidate("k")

		v, err := c.Do(ctx, "k", fn)
		require.NoError(t, err)
		assert.Equal(t, 2, v)
	})

	t.Run("ZeroTTLDefaultsToFiveMinutes", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(0, 0)}
		c := NewWithClock(0, clock.Now)

		calls := 0
		fn := func(ctx context.Context) (any, error) {
			calls++
			return calls, nil
		}

		_, err := c.Do(ctx, "k", fn)
		require.NoError(t, err)
		clock.Advance(4 * time.Minute)
		v, err := c.Do(ctx, "k", fn)
		require.NoError(t, err)
		assert.Equal(t, 1, v)
	})
}

func TestMemoize(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(0, 0)}
	c := NewWithClock(time.Minute, clock.Now)

	calls := 0
	double := Memoize(c, "double", func(ctx context.Context, n int) (int, error) {
		calls++
		return n * 2, nil
	})

	v, err := double(ctx, 21)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = double(ctx, 21)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)

	v, err = double(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 10, v)
	assert.Equal(t, 2, calls)
}
