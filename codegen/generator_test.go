package codegen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func neverExists(ctx context.Context, code string) (bool, error) { return false, nil }

func alwaysExists(ctx context.Context, code string) (bool, error) { return true, nil }

func TestNewGenerator(t *testing.T) {
	t.Run("RejectsLengthsBelowFive", func(t *testing.T) {
		for _, length := range []int{0, 1, 4} {
			gen, err := NewGenerator(length)
			assert.Nil(t, gen)
			assert.ErrorIs(t, err, ErrCodeLengthTooShort)
		}
	})

	t.Run("AcceptsMinimumLength", func(t *testing.T) {
		gen, err := NewGenerator(5)
		require.NoError(t, err)
		assert.Equal(t, 5, gen.Length())
	})
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("ProducesCodesFromUppercaseAlphabet", func(t *testing.T) {
		gen, err := NewGenerator(6)
		require.NoError(t, err)

		for range 50 {
			code, err := gen.Generate(ctx, neverExists)
			require.NoError(t, err)
			assert.Len(t, code, 6)
			for _, r := range code {
				assert.Contains(t, codeAlphabet, string(r))
			}
		}
	})

	t.Run("SkipsTakenCodes", func(t *testing.T) {
		gen, err := NewGenerator(6)
		require.NoError(t, err)

		calls := 0
		exists := func(ctx context.Context, code string) (bool, error) {
			calls++
			return calls <= 3, nil
		}

		code, err := gen.Generate(ctx, exists)
		require.NoError(t, err)
		assert.Len(t, code, 6)
		assert.Equal(t, 4, calls)
	})

	t.Run("FallsBackAfterExhaustingAttempts", func(t *testing.T) {
		gen, err := NewGenerator(6, WithUnixNow(func() int64 { return 1755867890 }))
		require.NoError(t, err)

		code, err := gen.Generate(ctx, alwaysExists)
		require.NoError(t, err)
		require.Len(t, code, 6)
		assert.Equal(t, "7890", code[:4])
		for _, r := range code[4:] {
			assert.Contains(t, fallbackAlphabet, string(r))
		}
	})

	t.Run("FallbackKeepsConfiguredLength", func(t *testing.T) {
		gen, err := NewGenerator(8, WithUnixNow(func() int64 { return 1755867890 }))
		require.NoError(t, err)

		code, err := gen.Generate(ctx, alwaysExists)
		require.NoError(t, err)
		require.Len(t, code, 8)
		assert.True(t, strings.HasPrefix(code, "7890"))
	})

	t.Run("PropagatesExistsErrors", func(t *testing.T) {
		gen, err := NewGenerator(6)
		require.NoError(t, err)

		boom := errors.New("db down")
		_, err = gen.Generate(ctx, func(ctx context.Context, code string) (bool, error) {
			return false, boom
		})
		assert.ErrorIs(t, err, boom)
	})
}
