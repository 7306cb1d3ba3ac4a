// Package codegen produces unique short codes for links
package codegen

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// codeAlphabet is the alphabet for regular short codes (36 symbols)
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// fallbackAlphabet is the wider alphabet used for the random tail of
	// timestamp-prefixed fallback codes
	fallbackAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// maxAttempts bounds random draws before falling back to a composite code
	maxAttempts = 10

	// fallbackTimestampDigits is how many trailing unix-time digits prefix a fallback code
	fallbackTimestampDigits = 4
)

// ErrCodeLengthTooShort is returned by NewGenerator when the configured code
// length cannot accommodate the timestamp fallback.
var ErrCodeLengthTooShort = fmt.Errorf("code length must be at least %d", fallbackTimestampDigits+1)

var fallbackCodesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "short_code_fallbacks_total",
	Help: "Number of short codes produced via the timestamp fallback after exhausting random attempts",
})

// ExistsFunc reports whether a candidate code is already reserved.
// Codes are reserved permanently once issued, so the check must cover
// expired and deleted records too.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// Generator draws short codes from a fixed alphabet with collision
// avoidance and a deterministic timestamp fallback. It performs no
// persistence itself.
type Generator struct {
	length int
	now    func() int64
}

// Option configures a Generator.
type Option func(*Generator)

// WithUnixNow overrides the unix-time source used for fallback codes.
func WithUnixNow(now func() int64) Option {
	return func(g *Generator) { g.now = now }
}

// NewGenerator creates a generator for codes of the given length.
// Lengths below five are rejected: the fallback formula prefixes four
// timestamp digits and must leave room for at least one random character.
func NewGenerator(length int, opts ...Option) (*Generator, error) {
	if length <= fallbackTimestampDigits {
		return nil, ErrCodeLengthTooShort
	}
	g := &Generator{length: length}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Length returns the configured length for regular codes.
func (g *Generator) Length() int { return g.length }

// Generate returns a code not yet reserved according to exists.
// Up to maxAttempts uniform draws from A-Z0-9 are checked; when all of
// them collide the composite fallback is returned without a further
// uniqueness check, which callers must tolerate (its alphabet and
// distribution differ from regular codes).
func (g *Generator) Generate(ctx context.Context, exists ExistsFunc) (string, error) {
	for range maxAttempts {
		candidate, err := randomString(codeAlphabet, g.length)
		if err != nil {
			return "", fmt.Errorf("failed to draw candidate code: %w", err)
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check code uniqueness: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}

	fallbackCodesTotal.Inc()
	return g.fallback()
}

// fallback builds the composite code: the last four digits of the
// current unix timestamp followed by length-4 random alphanumerics.
func (g *Generator) fallback() (string, error) {
	var unix int64
	if g.now != nil {
		unix = g.now()
	} else {
		unix = unixNow()
	}
	ts := fmt.Sprintf("%d", unix)
	if len(ts) > fallbackTimestampDigits {
		ts = ts[len(ts)-fallbackTimestampDigits:]
	}
	tail, err := randomString(fallbackAlphabet, g.length-fallbackTimestampDigits)
	if err != nil {
		return "", fmt.Errorf("failed to draw fallback code tail: %w", err)
	}
	return ts + tail, nil
}

func unixNow() int64 { return time.Now().Unix() }

func randomString(alphabet string, n int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = alphabet[idx.Int64()]
	}
	return string(buf), nil
}
