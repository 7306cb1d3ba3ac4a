package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsLive(t *testing.T) {
	now := time.Now().UTC()

	t.Run("NilValidUntilNeverExpires", func(t *testing.T) {
		link := &ShortLink{}
		assert.True(t, link.IsLive(now))
	})

	t.Run("FutureDeadlineIsLive", func(t *testing.T) {
		future := now.Add(time.Hour)
		link := &ShortLink{ValidUntil: &future}
		assert.True(t, link.IsLive(now))
	})

	t.Run("PastDeadlineIsNotLive", func(t *testing.T) {
		past := now.Add(-time.Hour)
		link := &ShortLink{ValidUntil: &past}
		assert.False(t, link.IsLive(now))
	})

	t.Run("ExactDeadlineIsNotLive", func(t *testing.T) {
		link := &ShortLink{ValidUntil: &now}
		assert.False(t, link.IsLive(now))
	})
}
