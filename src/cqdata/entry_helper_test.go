package cqdata

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateString(t *testing.T) {
	t.Run("short strings pass through", func(t *testing.T) {
		assert.Equal(t, "hello", truncateString("hello", 100))
		assert.Equal(t, "hello", truncateString("hello", 5))
	})

	t.Run("ascii cuts exactly at the limit", func(t *testing.T) {
		assert.Equal(t, "hell", truncateString("hello", 4))
	})

	t.Run("never splits a multibyte rune", func(t *testing.T) {
		// "é" is two bytes, "試" is three, "🎉" is four. Every possible cut
		// point must still yield valid UTF-8.
		s := "aé試🎉z"
		for max := 0; max <= len(s); max++ {
			out := truncateString(s, max)
			assert.True(t, utf8.ValidString(out), "cut at %d produced invalid UTF-8: %q", max, out)
			assert.LessOrEqual(t, len(out), max)
			assert.True(t, strings.HasPrefix(s, out))
		}
	})

	t.Run("backs off to the rune start", func(t *testing.T) {
		// Cutting "🎉🎉" mid-emoji drops the whole rune.
		assert.Equal(t, "🎉", truncateString("🎉🎉", 7))
		assert.Equal(t, "🎉", truncateString("🎉🎉", 4))
	})
}
