package parsing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntryMarkdown(t *testing.T) {
	t.Run("paragraphs and emphasis", func(t *testing.T) {
		html := ParseMarkdown("Hello *there*.", EntryMarkdown)
		assert.Contains(t, html, "<p>")
		assert.Contains(t, html, "<em>there</em>")
	})
	t.Run("autolinks bare urls", func(t *testing.T) {
		html := ParseMarkdown("see https://example.com/docs for details", EntryMarkdown)
		assert.Contains(t, html, `<a href="https://example.com/docs"`)
	})
	t.Run("strikethrough via gfm", func(t *testing.T) {
		html := ParseMarkdown("~~nope~~", EntryMarkdown)
		assert.Contains(t, html, "<del>nope</del>")
	})
}

func TestPlaintextMarkdown(t *testing.T) {
	t.Run("strips markup", func(t *testing.T) {
		text := ParseMarkdown("Hello *there*, [friend](https://example.com).", PlaintextMarkdown)
		assert.NotContains(t, text, "<")
		assert.Contains(t, text, "Hello")
		assert.Contains(t, text, "there")
		assert.Contains(t, text, "friend")
	})
	t.Run("collapses soft line breaks", func(t *testing.T) {
		text := ParseMarkdown("one\ntwo", PlaintextMarkdown)
		assert.Contains(t, text, "one two")
	})
}
