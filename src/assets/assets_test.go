package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "report-final.v2.txt", SanitizeFilename("report-final.v2.txt"))
	assert.Equal(t, "cool_filename.txt", SanitizeFilename("cool filename.txt"))
	assert.Equal(t, "_hi_doggy_", SanitizeFilename("😍hi doggy🐶"))
	assert.Equal(t, "newlines_are_not_legal", SanitizeFilename("newlines\nare\nnot legal"))
	assert.Equal(t, "unnamed", SanitizeFilename(""))
}

func TestAssetKey(t *testing.T) {
	assert.Equal(t, "abc-123/file.png", AssetKey("abc-123", "file.png"))
}
