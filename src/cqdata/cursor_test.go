package cqdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	orig := Cursor{
		CreatedAt: time.Date(2024, 5, 12, 9, 30, 15, 123456000, time.UTC),
		ID:        4821,
	}

	decoded, err := DecodeCursor(orig.Encode())
	require.NoError(t, err)
	assert.True(t, orig.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, orig.ID, decoded.ID)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, garbage := range []string{
		"!!!not base64!!!",
		"aGVsbG8",       // "hello", no separator
		"MTIzOmFiYw",    // "123:abc", bad id
		"YWJjOjEyMw",    // "abc:123", bad timestamp
	} {
		_, err := DecodeCursor(garbage)
		assert.Error(t, err, "expected %q to be rejected", garbage)
	}
}

func TestCursorOrderIndependentOfInsertions(t *testing.T) {
	// A cursor taken at some (created_at, id) still points at the same
	// position after newer entries appear: its encoded form carries the
	// position itself, not an offset.
	older := Cursor{CreatedAt: time.UnixMicro(1000).UTC(), ID: 1}
	encoded := older.Encode()

	// "New entries" would have larger keys; the cursor is untouched.
	decoded, err := DecodeCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, older, decoded)
}
