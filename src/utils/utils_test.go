package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrDefault(t *testing.T) {
	assert.Equal(t, 5, OrDefault(0, 5))
	assert.Equal(t, 3, OrDefault(3, 5))
	assert.Equal(t, "fallback", OrDefault("", "fallback"))
}

func TestIntClamp(t *testing.T) {
	assert.Equal(t, 1, IntClamp(1, -10, 8))
	assert.Equal(t, 4, IntClamp(1, 4, 8))
	assert.Equal(t, 8, IntClamp(1, 100, 8))
}

func TestRecoverPanicAsError(t *testing.T) {
	doPanic := func() (err error) {
		defer RecoverPanicAsError(&err)
		panic(errors.New("oh no"))
	}
	err := doPanic()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "oh no")
}
