package errx

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSentinel = errors.New("sentinel")

func TestWrap(t *testing.T) {
	err := Wrap(errSentinel, fs.ErrNotExist)
	assert.ErrorIs(t, err, errSentinel)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Equal(t, "sentinel: file does not exist", err.Error())
}

func TestWrap_NilCause(t *testing.T) {
	assert.Same(t, errSentinel, Wrap(errSentinel, nil))
}

func TestWith(t *testing.T) {
	err := With(errSentinel, ": %q is bad", "x")
	assert.ErrorIs(t, err, errSentinel)
	assert.Equal(t, `sentinel: "x" is bad`, err.Error())
}
