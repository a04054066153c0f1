package errs

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsUnwraps(t *testing.T) {
	base := errors.New("missing")
	err := Wrap(ProductNotFound, "findProduct", base)

	assert.True(t, Is(err, ProductNotFound))
	assert.False(t, Is(err, TagNotRecognized))
	assert.Equal(t, base, errors.Cause(err))
}

func TestNewFormats(t *testing.T) {
	err := New(BadVersionExpr, "parsePredicate", "unexpected operator %q", "=")
	assert.Contains(t, err.Error(), "BadVersionExpr")
	assert.Contains(t, err.Error(), "parsePredicate")
}

func TestWrapNilIsNil(t *testing.T) {
	assert.Nil(t, Wrap(IOError, "op", nil))
}
