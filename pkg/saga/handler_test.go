package saga

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermanentAndTransientFailure(t *testing.T) {
	cause := errors.New("boom")

	assert.True(t, IsPermanent(PermanentFailure(cause)))
	assert.False(t, IsPermanent(TransientFailure(cause)))
	assert.False(t, IsPermanent(cause), "a plain error is never classified permanent")
}

func TestStepErrorUnwraps(t *testing.T) {
	cause := errors.New("boom")
	wrapped := PermanentFailure(cause)
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "boom", wrapped.Error())
}
