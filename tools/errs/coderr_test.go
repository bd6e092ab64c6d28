package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDetailChainsIntoError(t *testing.T) {
	msg := ErrArgs.WithDetail("missing roomName").Error()
	assert.Equal(t, "1001 invalid argument missing roomName", msg)

	// the original stays untouched
	assert.Empty(t, ErrArgs.Detail)

	msg = ErrArgs.WithDetail("a").WithDetail("b").Error()
	assert.Equal(t, "1001 invalid argument a, b", msg)
}

func TestWrapKeepsCode(t *testing.T) {
	err := ErrUpstreamTimeout.WrapMsg("JoinRoom")
	require.Error(t, err)
	assert.True(t, ErrUpstreamTimeout.Is(err))
	assert.False(t, ErrArgs.Is(err))

	var ce *CodeError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 2001, ce.ECode())
}
