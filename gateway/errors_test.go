package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestErrorString(t *testing.T) {
	err := &Error{Kind: KindTimeout, Op: "unified.cell", Message: "slow", Err: errors.New("i/o timeout")}
	assert.Equal(t, "unified.cell: timeout: slow: i/o timeout", err.Error())

	err = &Error{Kind: KindNoGatewayFound, Op: "select", Message: "none", URLs: []string{"a", "b"}}
	assert.Equal(t, "select: no_gateway_found: none (tried a, b)", err.Error())

	assert.Equal(t, "unknown", (&Error{}).Error())
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("poll: %w", &Error{Kind: KindDecode})
	assert.Equal(t, KindDecode, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindDecode))
	assert.False(t, IsKind(nil, KindUnknown))

	assert.Equal(t, KindCanceled, KindOf(context.Canceled))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, "too_many_attempts", KindTooManyAttempts.String())
	assert.Equal(t, "unknown", ErrorKind(99).String())
}

func TestStatusKind(t *testing.T) {
	tests := map[int]ErrorKind{
		http.StatusUnauthorized:        KindAuthentication,
		http.StatusTooManyRequests:     KindTooManyAttempts,
		http.StatusRequestTimeout:      KindTimeout,
		http.StatusGatewayTimeout:      KindTimeout,
		http.StatusForbidden:           KindHTTPStatus,
		http.StatusInternalServerError: KindHTTPStatus,
	}
	for code, want := range tests {
		assert.Equal(t, want, statusKind(code), code)
	}
}

func TestErrorChannel(t *testing.T) {
	c := NewErrorChannel(zap.NewNop())

	var first, second []error
	unsubFirst := c.Subscribe(func(err error) { first = append(first, err) })
	c.Subscribe(func(error) { panic("handler bug") })
	c.Subscribe(func(err error) { second = append(second, err) })

	e1 := errors.New("one")
	c.Publish(e1)
	c.Publish(nil)
	assert.Equal(t, []error{e1}, first)
	assert.Equal(t, []error{e1}, second)
	assert.Equal(t, e1, c.Last())

	unsubFirst()
	e2 := errors.New("two")
	c.Publish(e2)
	assert.Len(t, first, 1)
	assert.Equal(t, []error{e1, e2}, second)
	assert.Equal(t, e2, c.Last())
}

func TestNilErrorChannel(t *testing.T) {
	var c *ErrorChannel
	require.NotPanics(t, func() { c.Publish(errors.New("dropped")) })
	assert.Nil(t, c.Last())
}
