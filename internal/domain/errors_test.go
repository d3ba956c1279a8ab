package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindStatusMapping(t *testing.T) {
	assert.Equal(t, StatusCritical, KindConnectionFailed.Status())
	assert.Equal(t, StatusCritical, KindTimeout.Status())
	assert.Equal(t, StatusUnknown, KindInvalidConfig.Status())
	assert.Equal(t, StatusUnknown, KindUnexpectedResponse.Status())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), KindTimeout},
		{"dns", &net.DNSError{Err: "no such host", Name: "nope.invalid"}, KindConnectionFailed},
		{"refused", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, KindConnectionFailed},
		{"plain", errors.New("bad json"), KindUnexpectedResponse},
		{"config", InvalidConfig("missing %s", "host"), KindInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestStatusOverride(t *testing.T) {
	err := ConnectionFailed("redis ping", errors.New("refused")).WithStatus(StatusWarning)
	assert.Equal(t, StatusWarning, StatusOf(err))
	assert.Equal(t, StatusWarning, StatusOf(fmt.Errorf("wrapped: %w", err)))
	assert.Equal(t, "redis ping: refused", err.Error())
}

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify("op", nil))

	err := Classify("fetch", context.DeadlineExceeded)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Equal(t, StatusCritical, StatusOf(err))

	orig := InvalidConfig("no key")
	assert.Same(t, orig, Classify("fetch", orig))
}
