package rpcbus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCancelledErrorIsErrCancelled(t *testing.T) {
	err := &CancelledError{Cause: errors.New("boom")}
	assert.True(t, errors.Is(err, ErrCancelled))
}

func TestConnectionLostErrorIsErrConnectionLost(t *testing.T) {
	err := &ConnectionLostError{}
	assert.True(t, errors.Is(err, ErrConnectionLost))
}

func TestResponderFaultMessage(t *testing.T) {
	err := &ResponderFault{Message: "went wrong"}
	assert.Contains(t, err.Error(), "went wrong")
}

func TestBrokerErrorUnwraps(t *testing.T) {
	cause := errors.New("dial failed")
	err := &BrokerError{Cause: cause}
	assert.ErrorIs(t, err, cause)
}
