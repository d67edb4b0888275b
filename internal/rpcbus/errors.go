package rpcbus

import (
	"errors"
	"fmt"
)

// DefaultExceptionMessage is used when a fault reply carries no (or an
// empty) ExceptionMessage header (spec §7).
const DefaultExceptionMessage = "The exception message has not been specified."

// Sentinel errors identifying the taxonomy from spec §7. Concrete error
// values implement Is(target error) bool against these so callers can use
// errors.Is without caring about the wrapping type.
var (
	ErrCancelled      = errors.New("rpcbus: cancelled")
	ErrConnectionLost = errors.New("rpcbus: connection lost")
)

// CancelledError is returned when the outer cancellation token fires or the
// request's expiration elapses first. Cause is the context error that
// triggered it (context.Canceled or context.DeadlineExceeded).
type CancelledError struct {
	Cause error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("rpcbus: request cancelled: %v", e.Cause)
}

func (e *CancelledError) Unwrap() error { return e.Cause }

func (e *CancelledError) Is(target error) bool { return target == ErrCancelled }

// ConnectionLostError is delivered to every pending request when the
// broker's consumer channel is recovered mid-flight (spec §4.5).
type ConnectionLostError struct{}

func (e *ConnectionLostError) Error() string {
	return "rpcbus: connection lost, pending request invalidated by recovery"
}

func (e *ConnectionLostError) Is(target error) bool { return target == ErrConnectionLost }

// ResponderFault is returned when a successful round-trip carries a reply
// with IsFaulted=true. Message is the decoded ExceptionMessage header.
type ResponderFault struct {
	Message string
}

func (e *ResponderFault) Error() string {
	return fmt.Sprintf("rpcbus: responder fault: %s", e.Message)
}

// ArgumentOutOfRangeError is raised at responder setup when the response
// type's serialized name exceeds the broker's 255-byte header limit.
type ArgumentOutOfRangeError struct {
	Argument string
	Detail   string
}

func (e *ArgumentOutOfRangeError) Error() string {
	return fmt.Sprintf("rpcbus: argument %q out of range: %s", e.Argument, e.Detail)
}

// BrokerError wraps an error returned directly by the broker client.
// Propagation policy (§7) is to surface these unaltered; this type exists
// so callers who want to distinguish "the broker said no" from the rest of
// the taxonomy can do so with errors.As.
type BrokerError struct {
	Cause error
}

func (e *BrokerError) Error() string { return fmt.Sprintf("rpcbus: broker error: %v", e.Cause) }
func (e *BrokerError) Unwrap() error  { return e.Cause }
