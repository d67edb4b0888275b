package rpcbus

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"amqprpc/internal/broker"
)

// completionResult is delivered exactly once to a request's completion
// sink: either a decoded reply value with its headers, or a terminal
// error from connection recovery.
type completionResult struct {
	value   any
	headers map[string]any
	err     error
}

// Request drives one outgoing request (spec §4.1): it allocates a
// correlation id, registers a pending completion, ensures a reply
// subscription exists, publishes, and awaits the result.
//
// Request cannot be a method because Go methods may not carry their own
// type parameters; it takes the Bus explicitly instead, the way
// EnsureReplyQueue does.
func Request[TRequest, TResponse any](ctx context.Context, bus *Bus, req TRequest, configure func(*RequestConfig)) (TResponse, error) {
	var zero TResponse

	reqType := typeOf[TRequest]()

	cfg := RequestConfig{
		Expiration: bus.config.DefaultTimeout,
	}
	if configure != nil {
		configure(&cfg)
	}

	effCtx := ctx
	var cancel context.CancelFunc
	if cfg.Expiration > 0 {
		effCtx, cancel = context.WithTimeout(ctx, cfg.Expiration)
	} else {
		effCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	correlationID := bus.idGen.NewID()

	done := make(chan completionResult, 1)
	var terminal atomic.Bool
	complete := func(res completionResult) {
		if terminal.CompareAndSwap(false, true) {
			done <- res
		}
	}

	bus.pending.Register(correlationID, ResponseAction{
		OnSuccess: func(value any, headers map[string]any) {
			complete(completionResult{value: value, headers: headers})
		},
		OnFailure: func(err error) {
			complete(completionResult{err: err})
		},
	})
	defer bus.pending.TryRemove(correlationID)

	replyQueue, err := EnsureReplyQueue[TRequest, TResponse](effCtx, bus.registry)
	if err != nil {
		return zero, err
	}

	body, err := bus.serializer.Marshal(req)
	if err != nil {
		return zero, err
	}

	exchangeName := bus.naming.RequestExchange(reqType)
	if err := bus.client.DeclareExchange(effCtx, exchangeName, broker.ExchangeDirect); err != nil {
		return zero, &BrokerError{Cause: err}
	}

	routingKey := cfg.RoutingKey
	if routingKey == "" {
		routingKey = bus.naming.RoutingKey(reqType)
	}

	msg := broker.Message{
		Body: body,
		Properties: broker.Properties{
			ReplyTo:       replyQueue,
			CorrelationID: correlationID,
			Priority:      cfg.Priority,
			Headers:       cfg.Headers,
			DeliveryMode:  bus.deliveryMode.ModeFor(reqType),
			Expiration:    expirationMillis(cfg.Expiration),
		},
	}

	if err := bus.client.Publish(effCtx, exchangeName, routingKey, cfg.Mandatory, cfg.PublisherConfirm, msg); err != nil {
		return zero, &BrokerError{Cause: err}
	}

	select {
	case res := <-done:
		if res.err != nil {
			return zero, res.err
		}
		if faulted(res.headers) {
			return zero, &ResponderFault{Message: faultMessage(res.headers)}
		}
		typed, ok := res.value.(TResponse)
		if !ok {
			return zero, fmt.Errorf("rpcbus: reply decoded as %T, want %T", res.value, zero)
		}
		return typed, nil
	case <-effCtx.Done():
		return zero, &CancelledError{Cause: effCtx.Err()}
	}
}

func expirationMillis(d time.Duration) *int64 {
	if d <= 0 {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}

func faulted(headers map[string]any) bool {
	if headers == nil {
		return false
	}
	v, ok := headers[broker.HeaderIsFaulted]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func faultMessage(headers map[string]any) string {
	v, ok := headers[broker.HeaderExceptionMessage]
	if !ok {
		return DefaultExceptionMessage
	}
	switch m := v.(type) {
	case []byte:
		if len(m) == 0 {
			return DefaultExceptionMessage
		}
		return string(m)
	case string:
		if m == "" {
			return DefaultExceptionMessage
		}
		return m
	default:
		return DefaultExceptionMessage
	}
}
