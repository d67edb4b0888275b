package rpcbus

import (
	"time"

	"amqprpc/internal/broker"
)

// RequestConfig configures one outgoing request. Seeded with bus-wide
// defaults before the caller's configure callback runs (spec §4.1 step 1).
type RequestConfig struct {
	// RoutingKey overrides the naming convention's routing key for the
	// request type. Empty means "use the convention".
	RoutingKey string

	// Expiration overrides the bus-wide default request timeout. Zero
	// means "no expiration" (infinite wait, bounded only by the caller's
	// context).
	Expiration time.Duration

	Priority         uint8
	Headers          map[string]any
	Mandatory        bool
	PublisherConfirm bool
}

// ResponderConfig configures one responder host. Seeded with the bus
// prefetch count and the queue-type naming convention before the caller's
// configure callback runs (spec §4.4 step 1).
type ResponderConfig struct {
	// QueueName overrides both the declared queue's name and the routing
	// key bound to it. Empty means "use the routing-key convention".
	QueueName string

	Durable   bool
	Prefetch  int
	Arguments map[string]any
}

// SubscriptionHandle is returned by Respond. Closing it stops the consumer
// but leaves the request queue and exchange in place (spec §4.4).
type SubscriptionHandle interface {
	Close() error
}

type subscriptionHandle struct {
	consumer broker.ConsumerHandle
}

func (s *subscriptionHandle) Close() error { return s.consumer.Close() }

// ResponseAction is the type-erased pair of callbacks the Pending-Request
// Table stores per correlation id (spec §4.3).
type ResponseAction struct {
	// OnSuccess is invoked with the decoded reply value and its headers
	// when a matching reply arrives.
	OnSuccess func(value any, headers map[string]any)
	// OnFailure is invoked when the request is invalidated by connection
	// recovery (§4.5); cancellation/timeout is handled by the dispatcher
	// directly via context, not through this callback.
	OnFailure func(err error)
}

// Stats summarizes live engine state for operational visibility (§C of
// SPEC_FULL.md — not part of the original spec, added as an ambient
// observability surface).
type Stats struct {
	Pending       int
	Subscriptions int
}
