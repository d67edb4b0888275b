package rpcbus

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"amqprpc/internal/broker"
	"amqprpc/internal/logger"
)

type subscriptionEntry struct {
	queueName string
	consumer  broker.ConsumerHandle
}

// Registry is the Response Subscription Registry (spec §4.2): it lazily
// creates and caches one reply queue + consumer per RPC Key, serialized by
// a single mutex across the whole registry. Lookup is lock-free (a
// sync.Map read); only the miss path takes the mutex, the way
// hermes.Broker guards its services/workers maps with sync.RWMutex but
// only ever needs the write side once per key (broker.go
// handleWorkerReady).
type Registry struct {
	subs sync.Map // Fingerprint -> *subscriptionEntry
	mu   sync.Mutex

	client     broker.Client
	naming     NamingConvention
	serializer Serializer
	pending    *PendingTable
	logger     zerolog.Logger
}

func newRegistry(client broker.Client, naming NamingConvention, serializer Serializer, pending *PendingTable) *Registry {
	return &Registry{
		client:     client,
		naming:     naming,
		serializer: serializer,
		pending:    pending,
		logger:     logger.Component("rpcbus.registry"),
	}
}

// EnsureReplyQueue implements spec §4.2's algorithm: double-checked lookup
// under the registry mutex, declare-bind-consume exactly once per RPC Key.
func EnsureReplyQueue[TRequest, TResponse any](ctx context.Context, reg *Registry) (string, error) {
	key := fingerprintFor[TRequest, TResponse]()

	if v, ok := reg.subs.Load(key); ok {
		return v.(*subscriptionEntry).queueName, nil
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if v, ok := reg.subs.Load(key); ok {
		return v.(*subscriptionEntry).queueName, nil
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	respType := typeOf[TResponse]()

	queueName := reg.naming.ReturnQueue(respType)
	qi, err := reg.client.DeclareQueue(ctx, broker.QueueOptions{
		Name:       queueName,
		Durable:    false,
		Exclusive:  true,
		AutoDelete: true,
	})
	if err != nil {
		return "", &BrokerError{Cause: err}
	}
	actualName := qi.Name
	if actualName == "" {
		actualName = queueName
	}

	exchangeName := reg.naming.ResponseExchange(respType)
	if exchangeName != broker.DefaultExchange {
		if err := reg.client.DeclareExchange(ctx, exchangeName, broker.ExchangeDirect); err != nil {
			return "", &BrokerError{Cause: err}
		}
		if err := reg.client.Bind(ctx, exchangeName, actualName, actualName); err != nil {
			return "", &BrokerError{Cause: err}
		}
	}

	handler := func(_ context.Context, msg broker.Message) error {
		action, ok := reg.pending.TryRemove(msg.Properties.CorrelationID)
		if !ok {
			// Stale or already-timed-out correlation id: silently dropped
			// (spec §3 invariant).
			return nil
		}

		var value TResponse
		if err := reg.serializer.Unmarshal(msg.Body, &value); err != nil {
			reg.logger.Debug().
				Err(err).
				Str("correlation_id", msg.Properties.CorrelationID).
				Msg("dropping reply that does not decode as the expected response type")
			return err
		}

		action.OnSuccess(value, msg.Properties.Headers)
		return nil
	}

	consumer, err := reg.client.Consume(ctx, actualName, broker.ConsumeOptions{}, handler)
	if err != nil {
		return "", &BrokerError{Cause: err}
	}

	reg.subs.Store(key, &subscriptionEntry{queueName: actualName, consumer: consumer})
	return actualName, nil
}

// SnapshotAndClear drains every cached subscription and returns its
// consumer handles so the recovery listener can close them outside of the
// registry's own lock.
func (reg *Registry) SnapshotAndClear() []broker.ConsumerHandle {
	var handles []broker.ConsumerHandle
	reg.subs.Range(func(key, value any) bool {
		handles = append(handles, value.(*subscriptionEntry).consumer)
		reg.subs.Delete(key)
		return true
	})
	return handles
}

// Len reports the number of cached subscriptions. Approximate, for stats.
func (reg *Registry) Len() int {
	n := 0
	reg.subs.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
