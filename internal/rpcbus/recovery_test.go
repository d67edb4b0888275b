package rpcbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amqprpc/internal/broker"
)

func TestRecoveryListenerIgnoresProducerChannel(t *testing.T) {
	events := broker.NewEventBus()
	pending := &PendingTable{}
	var invoked bool
	pending.Register("corr", ResponseAction{OnFailure: func(error) { invoked = true }})

	client := noopClientForRegistry{events: events}
	reg := newRegistry(client, DefaultNamingConvention{}, JSONSerializer{}, pending)

	rl := newRecoveryListener(events, pending, reg)
	defer rl.Close()

	broker.Publish(events, broker.ConnectionRecovered{Channel: broker.ChannelProducer})

	assert.False(t, invoked, "a producer-channel recovery must not invalidate pending requests")
	_, ok := pending.TryRemove("corr")
	assert.True(t, ok, "the pending entry must still be present")
}

func TestRecoveryListenerInvalidatesOnConsumerChannel(t *testing.T) {
	events := broker.NewEventBus()
	pending := &PendingTable{}

	var gotErr error
	pending.Register("corr", ResponseAction{OnFailure: func(err error) { gotErr = err }})

	client := noopClientForRegistry{events: events}
	reg := newRegistry(client, DefaultNamingConvention{}, JSONSerializer{}, pending)

	rl := newRecoveryListener(events, pending, reg)
	defer rl.Close()

	broker.Publish(events, broker.ConnectionRecovered{Channel: broker.ChannelConsumer})

	require.Error(t, gotErr)
	assert.ErrorIs(t, gotErr, ErrConnectionLost)
}

// noopClientForRegistry is a minimal broker.Client satisfying Registry's
// dependency without standing up a full memory.Broker; the recovery tests
// above never call any of its methods.
type noopClientForRegistry struct {
	events *broker.EventBus
}

func (noopClientForRegistry) DeclareExchange(context.Context, string, broker.ExchangeKind) error {
	return nil
}
func (noopClientForRegistry) DeclareQueue(context.Context, broker.QueueOptions) (broker.QueueInfo, error) {
	return broker.QueueInfo{}, nil
}
func (noopClientForRegistry) Bind(context.Context, string, string, string) error { return nil }
func (noopClientForRegistry) Publish(context.Context, string, string, bool, bool, broker.Message) error {
	return nil
}
func (noopClientForRegistry) Consume(context.Context, string, broker.ConsumeOptions, broker.Handler) (broker.ConsumerHandle, error) {
	return nil, nil
}
func (c noopClientForRegistry) Events() *broker.EventBus { return c.events }
