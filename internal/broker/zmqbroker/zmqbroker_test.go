package zmqbroker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amqprpc/internal/broker"
)

// These tests exercise the local topology bookkeeping (exchanges, queues,
// bindings, resolveTargetsLocked) directly, without a running ZMQ socket,
// since Start requires a live peer to connect to.

func TestDeclareQueueGeneratesNameWhenEmpty(t *testing.T) {
	c := New("tcp://127.0.0.1:0", "test-client")
	ctx := context.Background()

	qi1, err := c.DeclareQueue(ctx, broker.QueueOptions{})
	require.NoError(t, err)
	qi2, err := c.DeclareQueue(ctx, broker.QueueOptions{})
	require.NoError(t, err)

	assert.NotEqual(t, qi1.Name, qi2.Name)
}

func TestDeclareExchangeRejectsKindMismatch(t *testing.T) {
	c := New("tcp://127.0.0.1:0", "test-client")
	ctx := context.Background()

	require.NoError(t, c.DeclareExchange(ctx, "rpc.request.Foo", broker.ExchangeDirect))
	assert.Error(t, c.DeclareExchange(ctx, "rpc.request.Foo", broker.ExchangeTopic))
}

func TestBindRequiresKnownExchangeAndQueue(t *testing.T) {
	c := New("tcp://127.0.0.1:0", "test-client")
	ctx := context.Background()

	assert.Error(t, c.Bind(ctx, "unknown.exchange", "unknown.queue", "key"))

	require.NoError(t, c.DeclareExchange(ctx, "rpc.response.Foo", broker.ExchangeDirect))
	qi, err := c.DeclareQueue(ctx, broker.QueueOptions{Name: "reply-queue"})
	require.NoError(t, err)
	assert.NoError(t, c.Bind(ctx, "rpc.response.Foo", qi.Name, qi.Name))
}

func TestResolveTargetsLockedDefaultExchangeRoutesByName(t *testing.T) {
	c := New("tcp://127.0.0.1:0", "test-client")
	ctx := context.Background()

	_, err := c.DeclareQueue(ctx, broker.QueueOptions{Name: "direct-queue"})
	require.NoError(t, err)

	targets := c.resolveTargetsLocked(broker.DefaultExchange, "direct-queue")
	require.Len(t, targets, 1)
	assert.Equal(t, "direct-queue", targets[0].name)
}

func TestResolveTargetsLockedBoundExchangeFansOut(t *testing.T) {
	c := New("tcp://127.0.0.1:0", "test-client")
	ctx := context.Background()

	require.NoError(t, c.DeclareExchange(ctx, "fanout.ex", broker.ExchangeFanout))
	q1, err := c.DeclareQueue(ctx, broker.QueueOptions{Name: "q1"})
	require.NoError(t, err)
	q2, err := c.DeclareQueue(ctx, broker.QueueOptions{Name: "q2"})
	require.NoError(t, err)

	require.NoError(t, c.Bind(ctx, "fanout.ex", q1.Name, "rk"))
	require.NoError(t, c.Bind(ctx, "fanout.ex", q2.Name, "rk"))

	targets := c.resolveTargetsLocked("fanout.ex", "rk")
	assert.Len(t, targets, 2)
}
