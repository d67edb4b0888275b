package rpcbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amqprpc/internal/broker/memory"
)

func TestRespondAppliesConfigureOverrides(t *testing.T) {
	client := memory.New()
	bus := New(client, WithConfig(Config{DefaultTimeout: time.Second, DefaultPrefetch: 4}))
	defer bus.Dispose()

	var gotQueueName string
	handle, err := Respond(context.Background(), bus, func(_ context.Context, req EchoRequest, _ map[string]any) (EchoResponse, error) {
		return EchoResponse{Message: req.Message}, nil
	}, func(cfg *ResponderConfig) {
		cfg.QueueName = "custom.echo.queue"
		gotQueueName = cfg.QueueName
	})
	require.NoError(t, err)
	defer handle.Close()

	assert.Equal(t, "custom.echo.queue", gotQueueName)

	resp, err := Request[EchoRequest, EchoResponse](context.Background(), bus, EchoRequest{Message: "via custom queue"}, func(cfg *RequestConfig) {
		cfg.RoutingKey = "custom.echo.queue"
	})
	require.NoError(t, err)
	assert.Equal(t, "via custom queue", resp.Message)
}

func TestRespondHandleCloseStopsConsumer(t *testing.T) {
	bus, _ := newTestBus(t)
	ctx := context.Background()

	handle, err := Respond(ctx, bus, func(_ context.Context, req EchoRequest, _ map[string]any) (EchoResponse, error) {
		return EchoResponse{Message: req.Message}, nil
	}, nil)
	require.NoError(t, err)
	require.NoError(t, handle.Close())

	_, err = Request[EchoRequest, EchoResponse](ctx, bus, EchoRequest{Message: "nobody listening now"}, func(cfg *RequestConfig) {
		cfg.Expiration = 100 * time.Millisecond
	})
	assert.Error(t, err)
}
