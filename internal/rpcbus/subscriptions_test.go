package rpcbus

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amqprpc/internal/broker"
	"amqprpc/internal/broker/memory"
)

// defaultExchangeConvention is a NamingConvention that actually routes reply
// queues through broker.DefaultExchange, exercising the branch
// DefaultNamingConvention never triggers (spec §9 open question).
type defaultExchangeConvention struct{ DefaultNamingConvention }

func (defaultExchangeConvention) ResponseExchange(reflect.Type) string {
	return broker.DefaultExchange
}

func TestEnsureReplyQueueIsCalledOnceAcrossConcurrentCallers(t *testing.T) {
	client := memory.New()
	pending := &PendingTable{}
	reg := newRegistry(client, DefaultNamingConvention{}, JSONSerializer{}, pending)
	ctx := context.Background()

	const n = 50
	results := make(chan string, n)
	for i := 0; i < n; i++ {
		go func() {
			name, err := EnsureReplyQueue[EchoRequest, EchoResponse](ctx, reg)
			require.NoError(t, err)
			results <- name
		}()
	}

	first := <-results
	for i := 1; i < n; i++ {
		assert.Equal(t, first, <-results)
	}
	assert.Equal(t, 1, reg.Len())
}

func TestEnsureReplyQueueSkipsExchangeDeclareForDefaultExchange(t *testing.T) {
	client := memory.New()
	pending := &PendingTable{}
	reg := newRegistry(client, defaultExchangeConvention{}, JSONSerializer{}, pending)
	ctx := context.Background()

	name, err := EnsureReplyQueue[EchoRequest, EchoResponse](ctx, reg)
	require.NoError(t, err)
	assert.NotEmpty(t, name)
	assert.Equal(t, 0, client.Stats().ExchangeDeclares)
}
