package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscribePublishDeliversByExactType(t *testing.T) {
	bus := NewEventBus()
	var got ConnectionRecovered
	Subscribe(bus, func(e ConnectionRecovered) { got = e })

	Publish(bus, ConnectionRecovered{Channel: ChannelConsumer})
	assert.Equal(t, ChannelConsumer, got.Channel)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewEventBus()
	calls := 0
	id := Subscribe(bus, func(ConnectionRecovered) { calls++ })

	Publish(bus, ConnectionRecovered{})
	bus.Unsubscribe(id)
	Publish(bus, ConnectionRecovered{})

	assert.Equal(t, 1, calls)
}

func TestMultipleSubscribersAllReceive(t *testing.T) {
	bus := NewEventBus()
	var a, b int
	Subscribe(bus, func(ConnectionRecovered) { a++ })
	Subscribe(bus, func(ConnectionRecovered) { b++ })

	Publish(bus, ConnectionRecovered{})

	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}
