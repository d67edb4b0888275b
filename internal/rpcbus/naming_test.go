package rpcbus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"amqprpc/internal/broker"
)

func TestDefaultNamingConventionNamesDeriveFromBareTypeName(t *testing.T) {
	conv := DefaultNamingConvention{}
	reqType := typeOf[EchoRequest]()
	respType := typeOf[EchoResponse]()

	assert.Equal(t, "rpc.request.EchoRequest", conv.RequestExchange(reqType))
	assert.Equal(t, "EchoRequest", conv.RoutingKey(reqType))
	assert.Equal(t, "rpc.response.EchoResponse", conv.ResponseExchange(respType))
	assert.Equal(t, "", conv.ReturnQueue(respType))
	assert.Equal(t, "classic", conv.QueueType(reqType))
}

func TestUUIDGeneratorProducesDistinctIDs(t *testing.T) {
	gen := UUIDGenerator{}
	a := gen.NewID()
	b := gen.NewID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestDefaultDeliveryModeStrategyIsNonPersistent(t *testing.T) {
	strategy := DefaultDeliveryModeStrategy{}
	assert.Equal(t, broker.DeliveryNonPersistent, strategy.ModeFor(typeOf[EchoRequest]()))
}

func TestTypeNameSerializerMemoizesFullyQualifiedName(t *testing.T) {
	s := NewTypeNameSerializer(4)
	name := s.NameFor(typeOf[EchoResponse]())
	assert.Contains(t, name, "EchoResponse")
	assert.Equal(t, name, s.NameFor(typeOf[EchoResponse]()))
}
