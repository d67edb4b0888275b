package rpcbus

import (
	"reflect"

	"github.com/google/uuid"

	"amqprpc/internal/broker"
)

// NamingConvention is the external collaborator (spec §6) mapping payload
// types to broker names. It is pluggable; DefaultNamingConvention below is
// one reasonable scheme.
type NamingConvention interface {
	RequestExchange(reqType reflect.Type) string
	RoutingKey(reqType reflect.Type) string
	ResponseExchange(respType reflect.Type) string
	// ReturnQueue names the reply queue for respType. An empty string asks
	// the broker for a server-assigned name.
	ReturnQueue(respType reflect.Type) string
	QueueType(reqType reflect.Type) string
}

// DefaultNamingConvention derives broker names from the payload type's bare
// name. Reply queues always get a server-assigned name (anonymous,
// exclusive, auto-delete), and the response exchange is never the broker
// default, so the §9 "default exchange" open question never triggers for
// this convention — only a custom one exercises that path (see
// internal/rpcbus/subscriptions_test.go).
type DefaultNamingConvention struct{}

func (DefaultNamingConvention) RequestExchange(reqType reflect.Type) string {
	return "rpc.request." + typeName(reqType)
}

func (DefaultNamingConvention) RoutingKey(reqType reflect.Type) string {
	return typeName(reqType)
}

func (DefaultNamingConvention) ResponseExchange(respType reflect.Type) string {
	return "rpc.response." + typeName(respType)
}

func (DefaultNamingConvention) ReturnQueue(respType reflect.Type) string {
	return ""
}

func (DefaultNamingConvention) QueueType(reqType reflect.Type) string {
	return "classic"
}

func typeName(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

// IDGenerator is the external correlation-id generator (spec §6): a pure
// function returning a string unique for the process lifetime.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator backs correlation ids with github.com/google/uuid, the
// teacher's own id-generation dependency (hermes.GenerateMessageID used a
// timestamp instead; a random UUID is the stronger uniqueness guarantee
// the spec asks for).
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }

// DeliveryModeStrategy maps a request type to persistent or non-persistent
// delivery (spec §6).
type DeliveryModeStrategy interface {
	ModeFor(reqType reflect.Type) broker.DeliveryMode
}

// DefaultDeliveryModeStrategy sends every request non-persistent, matching
// the reply-side default and the spec's general "no durability guarantee"
// posture for RPC traffic.
type DefaultDeliveryModeStrategy struct{}

func (DefaultDeliveryModeStrategy) ModeFor(reflect.Type) broker.DeliveryMode {
	return broker.DeliveryNonPersistent
}
