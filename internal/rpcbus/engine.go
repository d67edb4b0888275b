// Package rpcbus is the RPC correlation and subscription engine: for each
// distinct response payload type it multiplexes one private reply queue
// over many concurrent outstanding requests, for each distinct request
// payload type it declares the matching request topology and drives a
// user-supplied responder, and it preserves both invariants across
// transient broker connection loss and recovery.
//
// The engine is intended to be a process-wide singleton per logical bus
// (spec §9); construct one Bus per broker connection and share it.
package rpcbus

import (
	"time"

	"github.com/rs/zerolog"

	"amqprpc/internal/broker"
	"amqprpc/internal/logger"
)

// Config holds the bus-wide defaults the spec's external "configuration
// object" collaborator (§1, §6) is assumed to supply.
type Config struct {
	// DefaultTimeout seeds RequestConfig.Expiration for every request that
	// doesn't override it.
	DefaultTimeout time.Duration
	// DefaultPrefetch seeds ResponderConfig.Prefetch for every responder
	// that doesn't override it.
	DefaultPrefetch int
}

// DefaultConfig returns reasonable bus-wide defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout:  30 * time.Second,
		DefaultPrefetch: 16,
	}
}

// Bus wires together the five components (A-E) against one broker.Client.
type Bus struct {
	client       broker.Client
	naming       NamingConvention
	idGen        IDGenerator
	deliveryMode DeliveryModeStrategy
	serializer   Serializer
	typeNames    *TypeNameSerializer
	config       Config
	logger       zerolog.Logger

	pending  *PendingTable
	registry *Registry
	recovery *RecoveryListener
}

// Option customizes a Bus at construction time.
type Option func(*Bus)

func WithNamingConvention(n NamingConvention) Option {
	return func(b *Bus) { b.naming = n }
}

func WithIDGenerator(g IDGenerator) Option {
	return func(b *Bus) { b.idGen = g }
}

func WithDeliveryModeStrategy(s DeliveryModeStrategy) Option {
	return func(b *Bus) { b.deliveryMode = s }
}

func WithSerializer(s Serializer) Option {
	return func(b *Bus) { b.serializer = s }
}

func WithConfig(cfg Config) Option {
	return func(b *Bus) { b.config = cfg }
}

// New constructs a Bus against client, wiring the Recovery Listener (§4.5)
// to the client's event bus immediately.
func New(client broker.Client, opts ...Option) *Bus {
	bus := &Bus{
		client:       client,
		naming:       DefaultNamingConvention{},
		idGen:        UUIDGenerator{},
		deliveryMode: DefaultDeliveryModeStrategy{},
		serializer:   JSONSerializer{},
		typeNames:    NewTypeNameSerializer(512),
		config:       DefaultConfig(),
		logger:       logger.Component("rpcbus"),
		pending:      &PendingTable{},
	}
	for _, opt := range opts {
		opt(bus)
	}

	bus.registry = newRegistry(bus.client, bus.naming, bus.serializer, bus.pending)
	bus.recovery = newRecoveryListener(bus.client.Events(), bus.pending, bus.registry)

	return bus
}

// Stats reports live pending-request and subscription counts for
// operational visibility.
func (b *Bus) Stats() Stats {
	return Stats{
		Pending:       b.pending.Len(),
		Subscriptions: b.registry.Len(),
	}
}

// Dispose releases the event subscription before closing every remaining
// cached subscription handle, so a concurrent recovery callback cannot
// race this teardown (spec §9).
func (b *Bus) Dispose() {
	b.recovery.Close()
	for _, handle := range b.registry.SnapshotAndClear() {
		if handle == nil {
			continue
		}
		if err := handle.Close(); err != nil {
			b.logger.Warn().Err(err).Msg("rpcbus: failed to close subscription consumer during dispose")
		}
	}
}
