// Package memory is an in-process broker.Client: exchanges, queues and
// bindings are plain Go maps instead of a wire protocol. It backs the
// rpcbus engine's tests and is a reasonable embedded default for a single
// process that wants RPC semantics without a real broker.
//
// Grounded on hermes.Broker's services/workers bookkeeping (broker.go in
// the teacher), generalized from ZMQ-identity routing to AMQP exchange/
// queue/binding routing.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"amqprpc/internal/broker"
	"amqprpc/internal/logger"
)

type binding struct {
	queue      string
	routingKey string
}

type queue struct {
	mu       sync.Mutex
	name     string
	consumer broker.Handler
	declares int
}

// Broker is an in-memory broker.Client.
type Broker struct {
	mu        sync.RWMutex
	exchanges map[string]broker.ExchangeKind
	queues    map[string]*queue
	bindings  map[string][]binding // exchange -> bindings
	events    *broker.EventBus
	logger    zerolog.Logger

	genSeq int

	// call counters, exposed for the "at most one queue declared / one
	// consumer started per RPC key" testable property (spec §8).
	exchangeDeclares int
	queueDeclares    int
	consumeCalls     int
}

// New constructs an empty in-memory broker.
func New() *Broker {
	return &Broker{
		exchanges: make(map[string]broker.ExchangeKind),
		queues:    make(map[string]*queue),
		bindings:  make(map[string][]binding),
		events:    broker.NewEventBus(),
		logger:    logger.Component("broker.memory"),
	}
}

func (b *Broker) Events() *broker.EventBus { return b.events }

// Stats snapshots the declare/consume counters.
type Stats struct {
	ExchangeDeclares int
	QueueDeclares    int
	ConsumeCalls     int
}

func (b *Broker) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Stats{
		ExchangeDeclares: b.exchangeDeclares,
		QueueDeclares:    b.queueDeclares,
		ConsumeCalls:     b.consumeCalls,
	}
}

func (b *Broker) DeclareExchange(ctx context.Context, name string, kind broker.ExchangeKind) error {
	if name == broker.DefaultExchange {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.exchangeDeclares++
	if existing, ok := b.exchanges[name]; ok && existing != kind {
		return fmt.Errorf("exchange %q already declared as %q, cannot redeclare as %q", name, existing, kind)
	}
	b.exchanges[name] = kind
	return nil
}

func (b *Broker) DeclareQueue(ctx context.Context, opts broker.QueueOptions) (broker.QueueInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	name := opts.Name
	if name == "" {
		b.genSeq++
		name = fmt.Sprintf("amq.gen-%d", b.genSeq)
	}

	b.queueDeclares++
	q, exists := b.queues[name]
	if !exists {
		q = &queue{name: name}
		b.queues[name] = q
	}
	q.declares++

	return broker.QueueInfo{Name: name}, nil
}

func (b *Broker) Bind(ctx context.Context, exchange, queueName, routingKey string) error {
	if exchange == broker.DefaultExchange {
		// Every queue is implicitly bound to the default exchange under
		// its own name; an explicit bind here would be a caller bug but
		// is harmless to accept as a no-op.
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.queues[queueName]; !ok {
		return fmt.Errorf("bind: unknown queue %q", queueName)
	}
	if _, ok := b.exchanges[exchange]; !ok {
		return fmt.Errorf("bind: unknown exchange %q", exchange)
	}

	b.bindings[exchange] = append(b.bindings[exchange], binding{queue: queueName, routingKey: routingKey})
	return nil
}

func (b *Broker) Consume(ctx context.Context, queueName string, opts broker.ConsumeOptions, handler broker.Handler) (broker.ConsumerHandle, error) {
	b.mu.Lock()
	q, ok := b.queues[queueName]
	if !ok {
		b.mu.Unlock()
		return nil, fmt.Errorf("consume: unknown queue %q", queueName)
	}
	b.consumeCalls++
	b.mu.Unlock()

	q.mu.Lock()
	q.consumer = handler
	q.mu.Unlock()

	return &consumerHandle{queue: q}, nil
}

type consumerHandle struct {
	queue *queue
}

func (c *consumerHandle) Close() error {
	c.queue.mu.Lock()
	c.queue.consumer = nil
	c.queue.mu.Unlock()
	return nil
}

// Publish routes msg to every queue bound to (exchange, routingKey), or —
// for the default exchange — directly to the queue named routingKey.
func (b *Broker) Publish(ctx context.Context, exchange, routingKey string, mandatory, confirm bool, msg broker.Message) error {
	targets := b.resolveTargets(exchange, routingKey)
	if len(targets) == 0 {
		if mandatory {
			return fmt.Errorf("publish: no queue bound for exchange %q routing key %q", exchange, routingKey)
		}
		return nil
	}

	for _, q := range targets {
		q.mu.Lock()
		handler := q.consumer
		q.mu.Unlock()
		if handler == nil {
			continue
		}
		// Deliver asynchronously so a responder publishing its reply from
		// within a handler never deadlocks against the publisher.
		go func(q *queue, handler broker.Handler) {
			if err := handler(ctx, msg); err != nil {
				b.logger.Warn().Err(err).Str("queue", q.name).Msg("memory: consumer handler returned error, message dropped")
			}
		}(q, handler)
	}
	return nil
}

func (b *Broker) resolveTargets(exchange, routingKey string) []*queue {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if exchange == broker.DefaultExchange {
		if q, ok := b.queues[routingKey]; ok {
			return []*queue{q}
		}
		return nil
	}

	var targets []*queue
	for _, bind := range b.bindings[exchange] {
		if bind.routingKey == routingKey {
			if q, ok := b.queues[bind.queue]; ok {
				targets = append(targets, q)
			}
		}
	}
	return targets
}

// SimulateConsumerRecovery publishes a ConnectionRecovered{Channel:
// Consumer} event, the way a real broker client would after re-dialing.
// Test-only helper.
func (b *Broker) SimulateConsumerRecovery() {
	broker.Publish(b.events, broker.ConnectionRecovered{Channel: broker.ChannelConsumer})
}

// SimulateProducerRecovery publishes a ConnectionRecovered{Channel:
// Producer} event. Test-only helper.
func (b *Broker) SimulateProducerRecovery() {
	broker.Publish(b.events, broker.ConnectionRecovered{Channel: broker.ChannelProducer})
}
