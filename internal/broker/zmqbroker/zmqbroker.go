// Copyright 2025 Arion Yau
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package zmqbroker is a broker.Client backed by a ZeroMQ ROUTER/DEALER
// pair, grounded on hermes.Broker and hermes.HermesClient's socket setup
// and message-loop shape (internal/hermes/broker.go, client.go).
//
// Exchange/queue/binding topology has no ZMQ analogue, so it is tracked
// locally the same way internal/broker/memory does; what zmqbroker adds
// over the in-memory broker is that Publish and Consume cross an actual
// ROUTER/DEALER wire, so an engine and its responders can run in separate
// processes.
package zmqbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pebbe/zmq4"
	"github.com/rs/zerolog"

	"amqprpc/internal/broker"
	"amqprpc/internal/logger"
)

// envelope is the wire format exchanged between peers. It is deliberately
// flat JSON, matching hermes.ClientMessage/WorkerMessage's approach of one
// JSON frame per logical message rather than a binary framing.
type envelope struct {
	Exchange      string            `json:"exchange"`
	RoutingKey    string            `json:"routing_key"`
	Body          []byte            `json:"body"`
	ReplyTo       string            `json:"reply_to,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Priority      uint8             `json:"priority,omitempty"`
	DeliveryMode  broker.DeliveryMode `json:"delivery_mode"`
	Expiration    *int64            `json:"expiration,omitempty"`
	Headers       map[string]any    `json:"headers,omitempty"`
}

type binding struct {
	queue      string
	routingKey string
}

type localQueue struct {
	mu       sync.Mutex
	name     string
	consumer broker.Handler
}

// Client is a broker.Client that ships every publish as one DEALER frame
// to a peer bound with zmq4.ROUTER, and receives inbound frames on the
// same socket via a background message loop, matching
// hermes.HermesClient.messageLoop's shape.
type Client struct {
	address  string
	identity string
	socket   *zmq4.Socket
	sockMu   sync.Mutex // guards Send; zmq4 sockets are not goroutine-safe

	topoMu    sync.RWMutex
	exchanges map[string]broker.ExchangeKind
	queues    map[string]*localQueue
	bindings  map[string][]binding // exchange -> bindings
	genSeq    int

	events *broker.EventBus
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	heartbeat time.Duration
}

// Option customizes a Client at construction time.
type Option func(*Client)

// WithHeartbeat overrides the tick interval of the heartbeat loop. The loop
// does not ping the peer; a dropped connection is detected and recovered
// from by the message loop when a receive fails.
func WithHeartbeat(d time.Duration) Option {
	return func(c *Client) { c.heartbeat = d }
}

// New creates a Client that will DEALER-connect to address once Start is
// called. identity is the socket's ZMQ identity, matching
// hermes.NewClient's (broker, identity) signature.
func New(address, identity string, opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		address:   address,
		identity:  identity,
		exchanges: make(map[string]broker.ExchangeKind),
		queues:    make(map[string]*localQueue),
		bindings:  make(map[string][]binding),
		events:    broker.NewEventBus(),
		logger:    logger.Component("zmqbroker"),
		ctx:       ctx,
		cancel:    cancel,
		heartbeat: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start connects the underlying DEALER socket and begins the message and
// heartbeat loops, mirroring hermes.HermesClient.Start/connect.
func (c *Client) Start() error {
	socket, err := zmq4.NewSocket(zmq4.DEALER)
	if err != nil {
		return fmt.Errorf("zmqbroker: create DEALER socket: %w", err)
	}

	if err := socket.SetIdentity(c.identity); err != nil {
		socket.Close()
		return fmt.Errorf("zmqbroker: set identity: %w", err)
	}
	if err := socket.SetLinger(1000 * time.Millisecond); err != nil {
		socket.Close()
		return fmt.Errorf("zmqbroker: set linger: %w", err)
	}
	if err := socket.SetRcvhwm(1000); err != nil {
		socket.Close()
		return fmt.Errorf("zmqbroker: set rcvhwm: %w", err)
	}
	if err := socket.SetSndhwm(1000); err != nil {
		socket.Close()
		return fmt.Errorf("zmqbroker: set sndhwm: %w", err)
	}
	if err := socket.Connect(c.address); err != nil {
		socket.Close()
		return fmt.Errorf("zmqbroker: connect: %w", err)
	}

	c.socket = socket
	c.logger.Info().Str("address", c.address).Str("identity", c.identity).Msg("zmqbroker: connected")

	go c.messageLoop()
	go c.heartbeatLoop()

	return nil
}

// Close disconnects the socket and stops both background loops.
func (c *Client) Close() error {
	c.cancel()
	if c.socket != nil {
		return c.socket.Close()
	}
	return nil
}

// Events returns the client's connection-recovery event bus.
func (c *Client) Events() *broker.EventBus {
	return c.events
}

func (c *Client) messageLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		frames, err := c.socket.RecvMessageBytes(zmq4.DONTWAIT)
		if err != nil {
			if err.Error() != "resource temporarily unavailable" {
				c.logger.Error().Err(err).Msg("zmqbroker: recv failed")
				c.reconnect()
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if len(frames) == 0 {
			continue
		}

		var env envelope
		if err := json.Unmarshal(frames[len(frames)-1], &env); err != nil {
			c.logger.Warn().Err(err).Msg("zmqbroker: dropping frame that does not decode as an envelope")
			continue
		}
		c.deliver(env)
	}
}

func (c *Client) heartbeatLoop() {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			// A real deployment pings the peer here and reconnects on
			// missed pongs; this engine only needs the recovery event
			// path to be exercised, which reconnect() drives directly.
		}
	}
}

// reconnect tears down and re-establishes the DEALER socket, then
// publishes ConnectionRecovered events for both channel directions the
// way spec §6/§9 assumes a client library does.
func (c *Client) reconnect() {
	c.sockMu.Lock()
	defer c.sockMu.Unlock()

	if c.socket != nil {
		c.socket.Close()
	}

	socket, err := zmq4.NewSocket(zmq4.DEALER)
	if err != nil {
		c.logger.Error().Err(err).Msg("zmqbroker: reconnect failed to create socket")
		return
	}
	if err := socket.SetIdentity(c.identity); err == nil {
		if err := socket.Connect(c.address); err == nil {
			c.socket = socket
			c.logger.Warn().Msg("zmqbroker: reconnected after connection loss")
			broker.Publish(c.events, broker.ConnectionRecovered{Channel: broker.ChannelConsumer})
			broker.Publish(c.events, broker.ConnectionRecovered{Channel: broker.ChannelProducer})
			return
		}
	}
	socket.Close()
	c.logger.Error().Msg("zmqbroker: reconnect attempt failed")
}

func (c *Client) deliver(env envelope) {
	c.topoMu.RLock()
	targets := c.resolveTargetsLocked(env.Exchange, env.RoutingKey)
	c.topoMu.RUnlock()

	msg := broker.Message{
		Body: env.Body,
		Properties: broker.Properties{
			ReplyTo:       env.ReplyTo,
			CorrelationID: env.CorrelationID,
			Priority:      env.Priority,
			DeliveryMode:  env.DeliveryMode,
			Expiration:    env.Expiration,
			Headers:       env.Headers,
		},
	}

	for _, q := range targets {
		q.mu.Lock()
		handler := q.consumer
		q.mu.Unlock()
		if handler == nil {
			continue
		}
		go func(q *localQueue, handler broker.Handler) {
			if err := handler(c.ctx, msg); err != nil {
				c.logger.Warn().Err(err).Str("queue", q.name).Msg("zmqbroker: consumer handler returned error, message dropped")
			}
		}(q, handler)
	}
}

func (c *Client) resolveTargetsLocked(exchange, routingKey string) []*localQueue {
	if exchange == broker.DefaultExchange {
		if q, ok := c.queues[routingKey]; ok {
			return []*localQueue{q}
		}
		return nil
	}

	var out []*localQueue
	for _, b := range c.bindings[exchange] {
		if b.routingKey != routingKey {
			continue
		}
		if q, ok := c.queues[b.queue]; ok {
			out = append(out, q)
		}
	}
	return out
}

func (c *Client) DeclareExchange(_ context.Context, name string, kind broker.ExchangeKind) error {
	if name == broker.DefaultExchange {
		return nil
	}
	c.topoMu.Lock()
	defer c.topoMu.Unlock()
	if existing, ok := c.exchanges[name]; ok && existing != kind {
		return fmt.Errorf("zmqbroker: exchange %q already declared as %v, cannot redeclare as %v", name, existing, kind)
	}
	c.exchanges[name] = kind
	return nil
}

func (c *Client) DeclareQueue(_ context.Context, opts broker.QueueOptions) (broker.QueueInfo, error) {
	c.topoMu.Lock()
	defer c.topoMu.Unlock()

	name := opts.Name
	if name == "" {
		c.genSeq++
		name = fmt.Sprintf("amq.gen-%d", c.genSeq)
	}
	if _, ok := c.queues[name]; !ok {
		c.queues[name] = &localQueue{name: name}
	}
	return broker.QueueInfo{Name: name}, nil
}

func (c *Client) Bind(_ context.Context, exchange, queue, routingKey string) error {
	if exchange == broker.DefaultExchange {
		return nil
	}
	c.topoMu.Lock()
	defer c.topoMu.Unlock()

	if _, ok := c.exchanges[exchange]; !ok {
		return fmt.Errorf("zmqbroker: unknown exchange %q", exchange)
	}
	if _, ok := c.queues[queue]; !ok {
		return fmt.Errorf("zmqbroker: unknown queue %q", queue)
	}
	c.bindings[exchange] = append(c.bindings[exchange], binding{queue: queue, routingKey: routingKey})
	return nil
}

func (c *Client) Consume(_ context.Context, queue string, _ broker.ConsumeOptions, handler broker.Handler) (broker.ConsumerHandle, error) {
	c.topoMu.Lock()
	q, ok := c.queues[queue]
	if !ok {
		q = &localQueue{name: queue}
		c.queues[queue] = q
	}
	c.topoMu.Unlock()

	q.mu.Lock()
	q.consumer = handler
	q.mu.Unlock()

	return &consumerHandle{queue: q}, nil
}

// Publish serializes msg as an envelope and ships it over the wire to the
// peer bound at c.address; the peer's own topology resolves the target
// queue(s) on receipt via deliver.
func (c *Client) Publish(_ context.Context, exchange, routingKey string, mandatory, _ bool, msg broker.Message) error {
	env := envelope{
		Exchange:      exchange,
		RoutingKey:    routingKey,
		Body:          msg.Body,
		ReplyTo:       msg.Properties.ReplyTo,
		CorrelationID: msg.Properties.CorrelationID,
		Priority:      msg.Properties.Priority,
		DeliveryMode:  msg.Properties.DeliveryMode,
		Expiration:    msg.Properties.Expiration,
		Headers:       msg.Properties.Headers,
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("zmqbroker: encode envelope: %w", err)
	}

	c.sockMu.Lock()
	defer c.sockMu.Unlock()
	if c.socket == nil {
		return fmt.Errorf("zmqbroker: not connected")
	}

	if _, err := c.socket.SendBytes(payload, 0); err != nil {
		if mandatory {
			return fmt.Errorf("zmqbroker: send failed for mandatory publish: %w", err)
		}
		c.logger.Warn().Err(err).Str("exchange", exchange).Str("routing_key", routingKey).Msg("zmqbroker: best-effort publish failed")
	}
	return nil
}

type consumerHandle struct {
	queue *localQueue
}

func (h *consumerHandle) Close() error {
	h.queue.mu.Lock()
	h.queue.consumer = nil
	h.queue.mu.Unlock()
	return nil
}
