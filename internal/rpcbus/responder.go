package rpcbus

import (
	"context"
	"errors"

	"amqprpc/internal/broker"
)

// Responder computes a response from a request body, its headers, and the
// delivery's cancellation (the consumer's own lifecycle, not a per-message
// timeout — spec §5).
type Responder[TRequest, TResponse any] func(ctx context.Context, req TRequest, headers map[string]any) (TResponse, error)

// Respond is the Responder Host (spec §4.4): it declares the request
// exchange/queue/binding for TRequest, starts a consumer, and drives
// responder for every inbound message.
func Respond[TRequest, TResponse any](ctx context.Context, bus *Bus, responder Responder[TRequest, TResponse], configure func(*ResponderConfig)) (SubscriptionHandle, error) {
	respType := typeOf[TResponse]()
	reqType := typeOf[TRequest]()

	name := bus.typeNames.NameFor(respType)
	if len(name) > 255 {
		return nil, &ArgumentOutOfRangeError{
			Argument: "TResponse",
			Detail:   "serialized response type name exceeds the 255-byte broker header limit",
		}
	}

	cfg := ResponderConfig{
		Prefetch:  bus.config.DefaultPrefetch,
		Durable:   true,
		Arguments: map[string]any{"x-queue-type": bus.naming.QueueType(reqType)},
	}
	if configure != nil {
		configure(&cfg)
	}

	routingKey := cfg.QueueName
	if routingKey == "" {
		routingKey = bus.naming.RoutingKey(reqType)
	}

	exchangeName := bus.naming.RequestExchange(reqType)
	if err := bus.client.DeclareExchange(ctx, exchangeName, broker.ExchangeDirect); err != nil {
		return nil, &BrokerError{Cause: err}
	}

	qi, err := bus.client.DeclareQueue(ctx, broker.QueueOptions{
		Name:      routingKey,
		Durable:   cfg.Durable,
		Arguments: cfg.Arguments,
	})
	if err != nil {
		return nil, &BrokerError{Cause: err}
	}
	queueName := qi.Name
	if queueName == "" {
		queueName = routingKey
	}

	if err := bus.client.Bind(ctx, exchangeName, queueName, routingKey); err != nil {
		return nil, &BrokerError{Cause: err}
	}

	replyExchange := bus.naming.ResponseExchange(respType)
	if replyExchange != broker.DefaultExchange {
		if err := bus.client.DeclareExchange(ctx, replyExchange, broker.ExchangeDirect); err != nil {
			return nil, &BrokerError{Cause: err}
		}
	}

	handler := func(deliveryCtx context.Context, msg broker.Message) error {
		return handleMessage(deliveryCtx, bus, responder, replyExchange, msg)
	}

	consumer, err := bus.client.Consume(ctx, queueName, broker.ConsumeOptions{PrefetchCount: cfg.Prefetch}, handler)
	if err != nil {
		return nil, &BrokerError{Cause: err}
	}

	return &subscriptionHandle{consumer: consumer}, nil
}

// handleMessage implements spec §4.4's handle_message algorithm. Its
// returned error is the "re-raise so the consumer layer may apply its own
// redelivery/acknowledgement policy" step: the broker.Handler contract
// carries it back to the delivering broker.Client, which logs it and drops
// the message, since neither broker implementation offers redelivery.
func handleMessage[TRequest, TResponse any](ctx context.Context, bus *Bus, responder Responder[TRequest, TResponse], replyExchange string, msg broker.Message) error {
	var req TRequest
	if err := bus.serializer.Unmarshal(msg.Body, &req); err != nil {
		bus.logger.Error().Err(err).Msg("rpcbus: failed to decode inbound request body")
		return err
	}

	resp, respErr := responder(ctx, req, msg.Properties.Headers)
	if respErr == nil {
		publishReply(ctx, bus, replyExchange, msg.Properties.ReplyTo, msg.Properties.CorrelationID, resp)
		return nil
	}

	if errors.Is(respErr, ErrCancelled) || errors.Is(respErr, context.Canceled) {
		if ctx.Err() != nil {
			// The delivery's own cancellation fired; the client side will
			// observe its own cancellation, so no reply is published.
			return respErr
		}
	}

	publishFault[TResponse](ctx, bus, replyExchange, msg.Properties.ReplyTo, msg.Properties.CorrelationID, respErr)
	return respErr
}

func publishReply[TResponse any](ctx context.Context, bus *Bus, replyExchange, replyTo, correlationID string, resp TResponse) {
	body, err := bus.serializer.Marshal(resp)
	if err != nil {
		publishFault[TResponse](ctx, bus, replyExchange, replyTo, correlationID, err)
		return
	}

	reply := broker.Message{
		Body: body,
		Properties: broker.Properties{
			CorrelationID: correlationID,
			DeliveryMode:  broker.DeliveryNonPersistent,
		},
	}
	if err := bus.client.Publish(ctx, replyExchange, replyTo, false, false, reply); err != nil {
		bus.logger.Error().Err(err).Str("correlation_id", correlationID).Msg("rpcbus: failed to publish reply")
	}
}

func publishFault[TResponse any](ctx context.Context, bus *Bus, replyExchange, replyTo, correlationID string, cause error) {
	var zero TResponse
	body, _ := bus.serializer.Marshal(zero)

	message := cause.Error()
	if message == "" {
		message = DefaultExceptionMessage
	}

	fault := broker.Message{
		Body: body,
		Properties: broker.Properties{
			CorrelationID: correlationID,
			DeliveryMode:  broker.DeliveryNonPersistent,
			Headers: map[string]any{
				broker.HeaderIsFaulted:        true,
				broker.HeaderExceptionMessage: []byte(message),
			},
		},
	}
	if err := bus.client.Publish(ctx, replyExchange, replyTo, false, false, fault); err != nil {
		bus.logger.Error().Err(err).Str("correlation_id", correlationID).Msg("rpcbus: failed to publish fault reply")
		return
	}

	bus.logger.Warn().
		Err(cause).
		Str("correlation_id", correlationID).
		Msg("rpcbus: responder returned an error; fault reply published")
}
