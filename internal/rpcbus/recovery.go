package rpcbus

import (
	"github.com/rs/zerolog"

	"amqprpc/internal/broker"
	"amqprpc/internal/logger"
)

// RecoveryListener is the Recovery Listener (spec §4.5): it subscribes to
// connection-recovered events and, on every Consumer-channel recovery,
// invalidates all pending requests and tears down every cached
// subscription so the next request rebuilds them from scratch.
//
// Grounded on hermes.Broker.checkWorkerLiveness/removeWorker's
// sweep-and-invalidate shape (broker.go), retargeted from periodic
// liveness expiry to event-driven invalidation.
type RecoveryListener struct {
	pending  *PendingTable
	registry *Registry
	events   *broker.EventBus
	subID    broker.SubscriptionID
	logger   zerolog.Logger
}

func newRecoveryListener(events *broker.EventBus, pending *PendingTable, registry *Registry) *RecoveryListener {
	rl := &RecoveryListener{
		pending:  pending,
		registry: registry,
		events:   events,
		logger:   logger.Component("rpcbus.recovery"),
	}
	rl.subID = broker.Subscribe(events, rl.onRecovered)
	return rl
}

func (rl *RecoveryListener) onRecovered(event broker.ConnectionRecovered) {
	if event.Channel != broker.ChannelConsumer {
		return
	}

	actions := rl.pending.SnapshotAndClear()
	for _, action := range actions {
		action.OnFailure(&ConnectionLostError{})
	}

	handles := rl.registry.SnapshotAndClear()
	for _, handle := range handles {
		if handle == nil {
			continue
		}
		if err := handle.Close(); err != nil {
			rl.logger.Warn().Err(err).Msg("rpcbus: failed to close subscription consumer during recovery teardown")
		}
	}

	rl.logger.Info().
		Int("pending_invalidated", len(actions)).
		Int("subscriptions_closed", len(handles)).
		Msg("rpcbus: consumer channel recovered, invalidated in-flight rpc state")
}

// Close releases the event subscription. Done before closing any remaining
// subscription handles at engine dispose, so a concurrent recovery
// callback cannot race the teardown it triggers (spec §9).
func (rl *RecoveryListener) Close() {
	rl.events.Unsubscribe(rl.subID)
}
