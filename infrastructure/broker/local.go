package broker

import (
	"context"

	"go.uber.org/zap"

	"telechat/infrastructure/ws"
	"telechat/internal/metrics"
)

// LocalBroker short-circuits the pub/sub hop for single-server
// deployments: every live connection is by definition local.
type LocalBroker struct {
	registry ws.Registry
	log      *zap.Logger
}

func NewLocalBroker(registry ws.Registry, log *zap.Logger) *LocalBroker {
	return &LocalBroker{registry: registry, log: log}
}

func (b *LocalBroker) Publish(_ context.Context, receiverId int64, payload []byte) error {
	metrics.BrokerPublished.Inc()
	if b.registry.Send(receiverId, payload) {
		metrics.BrokerDelivered.Inc()
	} else {
		// recipient offline; they will pull history on reconnect
		metrics.BrokerDiscarded.Inc()
	}
	return nil
}
