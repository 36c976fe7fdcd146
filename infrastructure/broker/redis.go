package broker

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"telechat/infrastructure/ws"
	"telechat/internal/metrics"
)

// chatTopic is the single well-known channel every instance subscribes
// to. Broadcast-and-filter trades network overhead for topology
// simplicity: no routing table, any instance can take any send.
const chatTopic = "chat.topic"

// RedisBroker rides the same Redis that serves the ephemeral counters.
type RedisBroker struct {
	client   *redis.Client
	registry ws.Registry
	serverId string
	log      *zap.Logger
}

func NewRedisBroker(client *redis.Client, registry ws.Registry, serverId string, log *zap.Logger) *RedisBroker {
	return &RedisBroker{
		client:   client,
		registry: registry,
		serverId: serverId,
		log:      log,
	}
}

// Publish serializes the wrapper and emits it on the shared channel. A
// publish failure is the caller's to log; the persisted message it
// refers to is never rolled back.
func (b *RedisBroker) Publish(ctx context.Context, receiverId int64, payload []byte) error {
	wrapper := Wrapper{
		ReceiverId: receiverId,
		Payload:    payload,
	}
	data, err := json.Marshal(wrapper)
	if err != nil {
		return errors.Wrap(err, "marshal wrapper")
	}
	if err := b.client.Publish(ctx, chatTopic, data).Err(); err != nil {
		return errors.Wrap(err, "publish")
	}
	metrics.BrokerPublished.Inc()
	return nil
}

// Run subscribes to the shared channel and dispatches inbound wrappers
// until ctx is cancelled. Reconnects are handled by the pub/sub layer's
// own retry loop.
func (b *RedisBroker) Run(ctx context.Context) {
	pubsub := b.client.Subscribe(ctx, chatTopic)
	defer pubsub.Close()

	b.log.Info("broker subscribed", zap.String("topic", chatTopic), zap.String("serverId", b.serverId))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.dispatch([]byte(msg.Payload))
		}
	}
}

// dispatch forwards the wrapper to the recipient's local connection, or
// discards it when some other instance holds the connection. Malformed
// payloads are logged and dropped, never propagated.
func (b *RedisBroker) dispatch(data []byte) {
	var wrapper Wrapper
	if err := json.Unmarshal(data, &wrapper); err != nil {
		metrics.BrokerMalformed.Inc()
		b.log.Warn("malformed broker payload", zap.Error(err))
		return
	}
	if wrapper.ReceiverId == 0 {
		metrics.BrokerMalformed.Inc()
		b.log.Warn("broker payload without receiver")
		return
	}

	if !b.registry.IsLocal(wrapper.ReceiverId) {
		// another subscribed instance has the live connection
		metrics.BrokerDiscarded.Inc()
		return
	}

	if b.registry.Send(wrapper.ReceiverId, wrapper.Payload) {
		metrics.BrokerDelivered.Inc()
	} else {
		metrics.BrokerDiscarded.Inc()
		b.log.Warn("local delivery failed", zap.Int64("receiverId", wrapper.ReceiverId))
	}
}
