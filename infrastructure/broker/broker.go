package broker

import (
	"context"
	"encoding/json"
)

// Broker fans a payload out to whichever instance holds the recipient's
// live connection. Delivery is at-least-once: every subscribed instance
// sees every wrapper and instances without the connection discard it.
type Broker interface {
	// Publish hands the wrapper to the pub/sub layer and returns; it
	// does not wait for remote delivery.
	Publish(ctx context.Context, receiverId int64, payload []byte) error
}

// Wrapper is the envelope carried on the shared channel.
type Wrapper struct {
	ReceiverId int64           `json:"receiverId,string"`
	Payload    json.RawMessage `json:"payload"`
}
