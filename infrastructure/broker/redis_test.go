package broker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"go.uber.org/zap"
)

type fakeRegistry struct {
	mu       sync.Mutex
	local    map[int64]bool
	queueFul map[int64]bool
	sent     map[int64][][]byte
}

func newFakeRegistry(localIds ...int64) *fakeRegistry {
	r := &fakeRegistry{
		local:    make(map[int64]bool),
		queueFul: make(map[int64]bool),
		sent:     make(map[int64][][]byte),
	}
	for _, id := range localIds {
		r.local[id] = true
	}
	return r
}

func (r *fakeRegistry) Send(userId int64, payload []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.local[userId] || r.queueFul[userId] {
		return false
	}
	r.sent[userId] = append(r.sent[userId], payload)
	return true
}

func (r *fakeRegistry) IsLocal(userId int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.local[userId]
}

func (r *fakeRegistry) sentTo(userId int64) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent[userId]
}

func TestDispatchDeliversToLocalRecipient(t *testing.T) {
	registry := newFakeRegistry(42)
	b := NewRedisBroker(nil, registry, "server-1", zap.NewNop())

	wrapper := Wrapper{ReceiverId: 42, Payload: json.RawMessage(`{"content":"hi"}`)}
	data, err := json.Marshal(wrapper)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	b.dispatch(data)

	got := registry.sentTo(42)
	if len(got) != 1 {
		t.Fatalf("delivered %d payloads, want 1", len(got))
	}
	if string(got[0]) != `{"content":"hi"}` {
		t.Errorf("payload = %s", got[0])
	}
}

func TestDispatchDiscardsNonLocalRecipient(t *testing.T) {
	registry := newFakeRegistry(42)
	b := NewRedisBroker(nil, registry, "server-1", zap.NewNop())

	wrapper := Wrapper{ReceiverId: 99, Payload: json.RawMessage(`{}`)}
	data, _ := json.Marshal(wrapper)

	b.dispatch(data)

	if len(registry.sentTo(99)) != 0 {
		t.Fatalf("non-local recipient received payload")
	}
}

func TestDispatchDropsMalformedPayload(t *testing.T) {
	registry := newFakeRegistry(42)
	b := NewRedisBroker(nil, registry, "server-1", zap.NewNop())

	b.dispatch([]byte("not json"))
	b.dispatch([]byte(`{"payload":{}}`)) // missing receiver

	if len(registry.sentTo(42)) != 0 {
		t.Fatalf("malformed payload was delivered")
	}
}

func TestWrapperReceiverIdAsString(t *testing.T) {
	// ids cross the wire as strings to survive javascript clients
	data, err := json.Marshal(Wrapper{ReceiverId: 1234567890123456789, Payload: json.RawMessage(`1`)})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded Wrapper
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.ReceiverId != 1234567890123456789 {
		t.Fatalf("receiver id mangled: %d", decoded.ReceiverId)
	}
}

func TestLocalBrokerDeliversOrDiscards(t *testing.T) {
	registry := newFakeRegistry(7)
	b := NewLocalBroker(registry, zap.NewNop())

	if err := b.Publish(context.Background(), 7, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(registry.sentTo(7)) != 1 {
		t.Fatalf("local recipient did not receive payload")
	}

	// offline recipient: publish still succeeds, payload dropped
	if err := b.Publish(context.Background(), 8, []byte(`{}`)); err != nil {
		t.Fatalf("Publish to offline recipient failed: %v", err)
	}
}
