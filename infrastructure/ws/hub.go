package ws

import (
	"sync"

	"go.uber.org/zap"
)

// Registry is the live-connection registry: given a user id it yields
// the outbound delivery handle for a connection held by THIS instance,
// or nothing. Cluster-wide routing is the broker's job.
type Registry interface {
	Send(userId int64, payload []byte) bool
	IsLocal(userId int64) bool
}

// Hub tracks the websocket connections owned by this instance. A user
// has at most one live connection; a newer connection replaces the
// older one (last writer wins).
type Hub struct {
	clients map[int64]*UserClient
	mu      sync.RWMutex

	Register   chan *UserClient
	Unregister chan *UserClient

	onUnregister func(client *UserClient)
	log          *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[int64]*UserClient),
		Register:   make(chan *UserClient),
		Unregister: make(chan *UserClient),
		log:        log,
	}
}

// Run owns the client map mutations. Call it once, in its own
// goroutine, before accepting connections.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if old, ok := h.clients[client.UserId]; ok {
				close(old.send)
			}
			h.clients[client.UserId] = client
			h.mu.Unlock()
			h.log.Info("client connected", zap.Int64("userId", client.UserId))

		case client := <-h.Unregister:
			h.mu.Lock()
			current, ok := h.clients[client.UserId]
			if ok && current == client {
				delete(h.clients, client.UserId)
				close(client.send)
			}
			h.mu.Unlock()

			if ok && current == client {
				h.log.Info("client disconnected", zap.Int64("userId", client.UserId))
				if h.onUnregister != nil {
					h.onUnregister(client)
				}
			}
		}
	}
}

// Send enqueues payload on the user's outbound queue if they are
// connected to this instance. Returns false when the user is not local
// or the queue is full.
func (h *Hub) Send(userId int64, payload []byte) bool {
	// The read lock is held across the channel send: Run closes the
	// queue under the write lock, so a close cannot interleave here.
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[userId]
	if !ok {
		return false
	}

	select {
	case client.send <- payload:
		return true
	default:
		h.log.Warn("outbound queue full, dropping frame", zap.Int64("userId", userId))
		return false
	}
}

func (h *Hub) IsLocal(userId int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userId]
	return ok
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RegisterClient(client *UserClient) {
	h.Register <- client
}

func (h *Hub) UnregisterClient(client *UserClient) {
	h.Unregister <- client
}

// SetOnUnregister installs a callback invoked after a client leaves the
// map, used to drive presence offline transitions.
func (h *Hub) SetOnUnregister(fn func(client *UserClient)) {
	h.onUnregister = fn
}
