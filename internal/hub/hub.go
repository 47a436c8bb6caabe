package hub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nurpe/tract-board/internal/model"
)

// Client is one connected push observer. The interface keeps the hub
// independent of the websocket transport and mockable in tests.
type Client interface {
	ID() string
	SendBytes(b []byte)
	Close()
}

// Hub fans snapshots out to all connected clients. Delivery is best-effort;
// polling remains the authoritative path to consistency.
type Hub struct {
	mu      sync.RWMutex
	clients map[Client]struct{}
	log     zerolog.Logger
}

func New(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[Client]struct{}),
		log:     log,
	}
}

func (h *Hub) Register(c Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debug().Str("client", c.ID()).Msg("push client connected")
}

func (h *Hub) Unregister(c Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	h.mu.Unlock()
	if ok {
		c.Close()
		h.log.Debug().Str("client", c.ID()).Msg("push client disconnected")
	}
}

// Broadcast serializes the snapshot once and sends it to every client.
func (h *Hub) Broadcast(snap model.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal snapshot for broadcast")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.SendBytes(payload)
	}
}

// Run consumes a publisher subscription until the context ends.
func (h *Hub) Run(ctx context.Context, snapshots <-chan model.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			h.Broadcast(snap)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
