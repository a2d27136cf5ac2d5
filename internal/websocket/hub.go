package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"splitledger/internal/models"
)

// Hub fans change events out to the subscribers of each group.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(groupID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[groupID] == nil {
		h.clients[groupID] = make(map[*Client]struct{})
	}
	h.clients[groupID][client] = struct{}{}
}

func (h *Hub) Unregister(groupID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[groupID] == nil {
		return
	}
	delete(h.clients[groupID], client)
	if len(h.clients[groupID]) == 0 {
		delete(h.clients, groupID)
	}
}

// Close ends every group's stream. Subscribers get a going-away close frame.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for groupID, clients := range h.clients {
		for client := range clients {
			close(client.send)
		}
		delete(h.clients, groupID)
	}
}

func (h *Hub) Subscribers(groupID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[groupID])
}

// Publish never blocks: a subscriber whose buffer is full misses the event.
// Personal-expense events carry no group and reach nobody.
func (h *Hub) Publish(_ context.Context, event models.ChangeEvent) {
	if event.GroupID == "" {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("encode change event", "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[event.GroupID] {
		select {
		case client.send <- payload:
		default:
			slog.Warn("dropping change event for slow subscriber", "group_id", event.GroupID, "kind", event.Kind)
		}
	}
}
