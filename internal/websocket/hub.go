package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dukerupert/roadpoints/internal/points"
)

// Message is a live notification pushed to connected clients.
type Message struct {
	Type   string `json:"type"`
	Entity string `json:"entity"`
	Action string `json:"action"`
	ID     int64  `json:"id,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action string, id int64, data any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Data:   data,
	}
}

// Scope limits which events a client receives. Admins see everything,
// sponsors see their own drivers, drivers see only themselves.
type Scope struct {
	All       bool
	SponsorID int64
	DriverID  int64
}

func (s Scope) matches(sponsorID, driverID int64) bool {
	switch {
	case s.All:
		return true
	case s.DriverID != 0:
		return s.DriverID == driverID
	default:
		return s.SponsorID != 0 && s.SponsorID == sponsorID
	}
}

// Hub maintains the set of active WebSocket clients and routes events to
// the clients whose scope covers them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger.With("component", "websocket"),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Publish sends msg to every client whose scope covers the sponsor/driver pair.
func (h *Hub) Publish(sponsorID, driverID int64, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !c.scope.matches(sponsorID, driverID) {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.Debug("client buffer full, dropping message", "type", msg.Type)
		}
	}
}

// Notify forwards a committed engine event to interested clients.
func (h *Hub) Notify(_ context.Context, ev points.Event) {
	entity, action, _ := strings.Cut(string(ev.Type), "_")
	h.Publish(ev.SponsorID, ev.DriverID, NewMessage(entity, action, ev.OrderID, ev))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
