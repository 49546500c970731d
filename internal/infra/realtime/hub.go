package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"

	"parley/internal/infra/bus"
)

// Hub tracks websocket connections and their channel subscriptions, and
// routes bus events to every connection subscribed to the event's channel.
// It is the local delivery end of the pub/sub bus: events that arrive for a
// channel nobody here subscribes to are dropped.
type Hub struct {
	mu            sync.RWMutex
	conns         map[string]*Connection            // connection id -> connection
	channels      map[string]map[string]*Connection // channel -> connection id -> connection
	subscriptions map[string]map[string]struct{}    // connection id -> set of channels
	logger        *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		conns:         make(map[string]*Connection),
		channels:      make(map[string]map[string]*Connection),
		subscriptions: make(map[string]map[string]struct{}),
		logger:        logger,
	}
}

// Attach registers a connection and starts its write loop.
func (h *Hub) Attach(conn *Connection) {
	h.mu.Lock()
	h.conns[conn.ID] = conn
	h.subscriptions[conn.ID] = make(map[string]struct{})
	h.mu.Unlock()
	conn.Start()
}

// Detach drops the connection and all its subscriptions.
func (h *Hub) Detach(conn *Connection) {
	h.mu.Lock()
	for channel := range h.subscriptions[conn.ID] {
		h.unsubscribeLocked(channel, conn.ID)
	}
	delete(h.subscriptions, conn.ID)
	delete(h.conns, conn.ID)
	h.mu.Unlock()
}

// Subscribe adds the connection to a channel. Events published before the
// subscription are never replayed.
func (h *Hub) Subscribe(channel string, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn.ID]; !ok {
		return
	}
	members := h.channels[channel]
	if members == nil {
		members = make(map[string]*Connection)
		h.channels[channel] = members
	}
	members[conn.ID] = conn
	h.subscriptions[conn.ID][channel] = struct{}{}
}

func (h *Hub) Unsubscribe(channel string, conn *Connection) {
	h.mu.Lock()
	h.unsubscribeLocked(channel, conn.ID)
	if subs, ok := h.subscriptions[conn.ID]; ok {
		delete(subs, channel)
	}
	h.mu.Unlock()
}

// Deliver implements bus.Handler: the envelope is marshalled once and sent
// to every subscriber of the event's channel.
func (h *Hub) Deliver(ev bus.Event) {
	h.mu.RLock()
	members := h.channels[ev.Channel]
	if len(members) == 0 {
		h.mu.RUnlock()
		return
	}
	targets := make([]*Connection, 0, len(members))
	for _, conn := range members {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	payload, err := json.Marshal(ev)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("event marshal failed", "channel", ev.Channel, "error", err)
		}
		return
	}
	for _, conn := range targets {
		if err := conn.Send(payload); err != nil && h.logger != nil {
			h.logger.Debug("event delivery failed", "channel", ev.Channel, "connection_id", conn.ID, "error", err)
		}
	}
}

// Close terminates every tracked connection.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*Connection, 0, len(h.conns))
	for _, conn := range h.conns {
		conns = append(conns, conn)
	}
	h.conns = make(map[string]*Connection)
	h.channels = make(map[string]map[string]*Connection)
	h.subscriptions = make(map[string]map[string]struct{})
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close(1001, "hub shutdown")
	}
}

func (h *Hub) unsubscribeLocked(channel, connID string) {
	members := h.channels[channel]
	if members == nil {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.channels, channel)
	}
}
