// Package realtime provides the push-based event channel: named channel
// subscriptions, presence tracking, and row-insert fanout filtered by column
// equality.
package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Presence event types delivered on presence-tracking channels.
const (
	PresenceSync  = "sync"
	PresenceJoin  = "join"
	PresenceLeave = "leave"
)

// Frame is the wire format exchanged on the realtime channel, both directions.
type Frame struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Event   string          `json:"event,omitempty"`
	State   []PresenceMeta  `json:"state,omitempty"`
	Meta    *PresenceMeta   `json:"meta,omitempty"`
	Table   string          `json:"table,omitempty"`
	Column  string          `json:"column,omitempty"`
	Value   string          `json:"value,omitempty"`
	Row     json.RawMessage `json:"row,omitempty"`
}

// Client-to-server frame types.
const (
	FrameSubscribe = "subscribe"
	FrameTrack     = "track"
	FrameUntrack   = "untrack"
	FramePing      = "ping"
)

// Server-to-client frame types.
const (
	FramePresence = "presence"
	FrameInsert   = "insert"
	FramePong     = "pong"
)

// PresenceMeta is the metadata a connection announces when tracking presence.
type PresenceMeta struct {
	UserID         string `json:"user_id"`
	ActiveChatWith string `json:"active_chat_with,omitempty"`
}

// subscription is one named-channel subscription held by a connection. An
// empty column means the subscription receives every insert for the table.
type subscription struct {
	channel string
	table   string
	column  string
	value   string
}

type conn struct {
	key     string
	send    func(Frame)
	subs    []subscription
	tracked *PresenceMeta
}

// Hub routes presence and insert events to connected subscribers. The
// transport (websocket handler, or a test harness) registers connections and
// forwards their frames.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*conn
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]*conn)}
}

// Register adds a connection. The send callback must not block; transports
// are expected to buffer. Re-registering a key untracks the displaced
// connection first, so peers see its leave instead of holding a stale entry
// until the next sync.
func (h *Hub) Register(key string, send func(Frame)) {
	h.mu.RLock()
	_, exists := h.conns[key]
	h.mu.RUnlock()

	if exists {
		slog.Warn("realtime connection replaced", "key", key)
		h.Untrack(key)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[key] = &conn{key: key, send: send}
}

// Unregister removes a connection. If it was tracking presence it is
// untracked first so peers observe the departure promptly.
func (h *Hub) Unregister(key string) {
	h.Untrack(key)

	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, key)
}

// Subscribe adds a named-channel subscription for a connection. For insert
// channels, table/column/value narrow delivery to rows whose column equals
// the value.
func (h *Hub) Subscribe(key, channel, table, column, value string) {
	h.mu.Lock()
	c, ok := h.conns[key]
	if !ok {
		h.mu.Unlock()
		return
	}
	c.subs = append(c.subs, subscription{channel: channel, table: table, column: column, value: value})
	h.mu.Unlock()

	// A presence subscriber gets the current snapshot immediately, so a
	// reconnecting peer does not wait for the next join/leave.
	h.broadcastPresence(PresenceSync, nil, key)
}

// Track attaches presence metadata to a connection and announces the join.
func (h *Hub) Track(key string, meta PresenceMeta) {
	h.mu.Lock()
	c, ok := h.conns[key]
	if !ok {
		h.mu.Unlock()
		return
	}
	c.tracked = &meta
	h.mu.Unlock()

	h.broadcastPresence(PresenceJoin, &meta, "")
}

// Untrack withdraws a connection's presence metadata and announces the leave.
func (h *Hub) Untrack(key string) {
	h.mu.Lock()
	c, ok := h.conns[key]
	if !ok || c.tracked == nil {
		h.mu.Unlock()
		return
	}
	meta := *c.tracked
	c.tracked = nil
	h.mu.Unlock()

	h.broadcastPresence(PresenceLeave, &meta, "")
}

// Snapshot returns the current presence registry state.
func (h *Hub) Snapshot() []PresenceMeta {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshotLocked()
}

func (h *Hub) snapshotLocked() []PresenceMeta {
	state := make([]PresenceMeta, 0, len(h.conns))
	for _, c := range h.conns {
		if c.tracked != nil {
			state = append(state, *c.tracked)
		}
	}
	return state
}

// broadcastPresence sends a presence event, carrying the full registry
// snapshot, to every connection subscribed to a presence channel. With only
// set, delivery is restricted to that connection.
func (h *Hub) broadcastPresence(event string, meta *PresenceMeta, only string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	state := h.snapshotLocked()
	for _, c := range h.conns {
		if only != "" && c.key != only {
			continue
		}
		for _, sub := range c.subs {
			if sub.table != "" {
				continue
			}
			c.send(Frame{
				Type:    FramePresence,
				Channel: sub.channel,
				Event:   event,
				State:   state,
				Meta:    meta,
			})
			break
		}
	}
}

// PublishInsert delivers a row-insert event to every subscription on the
// table whose column filter matches. The cols map carries the filterable
// column values of the row.
func (h *Hub) PublishInsert(table string, row any, cols map[string]string) {
	data, err := json.Marshal(row)
	if err != nil {
		slog.Error("failed to marshal insert row", "table", table, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.conns {
		for _, sub := range c.subs {
			if sub.table != table {
				continue
			}
			if sub.column != "" && cols[sub.column] != sub.value {
				continue
			}
			c.send(Frame{Type: FrameInsert, Channel: sub.channel, Table: table, Row: data})
			break
		}
	}
}
