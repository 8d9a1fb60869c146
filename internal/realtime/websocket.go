package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/pairchat/pairchat/internal/auth"
)

// WebSocketHandler serves the realtime channel over a WebSocket connection.
type WebSocketHandler struct {
	hub           *Hub
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler for the hub.
func NewWebSocketHandler(hub *Hub, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		hub:           hub,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// outboundBuffer bounds per-connection fanout queues. A connection that
// cannot drain this many frames is dropped rather than blocking the hub.
const outboundBuffer = 64

// ServeHTTP implements http.Handler for the WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "channel closed"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Each tab gets its own connection key so presence tracks per connection.
	key := userID + ":" + uuid.NewString()
	outbound := make(chan Frame, outboundBuffer)
	h.hub.Register(key, func(f Frame) {
		select {
		case outbound <- f:
		default:
			slog.Warn("realtime outbound buffer full, dropping connection", "key", key)
			cancel()
		}
	})
	defer h.hub.Unregister(key)

	slog.Info("Realtime channel connected", "user_id", userID, "key", key)

	go h.writeLoop(ctx, ws, outbound, userID)
	h.readLoop(ctx, ws, key, userID, outbound)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, key, userID string, outbound chan<- Frame) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else {
				slog.Debug("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			slog.Debug("Dropping malformed realtime frame", "user_id", userID, "error", err)
			continue
		}

		switch frame.Type {
		case FrameSubscribe:
			h.hub.Subscribe(key, frame.Channel, frame.Table, frame.Column, frame.Value)
		case FrameTrack:
			// Identity is taken from the session, never from the frame.
			meta := PresenceMeta{UserID: userID}
			if frame.Meta != nil {
				meta.ActiveChatWith = frame.Meta.ActiveChatWith
			}
			h.hub.Track(key, meta)
		case FrameUntrack:
			h.hub.Untrack(key)
		case FramePing:
			// Replies go through the outbound queue; the write loop is the
			// only goroutine that touches the connection for writes.
			select {
			case outbound <- Frame{Type: FramePong}:
			default:
				slog.Debug("Dropping pong, outbound buffer full", "user_id", userID)
			}
		}
	}
}

func (h *WebSocketHandler) writeLoop(ctx context.Context, ws *websocket.Conn, outbound <-chan Frame, userID string) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-outbound:
			if err := writeFrame(ws, frame); err != nil {
				slog.Debug("WebSocket write error", "error", err, "user_id", userID)
				return
			}
		}
	}
}

func writeFrame(ws *websocket.Conn, frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return ws.Write(context.Background(), websocket.MessageText, data)
}
