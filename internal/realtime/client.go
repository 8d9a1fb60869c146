package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
)

// Client is the dialing side of the realtime channel.
type Client struct {
	ws     *websocket.Conn
	events chan Frame
	ctx    context.Context
	cancel context.CancelFunc
}

// Dial connects to a realtime endpoint. The header should carry the session
// cookie so the server can attribute presence tracking.
func Dial(ctx context.Context, url string, header http.Header) (*Client, error) {
	ws, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("dial realtime channel: %w", err)
	}

	cctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		ws:     ws,
		events: make(chan Frame, outboundBuffer),
		ctx:    cctx,
		cancel: cancel,
	}
	go c.readLoop()
	return c, nil
}

// Events returns the stream of server frames. The channel is closed when the
// connection ends.
func (c *Client) Events() <-chan Frame {
	return c.events
}

// Subscribe opens a named-channel subscription. Insert subscriptions carry a
// table plus a column-equality filter.
func (c *Client) Subscribe(channel, table, column, value string) error {
	return c.write(Frame{Type: FrameSubscribe, Channel: channel, Table: table, Column: column, Value: value})
}

// Track announces presence metadata for this connection.
func (c *Client) Track(meta PresenceMeta) error {
	return c.write(Frame{Type: FrameTrack, Meta: &meta})
}

// Untrack withdraws this connection from the presence registry.
func (c *Client) Untrack() error {
	return c.write(Frame{Type: FrameUntrack})
}

// Close untracks and closes the connection. Untracking first lets peers see
// the departure immediately instead of waiting for a connection timeout.
func (c *Client) Close() error {
	if err := c.Untrack(); err != nil {
		slog.Debug("untrack on close failed", "error", err)
	}
	c.cancel()
	return c.ws.Close(websocket.StatusNormalClosure, "done")
}

func (c *Client) write(frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if err := c.ws.Write(c.ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (c *Client) readLoop() {
	defer close(c.events)
	for {
		_, data, err := c.ws.Read(c.ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && c.ctx.Err() == nil {
				slog.Debug("realtime read error", "error", err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			slog.Debug("dropping malformed frame", "error", err)
			continue
		}

		select {
		case c.events <- frame:
		case <-c.ctx.Done():
			return
		}
	}
}
