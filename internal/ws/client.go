package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"neurochat/internal/constants"
)

// Vars rather than consts so tests can shrink the windows.
var (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = 45 * time.Second
)

// Maximum message size allowed from peer
const maxMessageSize = 65536

// MessageHandler processes one inbound user turn. It runs on the read pump
// goroutine, so turns from a single connection are handled in order.
type MessageHandler func(ctx context.Context, client *Client, content string)

// Client is a single streaming-chat connection. The write pump is the only
// goroutine touching the wire for writes; producers hand frames to Send.
type Client struct {
	ID string

	conn    *websocket.Conn
	send    chan *OutboundFrame
	handler MessageHandler

	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn, handler MessageHandler) *Client {
	return &Client{
		ID:      uuid.NewString(),
		conn:    conn,
		send:    make(chan *OutboundFrame, constants.WSClientSendBufferSize),
		handler: handler,
		done:    make(chan struct{}),
	}
}

// Send queues a frame for the write pump, blocking for backpressure. It
// reports false once the connection is closing.
func (c *Client) Send(frame *OutboundFrame) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *Client) ReadPump(ctx context.Context) {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		// The handler runs inline and can outlast pongWait, during which no
		// pongs are processed; the deadline has to be fresh for every read.
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read error", "component", "ws", "client", c.ID, "error", err)
			}
			return
		}

		var frame InboundFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			slog.Warn("malformed websocket frame", "component", "ws", "client", c.ID, "error", err)
			continue
		}

		if frame.Content == "" {
			continue
		}

		c.handler(ctx, c, frame.Content)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-c.done:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
