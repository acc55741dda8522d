package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 16
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// hub fans recompute messages out to websocket clients. All client
// bookkeeping happens on the run goroutine.
type hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	clients    map[*client]bool
	count      atomic.Int32
	upgrader   websocket.Upgrader
}

func newHub(checkOrigin func(r *http.Request) bool) *hub {
	return &hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 64),
		clients:    map[*client]bool{},
		upgrader:   websocket.Upgrader{CheckOrigin: checkOrigin},
	}
}

func (h *hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
			h.count.Store(int32(len(h.clients)))
		case c := <-h.unregister:
			if h.clients[c] {
				h.drop(c)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow client; drop it rather than stall the feed.
					h.drop(c)
				}
			}
		}
	}
}

func (h *hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
	h.count.Store(int32(len(h.clients)))
}

// publish queues msg for every client without blocking the caller.
func (h *hub) publish(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		zap.L().Warn("api: websocket broadcast queue full, dropping update")
	}
}

// clientCount reports the number of connected clients.
func (h *hub) clientCount() int { return int(h.count.Load()) }

// serve upgrades the request and registers the client. initial is sent before
// any broadcast.
func (h *hub) serve(ctx context.Context, w http.ResponseWriter, r *http.Request, initial []byte) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Debug("api: websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	c.send <- initial

	select {
	case h.register <- c:
	case <-ctx.Done():
		conn.Close() //nolint:errcheck
		return
	}

	go c.writer()
	go c.reader(ctx, h)
}

// reader discards client messages and unregisters on close.
func (c *client) reader(ctx context.Context, h *hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-ctx.Done():
		}
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writer() {
	defer c.conn.Close() //nolint:errcheck
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
