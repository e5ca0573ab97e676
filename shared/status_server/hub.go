package status_server

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"seq-aggregator/shared/middleware"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// feedClient is one websocket subscriber of the throughput feed
type feedClient struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
}

// Hub fans throughput samples out to every connected websocket
type Hub struct {
	clients    map[*feedClient]bool
	broadcast  chan []byte
	register   chan *feedClient
	unregister chan *feedClient
	done       chan struct{}
	count      atomic.Int32
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*feedClient]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *feedClient),
		unregister: make(chan *feedClient),
		done:       make(chan struct{}),
	}
}

// run owns the client set until stop is called
func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			h.count.Add(1)
		case client := <-h.unregister:
			if h.clients[client] {
				h.drop(client)
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					middleware.LogWarn(statusComponent, "Feed client %s is too slow, dropping it", client.id)
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *feedClient) {
	delete(h.clients, client)
	close(client.send)
	h.count.Add(-1)
}

// publish queues message for every client. Samples are periodic, so one is dropped
// rather than blocking the meter when the hub is behind.
func (h *Hub) publish(message []byte) {
	select {
	case h.broadcast <- message:
	default:
	}
}

func (h *Hub) join(client *feedClient) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(client *feedClient) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) stop() {
	close(h.done)
}

// Clients returns the number of connected feed clients
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// readPump discards inbound messages and notices when the peer goes away
func (h *Hub) readPump(c *feedClient) {
	defer func() {
		h.leave(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				middleware.LogDebug(statusComponent, "Feed client %s: %v", c.id, err)
			}
			return
		}
	}
}

// writePump is the only writer on c.conn
func (h *Hub) writePump(c *feedClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
