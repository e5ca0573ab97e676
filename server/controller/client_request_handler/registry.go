package client_request_handler

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"seq-aggregator/shared/middleware"
)

// Client is one accepted worker connection
type Client struct {
	ID          uuid.UUID
	Conn        net.Conn
	RemoteAddr  string
	ConnectedAt time.Time
}

// Registry tracks the live worker connections so they can all be closed when the
// job completes
type Registry struct {
	mutex   sync.RWMutex
	clients map[uuid.UUID]*Client
	closed  bool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{clients: make(map[uuid.UUID]*Client)}
}

// Register records conn under a fresh client id. Once CloseAll has run the registry
// refuses new connections and returns false.
func (r *Registry) Register(conn net.Conn) (*Client, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return nil, false
	}
	client := &Client{
		ID:          uuid.New(),
		Conn:        conn,
		RemoteAddr:  conn.RemoteAddr().String(),
		ConnectedAt: time.Now(),
	}
	r.clients[client.ID] = client
	return client, true
}

// Remove forgets the client. It does not close the connection.
func (r *Registry) Remove(id uuid.UUID) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.clients[id]; !exists {
		return false
	}
	delete(r.clients, id)
	return true
}

// CloseAll closes every registered connection, empties the registry and refuses
// later registrations. Returns the number of connections closed.
func (r *Registry) CloseAll() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.closed = true
	closed := 0
	for id, client := range r.clients {
		if err := client.Conn.Close(); err != nil {
			middleware.LogDebug(handlerComponent, "Closing client %s: %v", id, err)
		}
		delete(r.clients, id)
		closed++
	}
	return closed
}

// Count returns the number of registered clients
func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.clients)
}
