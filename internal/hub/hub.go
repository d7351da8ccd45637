// Package hub tracks the live connections of the stub backend and fans
// analysis replies out to every subscribed stream (WebSocket or SSE).
package hub

import (
	"sync"

	"github.com/google/uuid"
)

// Connection is one live backend connection created via the REST API.
type Connection struct {
	ID        string
	SessionID string
	Agent     string
	UserID    string

	mu          sync.RWMutex
	subscribers map[chan string]bool
	closed      bool
}

// Subscribe registers a new outbound stream for this connection.
func (c *Connection) Subscribe() chan string {
	ch := make(chan string, 64)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch
	}
	c.subscribers[ch] = true
	return ch
}

// Unsubscribe removes a stream registered with Subscribe.
func (c *Connection) Unsubscribe(ch chan string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribers[ch] {
		delete(c.subscribers, ch)
		close(ch)
	}
}

// Publish delivers a message to every subscriber. Slow subscribers drop
// messages instead of blocking the publisher.
func (c *Connection) Publish(msg string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for ch := range c.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
}

// close shuts down all subscriber streams.
func (c *Connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for ch := range c.subscribers {
		close(ch)
	}
	c.subscribers = make(map[chan string]bool)
}

// Registry manages the set of live connections.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// Create registers a new connection for (agent, userID). When sessionID
// is empty a fresh session id is issued; otherwise the connection binds
// to the given session.
func (r *Registry) Create(agent, userID, sessionID string) *Connection {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	conn := &Connection{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		Agent:       agent,
		UserID:      userID,
		subscribers: make(map[chan string]bool),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ID] = conn
	return conn
}

// Get returns the connection for the id, or nil.
func (r *Registry) Get(id string) *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[id]
}

// Remove closes and forgets a connection.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	conn := r.conns[id]
	delete(r.conns, id)
	r.mu.Unlock()

	if conn != nil {
		conn.close()
	}
}

// CountByUser returns how many live connections the user holds.
func (r *Registry) CountByUser(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, conn := range r.conns {
		if conn.UserID == userID {
			count++
		}
	}
	return count
}

// Close shuts down every connection.
func (r *Registry) Close() {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	r.conns = make(map[string]*Connection)
	r.mu.Unlock()

	for _, conn := range conns {
		conn.close()
	}
}
