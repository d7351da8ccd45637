// Package conn decides when to reuse a pooled backend connection and when
// to create a fresh one, applying exponential backoff to creation.
package conn

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/tea-analyzer/client/internal/backend"
	"github.com/tea-analyzer/client/internal/model"
	"github.com/tea-analyzer/client/internal/pool"
	"github.com/tea-analyzer/client/internal/transport"
)

// Manager obtains usable (connectionID, sessionID) pairs, minimizing
// redundant session creation on the backend. It tracks the transport
// channels attached to the active connection so fatal backend signals can
// tear them down.
type Manager struct {
	store   *pool.Store
	api     *backend.Client
	limiter *RateLimiter

	mu       sync.Mutex
	active   *model.Connection
	channels []transport.Channel
}

// Config holds configuration for the connection manager.
type Config struct {
	MaxRetries int
	Now        func() time.Time
}

// NewManager creates a connection manager over the pool store and backend client.
func NewManager(store *pool.Store, api *backend.Client, cfg Config) *Manager {
	return &Manager{
		store:   store,
		api:     api,
		limiter: NewRateLimiter(cfg.MaxRetries, cfg.Now),
	}
}

// AcquireResult is the outcome of a successful Acquire.
type AcquireResult struct {
	Connection model.Connection
	// Reused is true when a pooled connection served the request and no
	// network call was made.
	Reused bool
}

// Acquire returns a usable connection for (agent, userID), optionally
// bound to sessionID. Unless forceNew is set, a matching pooled record is
// reused without any network call. Creation is rate limited; a blocked
// attempt returns a WaitError without side effects on the backend.
func (m *Manager) Acquire(ctx context.Context, agent, userID, sessionID string, forceNew bool) (AcquireResult, error) {
	if agent == "" {
		return AcquireResult{}, model.ErrAgentRequired
	}
	if userID == "" {
		return AcquireResult{}, model.ErrUserRequired
	}

	if !forceNew {
		if rec := m.store.FindReusable(ctx, agent, userID, sessionID); rec != nil {
			m.store.Touch(ctx, rec.ConnectionID)
			pair := rec.Pair()
			m.setActive(pair)
			log.Printf("conn: reusing connection %s (session %s)", pair.ConnectionID, pair.SessionID)
			return AcquireResult{Connection: pair, Reused: true}, nil
		}
	}

	if err := m.limiter.Check(); err != nil {
		log.Printf("conn: creation blocked: %v", err)
		return AcquireResult{}, err
	}

	conn, err := m.api.CreateConnection(ctx, agent, model.CreateConnectionRequest{
		UserID:    userID,
		SessionID: sessionID,
	})
	if err != nil {
		m.limiter.Fail()
		switch {
		case errors.Is(err, model.ErrResourceExhausted):
			// The backend refused another session; whatever we hold open
			// is not usable anymore.
			log.Printf("conn: backend session capacity reached, closing open channels")
			m.closeChannels()
			m.clearActive()
		case errors.Is(err, model.ErrRateLimited):
			log.Printf("conn: backend rate limit hit, backing off")
		default:
			log.Printf("conn: creation failed: %v", err)
		}
		return AcquireResult{}, err
	}

	m.store.Add(ctx, conn, agent, userID)
	m.limiter.Reset()
	m.setActive(conn)
	log.Printf("conn: connection created: %s (session %s)", conn.ConnectionID, conn.SessionID)
	return AcquireResult{Connection: conn}, nil
}

// ConnectToSession reuses the pooled connection bound to an exact session
// id. No creation is attempted; unknown sessions are an error.
func (m *Manager) ConnectToSession(ctx context.Context, agent, userID, sessionID string) (model.Connection, error) {
	rec := m.store.FindReusable(ctx, agent, userID, sessionID)
	if rec == nil {
		return model.Connection{}, model.ErrSessionNotFound
	}
	m.store.Touch(ctx, rec.ConnectionID)
	pair := rec.Pair()
	m.setActive(pair)
	return pair, nil
}

// Attach registers a transport channel opened for the active connection
// so ForceDisconnectAll can close it.
func (m *Manager) Attach(ch transport.Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, ch)
}

// ForceDisconnectAll deactivates the active pool record, closes every
// attached channel, and clears the active connection. Idempotent; used
// for explicit new-connection actions and for recovery.
func (m *Manager) ForceDisconnectAll(ctx context.Context) {
	m.mu.Lock()
	active := m.active
	m.mu.Unlock()

	if active != nil {
		m.store.Deactivate(ctx, active.ConnectionID)
	}

	m.closeChannels()
	m.clearActive()
	log.Printf("conn: all connections disconnected")
}

// ResetBackoff clears the retry budget, e.g. after a user-driven cooldown.
func (m *Manager) ResetBackoff() {
	m.limiter.Reset()
}

// RetryCount exposes the backoff counter for status reporting.
func (m *Manager) RetryCount() int {
	return m.limiter.RetryCount()
}

// Active returns the active connection, or nil when none is held.
func (m *Manager) Active() *model.Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	c := *m.active
	return &c
}

func (m *Manager) setActive(conn model.Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = &conn
}

func (m *Manager) clearActive() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = nil
}

// closeChannels disconnects and forgets every attached channel.
func (m *Manager) closeChannels() {
	m.mu.Lock()
	channels := m.channels
	m.channels = nil
	m.mu.Unlock()

	for _, ch := range channels {
		if err := ch.Disconnect(); err != nil {
			log.Printf("conn: channel disconnect failed: %v", err)
		}
	}
}
