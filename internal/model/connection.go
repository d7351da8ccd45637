package model

import "time"

// Known agent keys on the analysis backend.
const (
	AgentAnalyze = "analyze"
	AgentSummary = "summary"
)

// Connection is the (connectionID, sessionID) pair issued by the backend
// when a live analysis session is created.
type Connection struct {
	ConnectionID string `json:"connection_id"`
	SessionID    string `json:"session_id"`
}

// StoredConnection is one pooled record for a backend session known to
// this device. Records are reused across runs to avoid redundant session
// creation on the backend.
type StoredConnection struct {
	ConnectionID string    `json:"connection_id"`
	SessionID    string    `json:"session_id"`
	Agent        string    `json:"agent"`
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastUsed     time.Time `json:"last_used"`
	IsActive     bool      `json:"is_active"`
}

// Pair returns the reusable connection pair for this record.
func (s *StoredConnection) Pair() Connection {
	return Connection{ConnectionID: s.ConnectionID, SessionID: s.SessionID}
}

// PoolStats summarizes the pooled records for one user.
type PoolStats struct {
	Total    int      `json:"total"`
	Active   int      `json:"active"`
	Agents   []string `json:"agents"`
	Sessions []string `json:"sessions"`
}

// CreateConnectionRequest is the body of POST /connections/{agent}.
type CreateConnectionRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	SessionID string `json:"session_id,omitempty"`
}

// MetadataRequest is the body of POST /sessions/{sessionId}/metadata.
// The hint doubles as a free-form prompt; chat summarization sends the
// full summarization prompt through it.
type MetadataRequest struct {
	Hint string `json:"hint,omitempty"`
}

// MetadataResponse carries generated session metadata.
type MetadataResponse struct {
	Metadata map[string]interface{} `json:"metadata"`
}
