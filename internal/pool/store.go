// Package pool persists the bounded set of backend connections known to
// this device and answers reuse lookups for the connection manager.
//
// The pool is an optimization, not a system of record: every storage
// failure fails open (logged, treated as an empty pool) so that a broken
// local database never blocks the client from creating fresh sessions.
package pool

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/tea-analyzer/client/internal/model"
)

const (
	// DefaultMaxSize bounds how many connection records are retained.
	DefaultMaxSize = 5

	// DefaultIdleTimeout is how long an unused record stays eligible for
	// reuse. Expired records are pruned lazily on the next read.
	DefaultIdleTimeout = 30 * time.Minute
)

// Store provides access to the pooled connection records.
type Store struct {
	db          *sql.DB
	maxSize     int
	idleTimeout time.Duration
	now         func() time.Time
}

// Options configures a Store. Zero values select the defaults.
type Options struct {
	MaxSize     int
	IdleTimeout time.Duration
	Now         func() time.Time
}

// NewStore creates a new Store over the given database.
func NewStore(db *sql.DB, opts Options) *Store {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		db:          db,
		maxSize:     opts.MaxSize,
		idleTimeout: opts.IdleTimeout,
		now:         opts.Now,
	}
}

// prune deletes records idle beyond the timeout so expired entries never
// reach a caller. Runs on every read instead of a background sweep.
func (s *Store) prune(ctx context.Context) {
	cutoff := s.now().Add(-s.idleTimeout)
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM connections WHERE last_used <= ?`, cutoff); err != nil {
		log.Printf("pool: prune failed: %v", err)
	}
}

// List returns all non-expired records, most recently used first.
func (s *Store) List(ctx context.Context) []model.StoredConnection {
	s.prune(ctx)

	rows, err := s.db.QueryContext(ctx, `
		SELECT connection_id, session_id, agent, user_id, created_at, last_used, is_active
		FROM connections
		ORDER BY last_used DESC
	`)
	if err != nil {
		log.Printf("pool: list failed: %v", err)
		return nil
	}
	defer rows.Close()

	var records []model.StoredConnection
	for rows.Next() {
		var rec model.StoredConnection
		if err := rows.Scan(
			&rec.ConnectionID,
			&rec.SessionID,
			&rec.Agent,
			&rec.UserID,
			&rec.CreatedAt,
			&rec.LastUsed,
			&rec.IsActive,
		); err != nil {
			log.Printf("pool: scan failed: %v", err)
			return nil
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		log.Printf("pool: list iteration failed: %v", err)
		return nil
	}

	return records
}

// Add inserts or refreshes the record for a newly created or reused
// connection. The original creation time is preserved when the id is
// already pooled; the record becomes active and most recently used.
func (s *Store) Add(ctx context.Context, conn model.Connection, agent, userID string) {
	now := s.now()
	s.Upsert(ctx, model.StoredConnection{
		ConnectionID: conn.ConnectionID,
		SessionID:    conn.SessionID,
		Agent:        agent,
		UserID:       userID,
		CreatedAt:    now,
		LastUsed:     now,
		IsActive:     true,
	})
}

// Upsert inserts or updates a record by connection id, then truncates the
// pool to its size bound keeping the most recently used records.
func (s *Store) Upsert(ctx context.Context, rec model.StoredConnection) {
	now := s.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.LastUsed.IsZero() {
		rec.LastUsed = now
	}

	// created_at is deliberately absent from the UPDATE set so re-adding
	// an existing id keeps the original creation time.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO connections (connection_id, session_id, agent, user_id, created_at, last_used, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(connection_id) DO UPDATE SET
			session_id = excluded.session_id,
			agent = excluded.agent,
			user_id = excluded.user_id,
			last_used = excluded.last_used,
			is_active = excluded.is_active
	`, rec.ConnectionID, rec.SessionID, rec.Agent, rec.UserID, rec.CreatedAt, rec.LastUsed, rec.IsActive)
	if err != nil {
		log.Printf("pool: upsert failed: %v", err)
		return
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM connections WHERE connection_id NOT IN (
			SELECT connection_id FROM connections ORDER BY last_used DESC LIMIT ?
		)
	`, s.maxSize)
	if err != nil {
		log.Printf("pool: truncate failed: %v", err)
	}
}

// FindReusable returns the pooled record to reuse for (agent, userID), or
// nil when none qualifies. With a session id the match must be exact on
// (agent, userID, sessionID); without one the most recently used active
// record for (agent, userID) wins.
func (s *Store) FindReusable(ctx context.Context, agent, userID, sessionID string) *model.StoredConnection {
	s.prune(ctx)

	var row *sql.Row
	if sessionID != "" {
		row = s.db.QueryRowContext(ctx, `
			SELECT connection_id, session_id, agent, user_id, created_at, last_used, is_active
			FROM connections
			WHERE agent = ? AND user_id = ? AND session_id = ? AND is_active = 1
			ORDER BY last_used DESC
			LIMIT 1
		`, agent, userID, sessionID)
	} else {
		row = s.db.QueryRowContext(ctx, `
			SELECT connection_id, session_id, agent, user_id, created_at, last_used, is_active
			FROM connections
			WHERE agent = ? AND user_id = ? AND is_active = 1
			ORDER BY last_used DESC
			LIMIT 1
		`, agent, userID)
	}

	var rec model.StoredConnection
	err := row.Scan(
		&rec.ConnectionID,
		&rec.SessionID,
		&rec.Agent,
		&rec.UserID,
		&rec.CreatedAt,
		&rec.LastUsed,
		&rec.IsActive,
	)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		log.Printf("pool: lookup failed: %v", err)
		return nil
	}

	return &rec
}

// Touch updates the last-used time of the given connection id. Absent ids
// are a no-op, not an error.
func (s *Store) Touch(ctx context.Context, connectionID string) {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE connections SET last_used = ? WHERE connection_id = ?`,
		s.now(), connectionID); err != nil {
		log.Printf("pool: touch failed: %v", err)
	}
}

// Deactivate marks the record inactive without removing it, so it is
// excluded from reuse lookups but still visible in listings.
func (s *Store) Deactivate(ctx context.Context, connectionID string) {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE connections SET is_active = 0, last_used = ? WHERE connection_id = ?`,
		s.now(), connectionID); err != nil {
		log.Printf("pool: deactivate failed: %v", err)
	}
}

// Remove deletes the record for the given connection id.
func (s *Store) Remove(ctx context.Context, connectionID string) {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM connections WHERE connection_id = ?`, connectionID); err != nil {
		log.Printf("pool: remove failed: %v", err)
	}
}

// ClearForUser removes every record belonging to the user.
func (s *Store) ClearForUser(ctx context.Context, userID string) {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM connections WHERE user_id = ?`, userID); err != nil {
		log.Printf("pool: clear for user failed: %v", err)
	}
}

// ClearAll removes every pooled record.
func (s *Store) ClearAll(ctx context.Context) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM connections`); err != nil {
		log.Printf("pool: clear all failed: %v", err)
	}
}

// Stats summarizes the pooled records for one user.
func (s *Store) Stats(ctx context.Context, userID string) model.PoolStats {
	stats := model.PoolStats{}

	rows, err := s.db.QueryContext(ctx, `
		SELECT agent, session_id, is_active
		FROM connections
		WHERE user_id = ?
	`, userID)
	if err != nil {
		log.Printf("pool: stats failed: %v", err)
		return stats
	}
	defer rows.Close()

	agents := make(map[string]bool)
	sessions := make(map[string]bool)
	for rows.Next() {
		var agent, sessionID string
		var active bool
		if err := rows.Scan(&agent, &sessionID, &active); err != nil {
			log.Printf("pool: stats scan failed: %v", err)
			return model.PoolStats{}
		}
		stats.Total++
		if active {
			stats.Active++
		}
		if !agents[agent] {
			agents[agent] = true
			stats.Agents = append(stats.Agents, agent)
		}
		if !sessions[sessionID] {
			sessions[sessionID] = true
			stats.Sessions = append(stats.Sessions, sessionID)
		}
	}
	if err := rows.Err(); err != nil {
		log.Printf("pool: stats iteration failed: %v", err)
	}

	return stats
}
