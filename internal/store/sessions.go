// ABOUTME: Session persistence binding clients to source/target interface pairs
// ABOUTME: Supports lookup by (source, client) for sessionless inbound messages

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateSession inserts a new session record.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = now
	}

	query := `
		INSERT INTO sessions (id, source, target, client_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.Source,
		session.Target,
		session.ClientID,
		session.CreatedAt.Format(time.RFC3339),
		session.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	s.logger.Debug("created session", "id", session.ID, "source", session.Source, "target", session.Target)
	return nil
}

// GetSession retrieves a session by ID.
// Returns ErrNotFound if the session doesn't exist.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	query := `
		SELECT id, source, target, client_id, created_at, updated_at
		FROM sessions
		WHERE id = ?
	`
	return s.querySession(ctx, query, id)
}

// GetSessionBySource retrieves the session opened by sourceID for clientID.
// Returns ErrNotFound if no such session exists, which signals the caller
// to create a new one.
func (s *SQLiteStore) GetSessionBySource(ctx context.Context, sourceID, clientID string) (*Session, error) {
	query := `
		SELECT id, source, target, client_id, created_at, updated_at
		FROM sessions
		WHERE source = ? AND client_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`
	return s.querySession(ctx, query, sourceID, clientID)
}

func (s *SQLiteStore) querySession(ctx context.Context, query string, args ...any) (*Session, error) {
	var session Session
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&session.ID,
		&session.Source,
		&session.Target,
		&session.ClientID,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	session.CreatedAt = parseTime(createdAt, "created_at", session.ID)
	session.UpdatedAt = parseTime(updatedAt, "updated_at", session.ID)

	return &session, nil
}

// UpdateSession persists a session's target. Source and client are immutable
// after creation, so only target is written.
// Returns ErrNotFound if the session doesn't exist.
func (s *SQLiteStore) UpdateSession(ctx context.Context, session *Session) error {
	session.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE sessions
		SET target = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		session.Target,
		session.UpdatedAt.Format(time.RFC3339),
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated session", "id", session.ID, "target", session.Target)
	return nil
}

// DeleteSession removes a session by ID.
// Returns ErrNotFound if the session doesn't exist.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted session", "id", id)
	return nil
}
