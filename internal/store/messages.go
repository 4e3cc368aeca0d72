// ABOUTME: Message persistence recording delivery attempts per session
// ABOUTME: Messages carry a content fingerprint and a three-state delivery status

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateMessage inserts a new message record.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	if msg.UpdatedAt.IsZero() {
		msg.UpdatedAt = now
	}
	if msg.Status == "" {
		msg.Status = MessageStatusPending
	}

	query := `
		INSERT INTO messages (id, session_id, sender, content, status, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.SessionID,
		msg.Sender,
		msg.Content,
		msg.Status,
		msg.Error,
		msg.CreatedAt.Format(time.RFC3339),
		msg.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	s.logger.Debug("created message", "id", msg.ID, "session_id", msg.SessionID, "status", msg.Status)
	return nil
}

// GetMessage retrieves a message by ID.
// Returns ErrNotFound if the message doesn't exist.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	query := `
		SELECT id, session_id, sender, content, status, error, created_at, updated_at
		FROM messages
		WHERE id = ?
	`

	var msg Message
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID,
		&msg.SessionID,
		&msg.Sender,
		&msg.Content,
		&msg.Status,
		&msg.Error,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying message: %w", err)
	}

	msg.CreatedAt = parseTime(createdAt, "created_at", msg.ID)
	msg.UpdatedAt = parseTime(updatedAt, "updated_at", msg.ID)

	return &msg, nil
}

// UpdateMessage persists a message's status and error detail.
// Returns ErrNotFound if the message doesn't exist.
func (s *SQLiteStore) UpdateMessage(ctx context.Context, msg *Message) error {
	msg.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE messages
		SET status = ?, error = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		msg.Status,
		msg.Error,
		msg.UpdatedAt.Format(time.RFC3339),
		msg.ID,
	)
	if err != nil {
		return fmt.Errorf("updating message: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated message", "id", msg.ID, "status", msg.Status)
	return nil
}

// DeleteMessage removes a message by ID.
// Returns ErrNotFound if the message doesn't exist.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted message", "id", id)
	return nil
}
