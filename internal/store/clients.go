// ABOUTME: Client persistence for end-user identities scoped to projects
// ABOUTME: Enforces uniqueness of (project_id, external_id) at the schema level

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateClient inserts a new client record.
// Returns ErrDuplicateClient if a client with the same external id already
// exists in the project.
func (s *SQLiteStore) CreateClient(ctx context.Context, client *Client) error {
	if client.ID == "" {
		client.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if client.CreatedAt.IsZero() {
		client.CreatedAt = now
	}
	if client.UpdatedAt.IsZero() {
		client.UpdatedAt = now
	}
	if client.Metadata == nil {
		client.Metadata = map[string]any{}
	}

	metadata, err := json.Marshal(client.Metadata)
	if err != nil {
		return fmt.Errorf("encoding client metadata: %w", err)
	}

	query := `
		INSERT INTO clients (id, project_id, external_id, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		client.ID,
		client.ProjectID,
		client.ExternalID,
		string(metadata),
		client.CreatedAt.Format(time.RFC3339),
		client.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateClient
		}
		return fmt.Errorf("inserting client: %w", err)
	}

	s.logger.Debug("created client", "id", client.ID, "external_id", client.ExternalID, "project_id", client.ProjectID)
	return nil
}

// GetClient retrieves a client by ID.
// Returns ErrNotFound if the client doesn't exist.
func (s *SQLiteStore) GetClient(ctx context.Context, id string) (*Client, error) {
	query := `
		SELECT id, project_id, external_id, metadata, created_at, updated_at
		FROM clients
		WHERE id = ?
	`
	return s.queryClient(ctx, query, id)
}

// GetClientByExternalID retrieves a client by its external identifier within
// a project. Returns ErrNotFound if no such client exists.
func (s *SQLiteStore) GetClientByExternalID(ctx context.Context, projectID, externalID string) (*Client, error) {
	query := `
		SELECT id, project_id, external_id, metadata, created_at, updated_at
		FROM clients
		WHERE project_id = ? AND external_id = ?
	`
	return s.queryClient(ctx, query, projectID, externalID)
}

func (s *SQLiteStore) queryClient(ctx context.Context, query string, args ...any) (*Client, error) {
	var client Client
	var metadata, createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&client.ID,
		&client.ProjectID,
		&client.ExternalID,
		&metadata,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying client: %w", err)
	}

	if err := json.Unmarshal([]byte(metadata), &client.Metadata); err != nil {
		return nil, fmt.Errorf("decoding client metadata: %w", err)
	}
	client.CreatedAt = parseTime(createdAt, "created_at", client.ID)
	client.UpdatedAt = parseTime(updatedAt, "updated_at", client.ID)

	return &client, nil
}

// UpdateClient persists a client's metadata.
// Returns ErrNotFound if the client doesn't exist.
func (s *SQLiteStore) UpdateClient(ctx context.Context, client *Client) error {
	client.UpdatedAt = time.Now().UTC()

	metadata, err := json.Marshal(client.Metadata)
	if err != nil {
		return fmt.Errorf("encoding client metadata: %w", err)
	}

	query := `
		UPDATE clients
		SET metadata = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		string(metadata),
		client.UpdatedAt.Format(time.RFC3339),
		client.ID,
	)
	if err != nil {
		return fmt.Errorf("updating client: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated client", "id", client.ID)
	return nil
}

// DeleteClient removes a client by ID.
// Returns ErrNotFound if the client doesn't exist.
func (s *SQLiteStore) DeleteClient(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting client: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted client", "id", id)
	return nil
}
