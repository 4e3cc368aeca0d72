// ABOUTME: Interface persistence for registered endpoints
// ABOUTME: Stores routing configuration and credential material per interface

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreateInterface inserts a new interface record.
func (s *SQLiteStore) CreateInterface(ctx context.Context, iface *Interface) error {
	if iface.ID == "" {
		iface.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if iface.CreatedAt.IsZero() {
		iface.CreatedAt = now
	}
	if iface.UpdatedAt.IsZero() {
		iface.UpdatedAt = now
	}

	query := `
		INSERT INTO interfaces (id, name, project_id, event_endpoint, control_endpoint,
			control, external_id_field, allowed_ips, secret_hash, secret_salt,
			secret_token, iv_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		iface.ID,
		iface.Name,
		iface.ProjectID,
		iface.EventEndpoint,
		iface.ControlEndpoint,
		nullString(strValue(iface.Control)),
		iface.ExternalIDField,
		strings.Join(iface.AllowedIPs, ","),
		iface.SecretHash,
		iface.SecretSalt,
		iface.SecretToken,
		iface.IVToken,
		iface.CreatedAt.Format(time.RFC3339),
		iface.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting interface: %w", err)
	}

	s.logger.Debug("created interface", "id", iface.ID, "name", iface.Name, "project_id", iface.ProjectID)
	return nil
}

// GetInterface retrieves an interface by ID.
// Returns ErrNotFound if the interface doesn't exist.
func (s *SQLiteStore) GetInterface(ctx context.Context, id string) (*Interface, error) {
	query := `
		SELECT id, name, project_id, event_endpoint, control_endpoint, control,
			external_id_field, allowed_ips, secret_hash, secret_salt,
			secret_token, iv_token, created_at, updated_at
		FROM interfaces
		WHERE id = ?
	`

	row := s.db.QueryRowContext(ctx, query, id)
	iface, err := scanInterface(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying interface: %w", err)
	}

	return iface, nil
}

// UpdateInterface persists all mutable fields of an interface.
// Returns ErrNotFound if the interface doesn't exist.
func (s *SQLiteStore) UpdateInterface(ctx context.Context, iface *Interface) error {
	iface.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE interfaces
		SET name = ?, event_endpoint = ?, control_endpoint = ?, control = ?,
			external_id_field = ?, allowed_ips = ?, secret_hash = ?, secret_salt = ?,
			secret_token = ?, iv_token = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		iface.Name,
		iface.EventEndpoint,
		iface.ControlEndpoint,
		nullString(strValue(iface.Control)),
		iface.ExternalIDField,
		strings.Join(iface.AllowedIPs, ","),
		iface.SecretHash,
		iface.SecretSalt,
		iface.SecretToken,
		iface.IVToken,
		iface.UpdatedAt.Format(time.RFC3339),
		iface.ID,
	)
	if err != nil {
		return fmt.Errorf("updating interface: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated interface", "id", iface.ID)
	return nil
}

// DeleteInterface removes an interface by ID.
// Returns ErrNotFound if the interface doesn't exist.
func (s *SQLiteStore) DeleteInterface(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM interfaces WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting interface: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted interface", "id", id)
	return nil
}

// scanInterface scans an interface row from a QueryRow result.
func scanInterface(row *sql.Row) (*Interface, error) {
	var iface Interface
	var control sql.NullString
	var allowedIPs, createdAt, updatedAt string

	err := row.Scan(
		&iface.ID,
		&iface.Name,
		&iface.ProjectID,
		&iface.EventEndpoint,
		&iface.ControlEndpoint,
		&control,
		&iface.ExternalIDField,
		&allowedIPs,
		&iface.SecretHash,
		&iface.SecretSalt,
		&iface.SecretToken,
		&iface.IVToken,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if control.Valid {
		iface.Control = &control.String
	}
	if allowedIPs != "" {
		iface.AllowedIPs = strings.Split(allowedIPs, ",")
	}
	iface.CreatedAt = parseTime(createdAt, "created_at", iface.ID)
	iface.UpdatedAt = parseTime(updatedAt, "updated_at", iface.ID)

	return &iface, nil
}

// strValue returns the dereferenced string or empty string if nil.
func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
