// ABOUTME: Client resolution from inbound payloads via configured path expressions
// ABOUTME: Creates clients lazily on first contact from a new external identity

package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/catapio/portim/internal/pathexpr"
	"github.com/catapio/portim/internal/store"
)

// ErrNoExternalID is returned when the configured path expression yields
// nothing from the payload.
var ErrNoExternalID = errors.New("no external id found in payload")

// Resolver maps inbound payloads to persisted clients.
type Resolver struct {
	clients store.ClientStore
	logger  *slog.Logger
}

// New creates a Resolver backed by the given client store.
func New(clients store.ClientStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		clients: clients,
		logger:  logger.With("component", "resolver"),
	}
}

// Resolve extracts the external id from payload using expr, then finds or
// creates the client within the project. A payload the expression cannot
// reach fails with ErrNoExternalID; a malformed expression fails with
// pathexpr.ErrInvalidPath.
func (r *Resolver) Resolve(ctx context.Context, projectID, expr string, payload any) (*store.Client, error) {
	path, err := pathexpr.Parse(expr)
	if err != nil {
		return nil, err
	}

	externalID, found := path.Lookup(payload)
	if !found || externalID == "" {
		return nil, ErrNoExternalID
	}

	client, err := r.clients.GetClientByExternalID(ctx, projectID, externalID)
	if err == nil {
		return client, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("looking up client: %w", err)
	}

	r.logger.Debug("no client found, creating new one", "external_id", externalID, "project_id", projectID)

	client = &store.Client{
		ProjectID:  projectID,
		ExternalID: externalID,
		Metadata:   map[string]any{},
	}
	err = r.clients.CreateClient(ctx, client)
	if errors.Is(err, store.ErrDuplicateClient) {
		// Lost a concurrent first-contact race; the winner's row is the client
		return r.clients.GetClientByExternalID(ctx, projectID, externalID)
	}
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}

	return client, nil
}
