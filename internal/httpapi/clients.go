// ABOUTME: HTTP handlers for client records scoped to a project
// ABOUTME: PATCH merges metadata keys instead of replacing the whole blob

package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/catapio/portim/internal/store"
)

// CreateClientRequest is the JSON request body for POST .../clients.
type CreateClientRequest struct {
	ExternalID string         `json:"externalId"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// UpdateClientRequest is the JSON request body for PATCH .../clients/{id}.
type UpdateClientRequest struct {
	Metadata map[string]any `json:"metadata"`
}

// ClientResponse is the JSON representation of a client.
type ClientResponse struct {
	ID         string         `json:"id"`
	ProjectID  string         `json:"projectId"`
	ExternalID string         `json:"externalId"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  string         `json:"createdAt"`
	UpdatedAt  string         `json:"updatedAt"`
}

func clientToResponse(client *store.Client) ClientResponse {
	return ClientResponse{
		ID:         client.ID,
		ProjectID:  client.ProjectID,
		ExternalID: client.ExternalID,
		Metadata:   client.Metadata,
		CreatedAt:  client.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  client.UpdatedAt.Format(time.RFC3339),
	}
}

// handleCreateClient handles POST /projects/{projectId}/clients.
func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ExternalID == "" {
		s.sendJSONError(w, http.StatusBadRequest, "externalId is required")
		return
	}

	client := &store.Client{
		ProjectID:  r.PathValue("projectId"),
		ExternalID: req.ExternalID,
		Metadata:   req.Metadata,
	}
	if err := s.clients.CreateClient(r.Context(), client); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, clientToResponse(client))
}

// handleGetClient handles GET /projects/{projectId}/clients/{clientId}.
func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	client, ok := s.pathClient(w, r)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, clientToResponse(client))
}

// handleUpdateClient handles PATCH /projects/{projectId}/clients/{clientId}.
// Incoming metadata keys overwrite stored ones; keys absent from the request
// survive, so callers can annotate without round-tripping the full blob.
func (s *Server) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	var req UpdateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	client, ok := s.pathClient(w, r)
	if !ok {
		return
	}

	if client.Metadata == nil {
		client.Metadata = make(map[string]any)
	}
	for key, value := range req.Metadata {
		client.Metadata[key] = value
	}

	if err := s.clients.UpdateClient(r.Context(), client); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, clientToResponse(client))
}

// handleDeleteClient handles DELETE /projects/{projectId}/clients/{clientId}.
func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.pathClient(w, r); !ok {
		return
	}

	if err := s.clients.DeleteClient(r.Context(), r.PathValue("clientId")); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
