// ABOUTME: HTTP handlers for interface registration and credential management
// ABOUTME: The plaintext secret appears only in create and rotate responses

package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/catapio/portim/internal/registry"
	"github.com/catapio/portim/internal/store"
)

// CreateInterfaceRequest is the JSON request body for POST .../interfaces.
type CreateInterfaceRequest struct {
	Name            string   `json:"name"`
	EventEndpoint   string   `json:"eventEndpoint"`
	ControlEndpoint string   `json:"controlEndpoint,omitempty"`
	Control         *string  `json:"control,omitempty"`
	ExternalIDField string   `json:"externalIdField"`
	AllowedIPs      []string `json:"allowedIps,omitempty"`
	ControlToken    string   `json:"controlToken,omitempty"`
}

// UpdateInterfaceRequest is the JSON request body for PUT .../interfaces/{id}.
// Omitted fields keep their stored values; control may be cleared with "".
type UpdateInterfaceRequest struct {
	Name            *string  `json:"name,omitempty"`
	EventEndpoint   *string  `json:"eventEndpoint,omitempty"`
	ControlEndpoint *string  `json:"controlEndpoint,omitempty"`
	Control         *string  `json:"control,omitempty"`
	ExternalIDField *string  `json:"externalIdField,omitempty"`
	AllowedIPs      []string `json:"allowedIps,omitempty"`
	ControlToken    *string  `json:"controlToken,omitempty"`
}

// InterfaceResponse is the JSON representation of an interface. Credentials
// never appear here; the secret rides alongside in create/rotate responses.
type InterfaceResponse struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	ProjectID       string   `json:"projectId"`
	EventEndpoint   string   `json:"eventEndpoint"`
	ControlEndpoint string   `json:"controlEndpoint,omitempty"`
	Control         *string  `json:"control"`
	ExternalIDField string   `json:"externalIdField"`
	AllowedIPs      []string `json:"allowedIps,omitempty"`
	CreatedAt       string   `json:"createdAt"`
	UpdatedAt       string   `json:"updatedAt"`
}

// CreateInterfaceResponse is the JSON response for create and secret rotation.
type CreateInterfaceResponse struct {
	Interface InterfaceResponse `json:"interface"`
	Secret    string            `json:"secret"`
}

func interfaceToResponse(iface *store.Interface) InterfaceResponse {
	return InterfaceResponse{
		ID:              iface.ID,
		Name:            iface.Name,
		ProjectID:       iface.ProjectID,
		EventEndpoint:   iface.EventEndpoint,
		ControlEndpoint: iface.ControlEndpoint,
		Control:         iface.Control,
		ExternalIDField: iface.ExternalIDField,
		AllowedIPs:      iface.AllowedIPs,
		CreatedAt:       iface.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       iface.UpdatedAt.Format(time.RFC3339),
	}
}

// handleCreateInterface handles POST /projects/{projectId}/interfaces.
func (s *Server) handleCreateInterface(w http.ResponseWriter, r *http.Request) {
	var req CreateInterfaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	iface, secret, err := s.registry.Create(r.Context(), r.PathValue("projectId"), registry.CreateInput{
		Name:            req.Name,
		EventEndpoint:   req.EventEndpoint,
		ControlEndpoint: req.ControlEndpoint,
		Control:         req.Control,
		ExternalIDField: req.ExternalIDField,
		AllowedIPs:      req.AllowedIPs,
		ControlToken:    req.ControlToken,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, CreateInterfaceResponse{
		Interface: interfaceToResponse(iface),
		Secret:    secret,
	})
}

// handleGetInterface handles GET /projects/{projectId}/interfaces/{interfaceId}.
func (s *Server) handleGetInterface(w http.ResponseWriter, r *http.Request) {
	iface, ok := s.pathInterface(w, r)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, interfaceToResponse(iface))
}

// handleUpdateInterface handles PUT /projects/{projectId}/interfaces/{interfaceId}.
func (s *Server) handleUpdateInterface(w http.ResponseWriter, r *http.Request) {
	var req UpdateInterfaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if _, ok := s.pathInterface(w, r); !ok {
		return
	}

	iface, err := s.registry.Update(r.Context(), r.PathValue("interfaceId"), registry.UpdateInput{
		Name:            req.Name,
		EventEndpoint:   req.EventEndpoint,
		ControlEndpoint: req.ControlEndpoint,
		Control:         req.Control,
		ExternalIDField: req.ExternalIDField,
		AllowedIPs:      req.AllowedIPs,
		ControlToken:    req.ControlToken,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, interfaceToResponse(iface))
}

// handleDeleteInterface handles DELETE /projects/{projectId}/interfaces/{interfaceId}.
func (s *Server) handleDeleteInterface(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.pathInterface(w, r); !ok {
		return
	}

	if err := s.registry.Delete(r.Context(), r.PathValue("interfaceId")); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleRotateSecret handles POST /projects/{projectId}/interfaces/{interfaceId}/secret.
// The previous secret stops verifying the moment this returns.
func (s *Server) handleRotateSecret(w http.ResponseWriter, r *http.Request) {
	interfaceID := r.PathValue("interfaceId")

	if _, ok := s.pathInterface(w, r); !ok {
		return
	}

	secret, err := s.registry.RotateSecret(r.Context(), interfaceID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	iface, err := s.registry.Get(r.Context(), interfaceID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, CreateInterfaceResponse{
		Interface: interfaceToResponse(iface),
		Secret:    secret,
	})
}
