// ABOUTME: HTTP handlers for session lifecycle and control hand-off
// ABOUTME: PATCH with a target reassigns who answers for the session

package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/catapio/portim/internal/store"
)

// CreateSessionRequest is the JSON request body for POST .../sessions.
// An empty target falls back to the interface's control interface.
type CreateSessionRequest struct {
	ClientID string `json:"clientId"`
	Target   string `json:"target,omitempty"`
}

// PassControlRequest is the JSON request body for PATCH .../sessions/{id}.
// Metadata is forwarded verbatim to the new target's control endpoint.
type PassControlRequest struct {
	Target   string         `json:"target"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SessionResponse is the JSON representation of a session.
type SessionResponse struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	ClientID  string `json:"clientId"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func sessionToResponse(session *store.Session) SessionResponse {
	return SessionResponse{
		ID:        session.ID,
		Source:    session.Source,
		Target:    session.Target,
		ClientID:  session.ClientID,
		CreatedAt: session.CreatedAt.Format(time.RFC3339),
		UpdatedAt: session.UpdatedAt.Format(time.RFC3339),
	}
}

// handleCreateSession handles POST /projects/{projectId}/interfaces/{interfaceId}/sessions.
// The interface in the path becomes the session's immutable source.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ClientID == "" {
		s.sendJSONError(w, http.StatusBadRequest, "clientId is required")
		return
	}

	iface, ok := s.pathInterface(w, r)
	if !ok {
		return
	}

	session, err := s.sessions.Create(r.Context(), req.ClientID, iface.ID, req.Target)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, sessionToResponse(session))
}

// handleGetSession handles GET .../sessions/{sessionId}.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	iface, ok := s.pathInterface(w, r)
	if !ok {
		return
	}
	session, ok := s.pathSession(w, r, iface)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, sessionToResponse(session))
}

// handlePassControl handles PATCH .../sessions/{sessionId}. A blank target
// leaves the session untouched and echoes it back.
func (s *Server) handlePassControl(w http.ResponseWriter, r *http.Request) {
	var req PassControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	iface, ok := s.pathInterface(w, r)
	if !ok {
		return
	}
	if _, ok := s.pathSession(w, r, iface); !ok {
		return
	}

	session, err := s.sessions.PassControl(r.Context(), r.PathValue("sessionId"), req.Target, req.Metadata)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, sessionToResponse(session))
}

// handleDeleteSession handles DELETE .../sessions/{sessionId}.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	iface, ok := s.pathInterface(w, r)
	if !ok {
		return
	}
	if _, ok := s.pathSession(w, r, iface); !ok {
		return
	}

	if err := s.sessions.Delete(r.Context(), r.PathValue("sessionId")); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
