// ABOUTME: HTTP handlers for message ingestion and status management
// ABOUTME: Accepts arbitrary JSON bodies and always answers 201 once recorded

package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/catapio/portim/internal/auth"
	"github.com/catapio/portim/internal/delivery"
	"github.com/catapio/portim/internal/store"
)

// UpdateMessageStatusRequest is the JSON request body for PATCH .../status.
type UpdateMessageStatusRequest struct {
	Status string `json:"status"`
}

// MessageResponse is the JSON representation of a message. Content is the
// fingerprint of the inbound body, not the payload.
type MessageResponse struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func messageToResponse(msg *store.Message) MessageResponse {
	return MessageResponse{
		ID:        msg.ID,
		SessionID: msg.SessionID,
		Sender:    msg.Sender,
		Content:   msg.Content,
		Status:    msg.Status,
		Error:     msg.Error,
		CreatedAt: msg.CreatedAt.Format(time.RFC3339),
		UpdatedAt: msg.UpdatedAt.Format(time.RFC3339),
	}
}

// droppedHeaders are never forwarded downstream: credentials, transport
// mechanics, and hop-by-hop headers.
var droppedHeaders = map[string]struct{}{
	"Authorization":       {},
	"Host":                {},
	"Content-Length":      {},
	"Accept":              {},
	"Accept-Encoding":     {},
	"User-Agent":          {},
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Proxy-Connection":    {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

// passthroughHeaders selects the inbound headers that ride along on the
// outbound webhook call, where they are merged over the routing headers.
func passthroughHeaders(h http.Header) map[string]string {
	headers := make(map[string]string)
	for key, values := range h {
		if _, dropped := droppedHeaders[http.CanonicalHeaderKey(key)]; dropped {
			continue
		}
		if len(values) > 0 {
			headers[http.CanonicalHeaderKey(key)] = values[0]
		}
	}
	return headers
}

// handleCreateMessage handles both message ingestion routes. With a session
// id in the path the message rides that session; without one the client is
// resolved from the payload and the sender's session is found or created.
//
// A recorded message is 201 even when forwarding failed; the outcome lives
// in the status field.
func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	iface, ok := s.pathInterface(w, r)
	if !ok {
		return
	}

	// Interfaces speak only for themselves; users may send on any interface
	// in projects they belong to.
	if outcome := auth.FromContext(r.Context()); outcome != nil && outcome.Kind == auth.KindInterface {
		if outcome.Interface.ID != iface.ID {
			s.sendJSONError(w, http.StatusForbidden, "interface can only send its own messages")
			return
		}
	}

	if r.PathValue("sessionId") != "" {
		if _, ok := s.pathSession(w, r, iface); !ok {
			return
		}
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if len(body) == 0 {
		s.sendJSONError(w, http.StatusBadRequest, "body is required")
		return
	}

	msg, err := s.pipeline.CreateMessage(r.Context(), &delivery.CreateRequest{
		ProjectID: r.PathValue("projectId"),
		Sender:    iface.ID,
		SessionID: r.PathValue("sessionId"),
		Body:      body,
		Headers:   passthroughHeaders(r.Header),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, messageToResponse(msg))
}

// pathMessage loads the message named in the path and confirms it belongs to
// the path's session (which the caller already proved to be a party to).
func (s *Server) pathMessage(w http.ResponseWriter, r *http.Request) (*store.Message, bool) {
	iface, ok := s.pathInterface(w, r)
	if !ok {
		return nil, false
	}
	session, ok := s.pathSession(w, r, iface)
	if !ok {
		return nil, false
	}

	msg, err := s.pipeline.GetMessage(r.Context(), r.PathValue("messageId"))
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	if msg.SessionID != session.ID {
		s.sendJSONError(w, http.StatusNotFound, "not found")
		return nil, false
	}
	return msg, true
}

// handleGetMessage handles GET .../messages/{messageId}.
func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	msg, ok := s.pathMessage(w, r)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, messageToResponse(msg))
}

// handleUpdateMessageStatus handles PATCH .../messages/{messageId}/status.
func (s *Server) handleUpdateMessageStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateMessageStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if _, ok := s.pathMessage(w, r); !ok {
		return
	}

	msg, err := s.pipeline.UpdateStatus(r.Context(), r.PathValue("messageId"), req.Status)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, messageToResponse(msg))
}

// handleDeleteMessage handles DELETE .../messages/{messageId}.
func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.pathMessage(w, r); !ok {
		return
	}

	if err := s.pipeline.DeleteMessage(r.Context(), r.PathValue("messageId")); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
